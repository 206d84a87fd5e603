package etsignage

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type healthResponse struct {
	Status           string   `json:"status"`
	LatestBoardEpoch int64    `json:"latest_board_epoch"`
	Feeds            []string `json:"feeds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resp := healthResponse{
		Status:           "ok",
		LatestBoardEpoch: s.svc.Tracker().LastGeneratedAt(),
		Feeds:            make([]string, 0, len(s.svc.feeds)),
	}
	for _, f := range s.svc.feeds {
		resp.Feeds = append(resp.Feeds, f.Source.Name())
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
