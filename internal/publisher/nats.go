package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Retexc/ETSignage/board"
	"github.com/Retexc/ETSignage/formatter"
	"github.com/Retexc/ETSignage/internal/logging"
)

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

// NATSPublisher pushes boards to displays subscribed on NATS. The full board
// goes to the base subject and each feed's arrivals to <base>.<feed>.
type NATSPublisher struct {
	nc      conn
	subject string
	metrics PublisherMetrics
	logger  *slog.Logger
}

func NewNATSPublisher(url, subject string, m PublisherMetrics, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logging.OrDefault(logger)
	nc, err := nats.Connect(url,
		nats.Name("etsignage"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logging.LogWarn(logger, "NATS disconnected", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return newPublisher(nc, subject, m, logger), nil
}

func newPublisher(nc conn, subject string, m PublisherMetrics, logger *slog.Logger) *NATSPublisher {
	if subject == "" {
		subject = "signage.board"
	}
	return &NATSPublisher{nc: nc, subject: subject, metrics: m, logger: logging.OrDefault(logger)}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			logging.LogWarn(p.logger, "Failed to drain NATS connection", err)
		}
		p.nc.Close()
	}
}

// PublishBoard sends b to the base subject, then the arrivals of every feed to
// its own subject. The first error is returned after all sends are attempted.
func (p *NATSPublisher) PublishBoard(b *board.Board) error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	keep(p.publish(p.subject, formatter.Envelope(b)))
	for _, name := range b.FeedOrder {
		subject := fmt.Sprintf("%s.%s", p.subject, subjectToken(name))
		keep(p.publish(subject, formatter.FeedResponse{
			GeneratedAt: b.GeneratedAt,
			Feed:        name,
			Arrivals:    b.Arrivals[name],
		}))
	}
	return first
}

func (p *NATSPublisher) publish(subject string, msg any) error {
	start := time.Now()
	data, err := json.Marshal(msg)
	if err == nil {
		err = p.nc.Publish(subject, data)
	}
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	p.logger.Debug("Published board", slog.String("subject", subject), slog.Int("bytes", len(data)))
	return nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
