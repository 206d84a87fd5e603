/*
Package gtfs loads the static schedule of one agency and indexes it for the
arrival engine.

The tables are read from plain CSV files (routes.txt, trips.txt and
stop_times.txt are required; calendar.txt, calendar_dates.txt and stops.txt
are optional). Times past midnight such as "25:10:00" are kept as seconds
after midnight of the service day.

# Basic Usage

	index, err := gtfs.Load(gtfs.PathsFromDir("GTFS/stm"), logger)
	if errors.Is(err, gtfs.ErrMissingRequiredFile) {
	    // the feed cannot be served
	}

	st, ok := index.GetStopTime("trip_123", "50270")
	runs := index.TripRunsOn("trip_123", time.Now())

# Caching

Parsing a large stop_times.txt takes seconds. LoadCached keeps a gob copy of
the index next to the tables and reuses it while it is newer than every
required file.

The index is read-only after loading and may be shared between goroutines.
*/
package gtfs
