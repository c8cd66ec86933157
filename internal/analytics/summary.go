package analytics

import (
	"sort"

	"tweetharvest/internal/jobs"
)

// Totals aggregates per-query stats of one run.
type Totals struct {
	Queries      int
	Fetched      int
	Stored       int
	WriteErrors  int
	DeadLettered int
	Backoffs     int
}

// Summarize adds up stats.
func Summarize(stats []jobs.Stats) Totals {
	var t Totals
	for _, s := range stats {
		t.Queries++
		t.Fetched += s.Fetched
		t.Stored += s.Stored
		t.WriteErrors += s.WriteErrors
		t.DeadLettered += s.DeadLettered
		t.Backoffs += s.Backoffs
	}
	return t
}

// ByStored returns stats ordered by stored count, highest first, ties by query.
func ByStored(stats []jobs.Stats) []jobs.Stats {
	out := append([]jobs.Stats(nil), stats...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stored != out[j].Stored {
			return out[i].Stored > out[j].Stored
		}
		return out[i].Query < out[j].Query
	})
	return out
}
