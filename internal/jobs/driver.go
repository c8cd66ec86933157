package jobs

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"tweetharvest/internal/cursor"
	"tweetharvest/internal/schedule"
)

// Driver runs queries one after another with a random pause in between.
type Driver struct {
	Collector *Collector
	Log       zerolog.Logger
	Limit     int
	MinPause  time.Duration
	MaxPause  time.Duration
	Rand      *rand.Rand
	Sleep     func(ctx context.Context, d time.Duration) error
}

// NewDriver pauses 30 to 120 seconds between queries and collects
// DefaultLimit tweets each.
func NewDriver(c *Collector, log zerolog.Logger) *Driver {
	return &Driver{
		Collector: c,
		Log:       log,
		Limit:     DefaultLimit,
		MinPause:  30 * time.Second,
		MaxPause:  120 * time.Second,
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run collects every query in order. The first error stops the run; the
// stats of the queries attempted so far are returned with it.
func (d *Driver) Run(ctx context.Context, queries []string, since, until string) ([]Stats, error) {
	if err := cursor.ValidateWindow(since, until); err != nil {
		return nil, err
	}
	d.Log.Info().Strs("queries", queries).Str("since", since).Str("until", until).Msg("collection run started")
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	out := make([]Stats, 0, len(queries))
	for i, q := range queries {
		if i > 0 {
			pause := schedule.Pause(d.Rand, d.MinPause, d.MaxPause)
			d.Log.Info().Dur("pause", pause).Msg("pausing between queries")
			if err := d.sleep(ctx, pause); err != nil {
				return out, err
			}
		}
		d.Log.Info().Str("query", q).Msg("working on query")
		st, err := d.Collector.CollectQuery(ctx, q, since, until, d.Limit)
		out = append(out, st)
		if err != nil {
			return out, err
		}
	}
	d.Log.Info().Int("queries", len(out)).Msg("collection run finished")
	return out, nil
}

func (d *Driver) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return sleepCtx(ctx, dur)
}
