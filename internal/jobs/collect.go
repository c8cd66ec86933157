// Package jobs runs search queries and stores what they return.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tweetharvest/internal/cursor"
	"tweetharvest/internal/metrics"
	"tweetharvest/internal/model"
	"tweetharvest/internal/store"
	"tweetharvest/internal/xclient"
)

// DefaultLimit is the number of tweets collected per query.
const DefaultLimit = 200

// ErrBackoffExhausted is returned when MaxBackoffs is set and reached.
var ErrBackoffExhausted = errors.New("backoff attempts exhausted")

// DeadLetter receives records the sink refused.
type DeadLetter interface {
	Park(ctx context.Context, rec model.Record, cause error) error
}

// SearchOptions are applied to every query's cursor.
type SearchOptions struct {
	ResultType      string
	ExcludeRetweets bool
	Lang            string
	Extended        bool
}

// DefaultSearchOptions excludes retweets and mixes popular and recent results.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{ResultType: "mixed", ExcludeRetweets: true, Extended: true}
}

// Collector pulls one query's results from the API into a sink.
type Collector struct {
	Searcher xclient.Searcher
	Sink     store.Sink
	Log      zerolog.Logger
	Search   SearchOptions
	// Backoff defaults to LinearBackoff{Step: time.Minute}.
	Backoff Policy
	// MaxBackoffs of zero retries upstream errors forever.
	MaxBackoffs int
	DeadLetter  DeadLetter
	Sleep       func(ctx context.Context, d time.Duration) error
}

// Stats summarizes one query.
type Stats struct {
	Query        string
	Fetched      int
	Stored       int
	WriteErrors  int
	DeadLettered int
	Backoffs     int
	Duration     time.Duration
}

type state int

const (
	stateFetching state = iota
	stateBackingOff
	stateDone
)

type outcome int

const (
	outcomeOK outcome = iota
	outcomeExhausted
	outcomeUpstream
	outcomeWriteFailed
	outcomeFatal
)

func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, cursor.ErrExhausted):
		return outcomeExhausted
	case errors.Is(err, store.ErrWrite):
		return outcomeWriteFailed
	case errors.Is(err, xclient.ErrUpstream):
		return outcomeUpstream
	default:
		return outcomeFatal
	}
}

// CollectQuery stores up to limit tweets matching query between since and
// until (YYYY-MM-DD). Failed writes are logged and skipped. Upstream errors
// back off and resume from the same cursor position. Any other error is
// returned.
func (c *Collector) CollectQuery(ctx context.Context, query, since, until string, limit int) (st Stats, err error) {
	log := c.Log.With().Str("query", query).Logger()
	st = Stats{Query: query}
	start := time.Now()
	defer func() {
		st.Duration = time.Since(start)
		metrics.ObserveQueryDuration(start)
	}()

	cur := cursor.New(c.Searcher, cursor.Params{
		Query:           query,
		Since:           since,
		Until:           until,
		ResultType:      c.Search.ResultType,
		ExcludeRetweets: c.Search.ExcludeRetweets,
		Lang:            c.Search.Lang,
		Extended:        c.Search.Extended,
	}, limit)

	attempt := 1
	var upstreamErr error
	for s := stateFetching; s != stateDone; {
		switch s {
		case stateFetching:
			tw, err := cur.Next(ctx)
			switch classify(err) {
			case outcomeOK:
				st.Fetched++
				metrics.TweetsFetched.WithLabelValues(query).Inc()
				log.Info().Time("tweet_date", tw.CreatedAt).Msg("tweet fetched")
				if err := c.store(ctx, log, query, tw, &st); err != nil {
					return st, err
				}
			case outcomeExhausted:
				s = stateDone
			case outcomeUpstream:
				upstreamErr = err
				s = stateBackingOff
			default:
				return st, fmt.Errorf("collect %q: %w", query, err)
			}
		case stateBackingOff:
			if c.MaxBackoffs > 0 && st.Backoffs >= c.MaxBackoffs {
				return st, fmt.Errorf("collect %q: %w after %d attempts: %v", query, ErrBackoffExhausted, st.Backoffs, upstreamErr)
			}
			d := c.policy().Delay(attempt)
			log.Warn().Err(upstreamErr).Int("attempt", attempt).Dur("wait", d).Msg("reached tweet limits, backing off")
			metrics.Backoffs.WithLabelValues(query).Inc()
			if err := c.sleep(ctx, d); err != nil {
				return st, err
			}
			attempt++
			st.Backoffs++
			s = stateFetching
		}
	}
	log.Info().Int("fetched", st.Fetched).Int("stored", st.Stored).Int("write_errors", st.WriteErrors).Int("backoffs", st.Backoffs).
		Msg("finished collecting and storing tweets")
	return st, nil
}

func (c *Collector) store(ctx context.Context, log zerolog.Logger, query string, tw model.Tweet, st *Stats) error {
	rec := model.NewRecord(query, tw)
	err := c.Sink.Insert(ctx, rec)
	switch classify(err) {
	case outcomeOK:
		st.Stored++
		metrics.TweetsStored.WithLabelValues(query).Inc()
		return nil
	case outcomeWriteFailed:
		st.WriteErrors++
		metrics.SinkWriteErrors.WithLabelValues(query).Inc()
		log.Error().Err(err).Str("tweet_id", tw.IDStr).Msg("error writing record to sink")
		if c.DeadLetter == nil {
			return nil
		}
		if perr := c.DeadLetter.Park(ctx, rec, err); perr != nil {
			log.Error().Err(perr).Str("tweet_id", tw.IDStr).Msg("dead letter failed, record dropped")
			return nil
		}
		st.DeadLettered++
		metrics.DeadLetters.Inc()
		return nil
	default:
		return fmt.Errorf("store %q: %w", query, err)
	}
}

func (c *Collector) policy() Policy {
	if c.Backoff == nil {
		return LinearBackoff{Step: time.Minute}
	}
	return c.Backoff
}

func (c *Collector) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
