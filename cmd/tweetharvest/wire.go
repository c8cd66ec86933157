package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tweetharvest/internal/config"
	"tweetharvest/internal/credentials"
	"tweetharvest/internal/jobs"
	"tweetharvest/internal/logging"
	"tweetharvest/internal/model"
	"tweetharvest/internal/store"
	"tweetharvest/internal/store/deadletter"
	"tweetharvest/internal/store/mongostore"
	"tweetharvest/internal/store/sqlitestore"
	"tweetharvest/internal/xclient"
)

// newLogger builds the run logger; every line carries the run id.
func newLogger(cfg config.Config) zerolog.Logger {
	l := logging.New(logging.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty, Output: os.Stderr})
	return l.With().Str("run_id", uuid.NewString()).Logger()
}

func newSession(cfg config.Config, creds credentials.Twitter, log zerolog.Logger) *xclient.Session {
	opts := xclient.DefaultSessionOptions()
	opts.WaitOnRateLimit = cfg.Session.WaitOnRateLimit
	opts.RetryCount = cfg.Session.RetryCount
	opts.RetryDelay = cfg.Session.RetryDelay
	opts.Timeout = cfg.Session.Timeout
	opts.RPS = cfg.Session.RPS
	opts.Burst = cfg.Session.Burst
	opts.Log = logging.Component(log, "xclient")
	return xclient.NewSession(creds, opts)
}

func openSink(ctx context.Context, cfg config.Config) (store.Sink, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := sqlitestore.Open(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "mongo":
		o := mongostore.DefaultOptions()
		m := cfg.Storage.Mongo
		o.URI, o.Host, o.Port, o.Database, o.Collection = m.URI, m.Host, m.Port, m.Database, m.Collection
		ms, err := mongostore.Open(ctx, o)
		if err != nil {
			return nil, err
		}
		return ms, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func backoffPolicy(cfg config.BackoffConfig) jobs.Policy {
	if cfg.Strategy == "exponential" {
		return jobs.ExponentialBackoff{Initial: cfg.Step, Max: cfg.Max, Multiplier: 2, Jitter: cfg.Jitter}
	}
	return jobs.LinearBackoff{Step: cfg.Step}
}

// runCollect loads credentials, authenticates, opens the sink and runs every
// query.
func runCollect(ctx context.Context, cfg config.Config, queries []string, log zerolog.Logger) ([]jobs.Stats, error) {
	creds, err := credentials.Load(cfg.Credentials.KeysFile)
	if err != nil {
		return nil, err
	}
	session := newSession(cfg, creds, log)
	me, err := session.VerifyCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	log.Info().Str("user", me.Username).Msg("authenticated")

	sink, err := openSink(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer sink.Close(context.Background())

	c := &jobs.Collector{
		Searcher: session,
		Sink:     sink,
		Log:      logging.Component(log, "collector"),
		Search: jobs.SearchOptions{
			ResultType:      cfg.Search.ResultType,
			ExcludeRetweets: cfg.Search.ExcludeRetweets,
			Lang:            cfg.Search.Lang,
			Extended:        cfg.Search.Extended,
		},
		Backoff:     backoffPolicy(cfg.Backoff),
		MaxBackoffs: cfg.Backoff.MaxAttempts,
	}
	if cfg.DeadLetter.RedisAddr != "" {
		q, err := deadletter.Dial(ctx, cfg.DeadLetter.RedisAddr, cfg.DeadLetter.Key)
		if err != nil {
			return nil, err
		}
		defer q.Close()
		c.DeadLetter = q
	}

	d := jobs.NewDriver(c, logging.Component(log, "driver"))
	d.Limit = cfg.Search.Limit
	d.MinPause, d.MaxPause = cfg.Pacing.MinPause, cfg.Pacing.MaxPause
	return d.Run(ctx, queries, cfg.Search.Since, cfg.Search.Until)
}

// runReplay moves up to n parked records into the configured sink.
func runReplay(ctx context.Context, cfg config.Config, n int, log zerolog.Logger) (deadletter.ReplayStats, error) {
	if cfg.DeadLetter.RedisAddr == "" {
		return deadletter.ReplayStats{}, errors.New("deadLetter.redisAddr is not set")
	}
	q, err := deadletter.Dial(ctx, cfg.DeadLetter.RedisAddr, cfg.DeadLetter.Key)
	if err != nil {
		return deadletter.ReplayStats{}, err
	}
	defer q.Close()
	sink, err := openSink(ctx, cfg)
	if err != nil {
		return deadletter.ReplayStats{}, err
	}
	defer sink.Close(context.Background())
	return replayInto(ctx, q, sink, n, log)
}

// replayInto inserts parked records into sink; records it refuses are
// parked again.
func replayInto(ctx context.Context, q *deadletter.Queue, sink store.Sink, n int, log zerolog.Logger) (deadletter.ReplayStats, error) {
	st, err := q.Replay(ctx, n, func(ctx context.Context, rec model.Record) error {
		err := sink.Insert(ctx, rec)
		if err != nil {
			log.Error().Err(err).Str("query", rec.Query).Msg("replay failed, parking again")
		}
		return err
	})
	log.Info().Int("moved", st.Moved).Int("reparked", st.Reparked).Msg("replay finished")
	return st, err
}
