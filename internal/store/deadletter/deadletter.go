// Package deadletter parks records whose sink write failed in a Redis list.
package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tweetharvest/internal/model"
)

// DefaultKey is the list records are pushed to.
const DefaultKey = "tweetharvest:deadletter"

// Entry is the JSON value stored per parked record.
type Entry struct {
	Record   model.Record `json:"record"`
	Cause    string       `json:"cause"`
	ParkedAt time.Time    `json:"parked_at"`
}

// Queue is a Redis list of failed writes.
type Queue struct {
	client *redis.Client
	key    string
	nowFn  func() time.Time
}

// New wraps an existing client. An empty key uses DefaultKey.
func New(client *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{client: client, key: key, nowFn: time.Now}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, key string) (*Queue, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return New(client, key), nil
}

// Park appends rec and the write failure to the list.
func (q *Queue) Park(ctx context.Context, rec model.Record, cause error) error {
	e := Entry{Record: rec, ParkedAt: q.nowFn().UTC()}
	if cause != nil {
		e.Cause = cause.Error()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.key, b).Err()
}

// Drain pops up to n entries in the order they were parked.
func (q *Queue) Drain(ctx context.Context, n int) ([]Entry, error) {
	var out []Entry
	for i := 0; i < n; i++ {
		e, ok, err := q.pop(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

// ReplayStats counts what one Replay call did with the entries it popped.
type ReplayStats struct {
	Moved    int
	Reparked int
}

// Replay hands up to n parked records to insert, oldest first. Only one
// entry is out of the list at a time. An entry insert refuses is parked
// again with the new cause, even when ctx is already done, and no further
// entry is popped after ctx is done. Entries re-parked during the call are
// not retried by it.
func (q *Queue) Replay(ctx context.Context, n int, insert func(context.Context, model.Record) error) (ReplayStats, error) {
	var st ReplayStats
	keep := context.WithoutCancel(ctx)
	parked, err := q.Len(ctx)
	if err != nil {
		return st, err
	}
	if int64(n) > parked {
		n = int(parked)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		e, ok, err := q.pop(keep)
		if err != nil {
			return st, err
		}
		if !ok {
			break
		}
		if ierr := insert(ctx, e.Record); ierr != nil {
			if perr := q.Park(keep, e.Record, ierr); perr != nil {
				return st, fmt.Errorf("park again after %v: %w", ierr, perr)
			}
			st.Reparked++
			continue
		}
		st.Moved++
	}
	return st, ctx.Err()
}

// pop removes the oldest entry. An entry that does not decode is pushed
// back to the tail before the error is returned.
func (q *Queue) pop(ctx context.Context) (Entry, bool, error) {
	v, err := q.client.LPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(v, &e); err != nil {
		if perr := q.client.RPush(ctx, q.key, v).Err(); perr != nil {
			return Entry{}, false, fmt.Errorf("decode dead letter: %w (push back: %v)", err, perr)
		}
		return Entry{}, false, fmt.Errorf("decode dead letter: %w", err)
	}
	return e, true, nil
}

// Len returns the number of parked records.
func (q *Queue) Len(ctx context.Context) (int64, error) { return q.client.LLen(ctx, q.key).Result() }

// Close closes the Redis client.
func (q *Queue) Close() error { return q.client.Close() }
