package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetharvest/internal/model"
	"tweetharvest/internal/store"
	"tweetharvest/internal/xclient"
)

// step is one scripted SearchTweets answer.
type step struct {
	tweets []model.Tweet
	err    error
}

type fakeSearcher struct {
	steps  []step
	calls  []xclient.SearchParams
	events *[]string
}

func (f *fakeSearcher) SearchTweets(ctx context.Context, p xclient.SearchParams) (xclient.SearchPage, error) {
	f.calls = append(f.calls, p)
	if f.events != nil {
		*f.events = append(*f.events, "search:"+p.Query)
	}
	if len(f.steps) == 0 {
		return xclient.SearchPage{}, nil
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	return xclient.SearchPage{Tweets: s.tweets}, s.err
}

type memSink struct {
	recs   []model.Record
	calls  int
	failAt map[int]error
}

func (m *memSink) Insert(ctx context.Context, rec model.Record) error {
	m.calls++
	if err, ok := m.failAt[m.calls]; ok {
		return err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memSink) Close(context.Context) error { return nil }

type memDeadLetter struct {
	parked []model.Record
	err    error
}

func (d *memDeadLetter) Park(ctx context.Context, rec model.Record, cause error) error {
	if d.err != nil {
		return d.err
	}
	d.parked = append(d.parked, rec)
	return nil
}

func tweet(id int64) model.Tweet {
	return model.Tweet{
		ID:           id,
		IDStr:        fmt.Sprint(id),
		Text:         fmt.Sprintf("tweet %d", id),
		Language:     "en",
		CreatedAt:    time.Date(2020, 5, 1, 0, 0, int(id), 0, time.UTC),
		RetweetCount: int(id),
		LikeCount:    int(id) * 2,
		Author:       model.User{Name: "user", FollowersCount: 10, Location: "Earth"},
	}
}

func tweets(ids ...int64) []model.Tweet {
	out := make([]model.Tweet, 0, len(ids))
	for _, id := range ids {
		out = append(out, tweet(id))
	}
	return out
}

func records(query string, ids ...int64) []model.Record {
	out := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.NewRecord(query, tweet(id)))
	}
	return out
}

func newCollector(f *fakeSearcher, sink store.Sink, logBuf *bytes.Buffer) (*Collector, *[]time.Duration) {
	var slept []time.Duration
	c := &Collector{
		Searcher: f,
		Sink:     sink,
		Log:      zerolog.New(logBuf),
		Search:   DefaultSearchOptions(),
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	return c, &slept
}

var rateLimited = &xclient.APIError{Kind: xclient.KindRateLimited, StatusCode: 429, Code: 88, Message: "Rate limit exceeded"}

func TestCollectQueryWritesOneRecordPerTweet(t *testing.T) {
	f := &fakeSearcher{steps: []step{{tweets: tweets(5, 4, 3)}}}
	sink := &memSink{}
	c, slept := newCollector(f, sink, &bytes.Buffer{})

	st, err := c.CollectQuery(context.Background(), "zelda", "2020-04-01", "2020-05-02", DefaultLimit)
	require.NoError(t, err)
	assert.Equal(t, records("zelda", 5, 4, 3), sink.recs)
	assert.Equal(t, 3, st.Fetched)
	assert.Equal(t, 3, st.Stored)
	assert.Empty(t, *slept)

	p := f.calls[0]
	assert.Equal(t, "zelda -filter:retweets since:2020-04-01", p.Query)
	assert.Equal(t, "mixed", p.ResultType)
	assert.Equal(t, "2020-05-02", p.Until)
}

func TestCollectQueryRespectsLimit(t *testing.T) {
	f := &fakeSearcher{steps: []step{{tweets: tweets(9, 8, 7, 6)}}}
	sink := &memSink{}
	c, _ := newCollector(f, sink, &bytes.Buffer{})

	st, err := c.CollectQuery(context.Background(), "q", "", "", 2)
	require.NoError(t, err)
	assert.Equal(t, records("q", 9, 8), sink.recs)
	assert.Equal(t, 2, st.Fetched)
}

func TestCollectQueryContinuesAfterWriteError(t *testing.T) {
	f := &fakeSearcher{steps: []step{{tweets: tweets(5, 4, 3, 2)}}}
	sink := &memSink{failAt: map[int]error{2: store.Wrap("mongo", errors.New("duplicate key"))}}
	logBuf := &bytes.Buffer{}
	c, _ := newCollector(f, sink, logBuf)

	st, err := c.CollectQuery(context.Background(), "q", "", "", DefaultLimit)
	require.NoError(t, err)
	assert.Equal(t, records("q", 5, 3, 2), sink.recs)
	assert.Equal(t, 4, st.Fetched)
	assert.Equal(t, 3, st.Stored)
	assert.Equal(t, 1, st.WriteErrors)
	assert.Contains(t, logBuf.String(), "error writing record to sink")
}

func TestCollectQueryParksFailedWrites(t *testing.T) {
	f := &fakeSearcher{steps: []step{{tweets: tweets(2, 1)}}}
	sink := &memSink{failAt: map[int]error{1: store.Wrap("mongo", errors.New("timeout"))}}
	c, _ := newCollector(f, sink, &bytes.Buffer{})
	dl := &memDeadLetter{}
	c.DeadLetter = dl

	st, err := c.CollectQuery(context.Background(), "q", "", "", DefaultLimit)
	require.NoError(t, err)
	assert.Equal(t, records("q", 2), dl.parked)
	assert.Equal(t, 1, st.DeadLettered)

	// a failing dead letter still does not stop the loop
	f = &fakeSearcher{steps: []step{{tweets: tweets(2, 1)}}}
	sink = &memSink{failAt: map[int]error{1: store.Wrap("mongo", errors.New("timeout"))}}
	c, _ = newCollector(f, sink, &bytes.Buffer{})
	c.DeadLetter = &memDeadLetter{err: errors.New("redis down")}
	st, err = c.CollectQuery(context.Background(), "q", "", "", DefaultLimit)
	require.NoError(t, err)
	assert.Equal(t, records("q", 1), sink.recs)
	assert.Equal(t, 0, st.DeadLettered)
}

func TestCollectQueryBacksOffAndResumes(t *testing.T) {
	f := &fakeSearcher{steps: []step{
		{tweets: tweets(9, 8)},
		{err: rateLimited},
		{tweets: tweets(7)},
	}}
	sink := &memSink{}
	c, slept := newCollector(f, sink, &bytes.Buffer{})

	st, err := c.CollectQuery(context.Background(), "q", "", "", DefaultLimit)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{60 * time.Second}, *slept)
	assert.Equal(t, records("q", 9, 8, 7), sink.recs)
	assert.Equal(t, 1, st.Backoffs)
	// the retried request asks for the same page
	assert.Equal(t, f.calls[1].MaxID, f.calls[2].MaxID)
	assert.Equal(t, int64(7), f.calls[1].MaxID)
}

func TestCollectQueryBackoffGrowsLinearly(t *testing.T) {
	f := &fakeSearcher{steps: []step{
		{err: rateLimited},
		{err: &xclient.APIError{Kind: xclient.KindServer, StatusCode: 503}},
		{err: rateLimited},
		{tweets: tweets(1)},
	}}
	c, slept := newCollector(f, &memSink{}, &bytes.Buffer{})

	_, err := c.CollectQuery(context.Background(), "q", "", "", DefaultLimit)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second, 180 * time.Second}, *slept)
}

func TestCollectQueryMaxBackoffs(t *testing.T) {
	f := &fakeSearcher{steps: []step{{err: rateLimited}, {err: rateLimited}, {err: rateLimited}}}
	c, slept := newCollector(f, &memSink{}, &bytes.Buffer{})
	c.MaxBackoffs = 2

	st, err := c.CollectQuery(context.Background(), "q", "", "", DefaultLimit)
	assert.ErrorIs(t, err, ErrBackoffExhausted)
	assert.Equal(t, 2, st.Backoffs)
	assert.Len(t, *slept, 2)
}

func TestCollectQueryEmptyResult(t *testing.T) {
	f := &fakeSearcher{}
	sink := &memSink{}
	logBuf := &bytes.Buffer{}
	c, slept := newCollector(f, sink, logBuf)

	st, err := c.CollectQuery(context.Background(), "nothing", "", "", DefaultLimit)
	require.NoError(t, err)
	assert.Zero(t, sink.calls)
	assert.Zero(t, st.Fetched)
	assert.Empty(t, *slept)
	assert.Contains(t, logBuf.String(), "finished collecting and storing tweets")
}

func TestCollectQueryPropagatesUnclassifiedErrors(t *testing.T) {
	boom := errors.New("decoder exploded")
	f := &fakeSearcher{steps: []step{{err: boom}}}
	c, slept := newCollector(f, &memSink{}, &bytes.Buffer{})
	_, err := c.CollectQuery(context.Background(), "q", "", "", DefaultLimit)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, *slept)

	f = &fakeSearcher{steps: []step{{tweets: tweets(2, 1)}}}
	sink := &memSink{failAt: map[int]error{1: context.Canceled}}
	c, _ = newCollector(f, sink, &bytes.Buffer{})
	_, err = c.CollectQuery(context.Background(), "q", "", "", DefaultLimit)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sink.calls)
}

func TestCollectQueryStopsWhenSleepIsCancelled(t *testing.T) {
	f := &fakeSearcher{steps: []step{{err: rateLimited}}}
	c, _ := newCollector(f, &memSink{}, &bytes.Buffer{})
	c.Sleep = func(ctx context.Context, d time.Duration) error { return context.Canceled }

	_, err := c.CollectQuery(context.Background(), "q", "", "", DefaultLimit)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, outcomeOK, classify(nil))
	assert.Equal(t, outcomeWriteFailed, classify(store.Wrap("sqlite", errors.New("x"))))
	assert.Equal(t, outcomeUpstream, classify(fmt.Errorf("page: %w", rateLimited)))
	assert.Equal(t, outcomeFatal, classify(errors.New("x")))
}
