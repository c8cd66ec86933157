package cursor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetharvest/internal/model"
	"tweetharvest/internal/xclient"
)

type fakeSearcher struct {
	pages [][]model.Tweet
	errs  []error
	calls []xclient.SearchParams
}

func (f *fakeSearcher) SearchTweets(ctx context.Context, p xclient.SearchParams) (xclient.SearchPage, error) {
	f.calls = append(f.calls, p)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return xclient.SearchPage{}, err
		}
	}
	if len(f.pages) == 0 {
		return xclient.SearchPage{}, nil
	}
	p0 := f.pages[0]
	f.pages = f.pages[1:]
	return xclient.SearchPage{Tweets: p0}, nil
}

func ids(ns ...int64) []model.Tweet {
	out := make([]model.Tweet, 0, len(ns))
	for _, n := range ns {
		out = append(out, model.Tweet{ID: n})
	}
	return out
}

func drain(t *testing.T, c *Cursor) []int64 {
	t.Helper()
	var got []int64
	for {
		tw, err := c.Next(context.Background())
		if errors.Is(err, ErrExhausted) {
			return got
		}
		require.NoError(t, err)
		got = append(got, tw.ID)
	}
}

func TestCursorPagesWithMaxID(t *testing.T) {
	f := &fakeSearcher{pages: [][]model.Tweet{ids(30, 20), ids(15, 10)}}
	c := New(f, Params{Query: "golang", Since: "2020-01-01", Until: "2020-01-31", ExcludeRetweets: true}, 200)

	assert.Equal(t, []int64{30, 20, 15, 10}, drain(t, c))
	require.Len(t, f.calls, 3)
	assert.Equal(t, "golang -filter:retweets since:2020-01-01", f.calls[0].Query)
	assert.Equal(t, "mixed", f.calls[0].ResultType)
	assert.Equal(t, "2020-01-31", f.calls[0].Until)
	assert.Equal(t, 100, f.calls[0].Count)
	assert.Equal(t, int64(0), f.calls[0].MaxID)
	assert.Equal(t, int64(19), f.calls[1].MaxID)
	assert.Equal(t, int64(9), f.calls[2].MaxID)
}

func TestCursorStopsAtLimit(t *testing.T) {
	f := &fakeSearcher{pages: [][]model.Tweet{ids(5, 4, 3), ids(2, 1)}}
	c := New(f, Params{Query: "q"}, 4)

	assert.Equal(t, []int64{5, 4, 3, 2}, drain(t, c))
	assert.Equal(t, 4, c.Yielded())
	assert.Equal(t, 4, f.calls[0].Count)
	assert.Equal(t, 1, f.calls[1].Count)
}

func TestCursorZeroLimitYieldsNothing(t *testing.T) {
	f := &fakeSearcher{pages: [][]model.Tweet{ids(1)}}
	assert.Empty(t, drain(t, New(f, Params{Query: "q"}, 0)))
	assert.Empty(t, f.calls)
}

func TestCursorEmptyResult(t *testing.T) {
	f := &fakeSearcher{}
	assert.Empty(t, drain(t, New(f, Params{Query: "q"}, 200)))
	assert.Len(t, f.calls, 1)
}

func TestCursorResumesSamePositionAfterError(t *testing.T) {
	boom := &xclient.APIError{Kind: xclient.KindRateLimited, StatusCode: 429}
	f := &fakeSearcher{pages: [][]model.Tweet{ids(9, 8), ids(7)}, errs: []error{nil, boom}}
	c := New(f, Params{Query: "q"}, 10)
	ctx := context.Background()

	for _, want := range []int64{9, 8} {
		tw, err := c.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, tw.ID)
	}
	_, err := c.Next(ctx)
	assert.ErrorIs(t, err, xclient.ErrUpstream)

	tw, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), tw.ID)
	assert.Equal(t, f.calls[1].MaxID, f.calls[2].MaxID)
	assert.Equal(t, 3, c.Yielded())
}

func TestValidateWindow(t *testing.T) {
	assert.NoError(t, ValidateWindow("2020-01-01", "2020-02-01"))
	assert.NoError(t, ValidateWindow("", ""))
	assert.Error(t, ValidateWindow("2020-13-01", ""))
	assert.Error(t, ValidateWindow("2020-02-01", "2020-01-01"))
}
