// Package cursor pages through search results one tweet at a time.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tweetharvest/internal/model"
	"tweetharvest/internal/xclient"
)

// ErrExhausted is returned by Next once the sequence has ended.
var ErrExhausted = errors.New("cursor exhausted")

// DayLayout is the date format of the search window bounds.
const DayLayout = "2006-01-02"

// maxPageSize is the largest count search/tweets.json accepts.
const maxPageSize = 100

// Params describes the search a cursor walks.
type Params struct {
	Query           string
	Since           string
	Until           string
	ResultType      string
	ExcludeRetweets bool
	Lang            string
	Extended        bool
}

// Cursor is a lazy, finite sequence of search results bounded by a limit.
// A failed fetch leaves the cursor where it was, so calling Next again
// retries the same page.
type Cursor struct {
	searcher xclient.Searcher
	params   Params
	limit    int
	yielded  int
	buf      []model.Tweet
	maxID    int64
	done     bool
}

// New returns a cursor yielding at most limit tweets.
func New(s xclient.Searcher, p Params, limit int) *Cursor {
	if p.ResultType == "" {
		p.ResultType = "mixed"
	}
	return &Cursor{searcher: s, params: p, limit: limit}
}

// Next returns the next tweet, ErrExhausted at the end, or the fetch error.
func (c *Cursor) Next(ctx context.Context) (model.Tweet, error) {
	if c.yielded >= c.limit {
		return model.Tweet{}, ErrExhausted
	}
	if len(c.buf) == 0 {
		if c.done {
			return model.Tweet{}, ErrExhausted
		}
		if err := c.fetch(ctx); err != nil {
			return model.Tweet{}, err
		}
		if len(c.buf) == 0 {
			return model.Tweet{}, ErrExhausted
		}
	}
	t := c.buf[0]
	c.buf = c.buf[1:]
	c.yielded++
	return t, nil
}

// Yielded reports how many tweets Next has returned.
func (c *Cursor) Yielded() int { return c.yielded }

func (c *Cursor) fetch(ctx context.Context) error {
	page, err := c.searcher.SearchTweets(ctx, xclient.SearchParams{
		Query:      xclient.BuildQuery(c.params.Query, c.params.Since, c.params.ExcludeRetweets),
		ResultType: c.params.ResultType,
		Count:      min(maxPageSize, c.limit-c.yielded),
		Until:      c.params.Until,
		MaxID:      c.maxID,
		Lang:       c.params.Lang,
		Extended:   c.params.Extended,
	})
	if err != nil {
		return err
	}
	var lowest int64
	for _, t := range page.Tweets {
		if t.ID > 0 && (lowest == 0 || t.ID < lowest) {
			lowest = t.ID
		}
	}
	c.buf = page.Tweets
	// without ids there is no way to ask for the next page
	if len(page.Tweets) == 0 || lowest == 0 {
		c.done = true
		return nil
	}
	c.maxID = lowest - 1
	return nil
}

// ParseDay parses a YYYY-MM-DD window bound.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// ValidateWindow checks both bounds parse and since is not after until.
// Empty bounds are allowed.
func ValidateWindow(since, until string) error {
	var s, u time.Time
	var err error
	if since != "" {
		if s, err = ParseDay(since); err != nil {
			return err
		}
	}
	if until != "" {
		if u, err = ParseDay(until); err != nil {
			return err
		}
	}
	if since != "" && until != "" && s.After(u) {
		return fmt.Errorf("since %s is after until %s", since, until)
	}
	return nil
}
