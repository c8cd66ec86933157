package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRecordIsProjection(t *testing.T) {
	created := time.Date(2020, 3, 4, 10, 11, 12, 0, time.UTC)
	tw := Tweet{
		ID:           42,
		IDStr:        "42",
		Text:         "  spaced   text with a link https://t.co/x ",
		Language:     "it",
		CreatedAt:    created,
		RetweetCount: 7,
		LikeCount:    11,
		Author:       User{Name: "Ada", Username: "ada", FollowersCount: 1500, Location: "Milano"},
	}
	rec := NewRecord("videogames", tw)
	assert.Equal(t, Record{
		Query:         "videogames",
		Text:          tw.Text,
		Language:      "it",
		Date:          created,
		Username:      "Ada",
		UserFollowers: 1500,
		UserLocation:  "Milano",
		Retweets:      7,
		Likes:         11,
	}, rec)
}
