package model

import "time"

// User represents the subset of author fields the collector reads.
type User struct {
	ID             string
	Username       string
	Name           string
	Description    string
	Location       string
	CreatedAt      time.Time
	FollowersCount int
	FollowingCount int
	TweetCount     int
	Verified       bool
}

// Tweet represents a search result item as returned by the v1.1 API.
type Tweet struct {
	ID           int64
	IDStr        string
	Text         string
	Language     string
	CreatedAt    time.Time
	RetweetCount int
	LikeCount    int
	Author       User
}

// Record is the flat document persisted per fetched tweet.
type Record struct {
	Query         string    `bson:"query" json:"query"`
	Text          string    `bson:"text" json:"text"`
	Language      string    `bson:"language" json:"language"`
	Date          time.Time `bson:"date" json:"date"`
	Username      string    `bson:"username" json:"username"`
	UserFollowers int       `bson:"user_followers" json:"user_followers"`
	UserLocation  string    `bson:"user_location" json:"user_location"`
	Retweets      int       `bson:"retweets" json:"retweets"`
	Likes         int       `bson:"likes" json:"likes"`
}

// NewRecord projects t onto a Record tagged with the query that produced it.
func NewRecord(query string, t Tweet) Record {
	return Record{
		Query:         query,
		Text:          t.Text,
		Language:      t.Language,
		Date:          t.CreatedAt,
		Username:      t.Author.Name,
		UserFollowers: t.Author.FollowersCount,
		UserLocation:  t.Author.Location,
		Retweets:      t.RetweetCount,
		Likes:         t.LikeCount,
	}
}
