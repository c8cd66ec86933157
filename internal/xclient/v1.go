package xclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/go-twitter/twitter"

	"tweetharvest/internal/model"
	"tweetharvest/internal/util"
)

// Searcher is the part of the API the search cursor needs.
type Searcher interface {
	SearchTweets(ctx context.Context, p SearchParams) (SearchPage, error)
}

// SearchParams maps onto the search/tweets.json query parameters.
type SearchParams struct {
	Query      string
	ResultType string
	Count      int
	Until      string
	MaxID      int64
	Lang       string
	Extended   bool
}

// SearchPage is one page of search results.
type SearchPage struct {
	Tweets      []model.Tweet
	NextResults string
}

// BuildQuery appends the retweet filter and since operator to query.
func BuildQuery(query, since string, excludeRetweets bool) string {
	q := util.NormalizeWhitespace(query)
	if excludeRetweets {
		q += " -filter:retweets"
	}
	if since != "" {
		q += " since:" + since
	}
	return q
}

// SearchTweets runs one standard search request.
func (s *Session) SearchTweets(ctx context.Context, p SearchParams) (SearchPage, error) {
	params := map[string]string{
		"q":     p.Query,
		"count": strconv.Itoa(clamp(p.Count, 1, 100)),
	}
	if p.ResultType != "" {
		params["result_type"] = p.ResultType
	}
	if p.Until != "" {
		params["until"] = p.Until
	}
	if p.MaxID > 0 {
		params["max_id"] = strconv.FormatInt(p.MaxID, 10)
	}
	if p.Lang != "" {
		params["lang"] = p.Lang
	}
	if p.Extended {
		params["tweet_mode"] = "extended"
	}

	var raw twitter.Search
	if err := s.get(ctx, "/search/tweets.json", params, &raw); err != nil {
		return SearchPage{}, err
	}
	out := SearchPage{Tweets: make([]model.Tweet, 0, len(raw.Statuses))}
	for _, t := range raw.Statuses {
		out.Tweets = append(out.Tweets, s.toTweet(t))
	}
	if raw.Metadata != nil {
		out.NextResults = raw.Metadata.NextResults
	}
	return out, nil
}

// VerifyCredentials returns the authenticating user.
func (s *Session) VerifyCredentials(ctx context.Context) (model.User, error) {
	var raw twitter.User
	params := map[string]string{"skip_status": "true"}
	if err := s.get(ctx, "/account/verify_credentials.json", params, &raw); err != nil {
		return model.User{}, err
	}
	return toUser(&raw), nil
}

func (s *Session) toTweet(t twitter.Tweet) model.Tweet {
	// Parse example: Mon Jan 2 15:04:05 -0700 2006
	ts, err := t.CreatedAtTime()
	if err != nil {
		s.log.Debug().Err(err).Str("tweet_id", t.IDStr).Str("created_at", t.CreatedAt).Msg("unparseable created_at, storing zero time")
	}
	text := t.FullText
	if text == "" {
		text = t.Text
	}
	return model.Tweet{
		ID:           t.ID,
		IDStr:        t.IDStr,
		Text:         text,
		Language:     t.Lang,
		CreatedAt:    ts,
		RetweetCount: t.RetweetCount,
		LikeCount:    t.FavoriteCount,
		Author:       toUser(t.User),
	}
}

func toUser(u *twitter.User) model.User {
	if u == nil {
		return model.User{}
	}
	created, _ := time.Parse(time.RubyDate, u.CreatedAt)
	return model.User{
		ID:             u.IDStr,
		Username:       u.ScreenName,
		Name:           u.Name,
		Description:    u.Description,
		Location:       u.Location,
		CreatedAt:      created,
		FollowersCount: u.FollowersCount,
		FollowingCount: u.FriendsCount,
		TweetCount:     u.StatusesCount,
		Verified:       u.Verified,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *Session) oauth1Sign(req *http.Request, queryParams map[string]string) {
	oauth := map[string]string{
		"oauth_consumer_key":     s.creds.ConsumerKey,
		"oauth_nonce":            s.nonceFn(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.nowFn().Unix(), 10),
		"oauth_token":            s.creds.AccessToken,
		"oauth_version":          "1.0",
	}
	oauth["oauth_signature"] = signature(req.Method, req.URL, oauth, queryParams, s.creds.ConsumerSecret, s.creds.AccessSecret)
	hdrKeys := make([]string, 0, len(oauth))
	for k := range oauth {
		hdrKeys = append(hdrKeys, k)
	}
	sort.Strings(hdrKeys)
	authParts := make([]string, 0, len(hdrKeys))
	for _, k := range hdrKeys {
		authParts = append(authParts, fmt.Sprintf("%s=\"%s\"", rfc3986(k), rfc3986(oauth[k])))
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(authParts, ", "))
	req.Header.Set("Accept", "application/json")
}

// signature computes the HMAC-SHA1 OAuth signature over method, the URL
// without its query, and the merged oauth and request parameters.
func signature(method string, u *url.URL, oauth, params map[string]string, consumerSecret, tokenSecret string) string {
	all := make(map[string]string, len(oauth)+len(params))
	for k, v := range oauth {
		all[k] = v
	}
	for k, v := range params {
		all[k] = v
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	paramParts := make([]string, 0, len(keys))
	for _, k := range keys {
		paramParts = append(paramParts, rfc3986(k)+"="+rfc3986(all[k]))
	}
	baseURL := u.Scheme + "://" + u.Host + u.Path
	base := strings.ToUpper(method) + "&" + rfc3986(baseURL) + "&" + rfc3986(strings.Join(paramParts, "&"))
	signingKey := rfc3986(consumerSecret) + "&" + rfc3986(tokenSecret)
	mac := hmac.New(sha1.New, []byte(signingKey))
	_, _ = mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func encodeQuery(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, rfc3986(k)+"="+rfc3986(m[k]))
	}
	return strings.Join(parts, "&")
}

// RFC 3986 percent-encoding for OAuth
func rfc3986(s string) string {
	return strings.NewReplacer("+", "%20", "*", "%2A").Replace(url.QueryEscape(s))
}
