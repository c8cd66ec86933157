// Package credentials loads the OAuth 1.0a secrets used to sign API calls.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrMissingField is returned when the keys file lacks one of the four secrets.
var ErrMissingField = errors.New("missing credential field")

// Twitter holds the four OAuth 1.0a secrets.
type Twitter struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
	AccessToken    string `json:"access_token"`
	AccessSecret   string `json:"access_secret"`
}

// String redacts the secrets so a Twitter value is safe to log.
func (t Twitter) String() string {
	return fmt.Sprintf("Twitter{consumer_key:%s access_token:%s}", redact(t.ConsumerKey), redact(t.AccessToken))
}

type keysFile struct {
	Twitter *Twitter `json:"Twitter"`
}

// Load reads the JSON keys file at path. The file must hold a top-level
// "Twitter" object with consumer_key, consumer_secret, access_token and
// access_secret.
func Load(path string) (Twitter, error) {
	var out Twitter
	b, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read keys file: %w", err)
	}
	var kf keysFile
	if err := json.Unmarshal(b, &kf); err != nil {
		return out, fmt.Errorf("parse keys file %s: %w", path, err)
	}
	if kf.Twitter == nil {
		return out, fmt.Errorf("%s: %w: Twitter", path, ErrMissingField)
	}
	out = *kf.Twitter
	for name, v := range map[string]string{
		"consumer_key":    out.ConsumerKey,
		"consumer_secret": out.ConsumerSecret,
		"access_token":    out.AccessToken,
		"access_secret":   out.AccessSecret,
	} {
		if v == "" {
			return Twitter{}, fmt.Errorf("%s: %w: Twitter.%s", path, ErrMissingField, name)
		}
	}
	return out, nil
}

// LoadTwitter returns consumer key, consumer secret, access token and access
// secret, in that order.
func LoadTwitter(path string) (string, string, string, string, error) {
	t, err := Load(path)
	if err != nil {
		return "", "", "", "", err
	}
	return t.ConsumerKey, t.ConsumerSecret, t.AccessToken, t.AccessSecret, nil
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
