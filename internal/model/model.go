package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// --- envelope ---

// Meta is the status block every v2 response carries.
type Meta struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// Envelope is the top-level shape of a v2 API response.
type Envelope[T any] struct {
	Meta     Meta `json:"meta"`
	Response T    `json:"response"`
}

// --- user/likes ---

// Likes is the response of user/likes. LikedPosts is nil when the field is
// absent or null.
type Likes struct {
	LikedCount int     `json:"liked_count"`
	LikedPosts *[]Post `json:"liked_posts"`
}

// --- blog/{blog}/post/reblog ---

type Reblogged struct {
	ID       json.Number `json:"id"`
	IDString string      `json:"id_string,omitempty"`
}

// PostID prefers the numeric id and falls back to id_string.
func (r Reblogged) PostID() (int64, error) {
	if r.ID != "" {
		return r.ID.Int64()
	}
	if r.IDString != "" {
		return strconv.ParseInt(r.IDString, 10, 64)
	}
	return 0, fmt.Errorf("missing id")
}

// --- posts ---

// PostRef identifies a post for unlike and reblog.
type PostRef struct {
	ID        string `json:"id" url:"id"`
	ReblogKey string `json:"reblog_key" url:"reblog_key"`
}

func (r PostRef) Valid() bool { return r.ID != "" && r.ReblogKey != "" }

// State is the state a reblogged post is created in.
type State string

const (
	StatePublished State = "published"
	StateDraft     State = "draft"
	StateQueue     State = "queue"
	StatePrivate   State = "private"
)

// Post is a post object exactly as returned by the API. Numbers are kept as
// json.Number so 64-bit ids are not rounded.
type Post map[string]any

// Ref returns the id and reblog key of p. id_string wins over id when both
// are present.
func (p Post) Ref() PostRef {
	id := p.String("id_string")
	if id == "" {
		id = p.String("id")
	}
	return PostRef{ID: id, ReblogKey: p.String("reblog_key")}
}

func (p Post) BlogName() string { return p.String("blog_name") }
func (p Post) Type() string     { return p.String("type") }
func (p Post) PostURL() string  { return p.String("post_url") }

// LikedAt is the liked_timestamp of a liked post, zero when absent.
func (p Post) LikedAt() time.Time {
	n, ok := p["liked_timestamp"].(json.Number)
	if !ok {
		return time.Time{}
	}
	secs, err := n.Int64()
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

// String renders the field key as a string. Strings and numbers are
// supported; anything else yields "".
func (p Post) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
