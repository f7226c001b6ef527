package models

import (
	"fmt"
	"strconv"
	"time"
)

// Kind tags the structural variant of a Post. A post is either a plain
// post or a retweet wrapper around another post; never both.
type Kind int

const (
	KindPlain Kind = iota
	KindRetweet
)

type Post struct {
	ID    int64  `json:"id"`
	IDStr string `json:"id_str"`
	Text  string `json:"text,omitempty"`
	// CreatedAt is the remote-assigned creation time
	CreatedAt time.Time `json:"created_at"`
	User      *User     `json:"user,omitempty"`

	// Engagement counters; never negative
	RetweetCount  int `json:"retweet_count"`
	FavoriteCount int `json:"favorite_count"`

	// Per-account interaction flags
	Favorited bool `json:"favorited,omitempty"`
	Retweeted bool `json:"retweeted,omitempty"`

	// InReplyToID is the id of the post this one replies to, 0 if none
	InReplyToID int64 `json:"in_reply_to_id,omitempty"`

	// RetweetedStatus is set iff this post is a retweet wrapper.
	// QuotedStatus is independent and may coexist with either form.
	RetweetedStatus *Post `json:"retweeted_status,omitempty"`
	QuotedStatus    *Post `json:"quoted_status,omitempty"`

	// Extra holds app-local state that is not part of the wire format
	Extra Extra `json:"extra"`

	// Translating marks an in-flight translation; never persisted
	Translating bool `json:"-"`
}

// NewPost builds a plain post.
func NewPost(id int64, text string, author *User, createdAt time.Time) *Post {
	return &Post{
		ID:        id,
		IDStr:     strconv.FormatInt(id, 10),
		Text:      text,
		CreatedAt: createdAt,
		User:      author,
	}
}

// NewRetweet wraps target in a retweet by author. The wrapper gets its own
// identity; flags and counters stay on the target. Wrapping a wrapper
// attaches to its innermost target, so a wrapper never nests.
func NewRetweet(id int64, author *User, createdAt time.Time, target *Post) (*Post, error) {
	if target == nil {
		return nil, fmt.Errorf("retweet of nil post")
	}
	return &Post{
		ID:              id,
		IDStr:           strconv.FormatInt(id, 10),
		CreatedAt:       createdAt,
		User:            author,
		RetweetedStatus: target.Target(),
	}, nil
}

// Kind reports whether the post is a plain post or a retweet wrapper.
func (p *Post) Kind() Kind {
	if p.RetweetedStatus != nil {
		return KindRetweet
	}
	return KindPlain
}

// Target resolves the post that carries interaction flags and engagement
// counters: the retweeted post for a retweet wrapper, the post itself
// otherwise. Wrappers are never mutated for favorite/retweet state.
func (p *Post) Target() *Post {
	if p.RetweetedStatus != nil {
		return p.RetweetedStatus
	}
	return p
}

// Canonical resolves the post that owns shared extension data such as a
// translation, so the same underlying content reads the same through any
// wrapper that points at it.
func (p *Post) Canonical() *Post {
	return p.Target()
}

// Canonicalize normalizes a post decoded from the wire: derives IDStr when
// only the integer id was present, clamps counters to zero, flattens
// double-wrapped retweets down to their innermost target and recurses into
// nested relations. It errors only when no usable identity survives.
func (p *Post) Canonicalize() error {
	if p.ID == 0 && p.IDStr == "" {
		return fmt.Errorf("post has no id")
	}
	if p.IDStr == "" {
		p.IDStr = strconv.FormatInt(p.ID, 10)
	}
	if p.ID == 0 {
		id, err := strconv.ParseInt(p.IDStr, 10, 64)
		if err != nil {
			return fmt.Errorf("post id_str %q: %w", p.IDStr, err)
		}
		p.ID = id
	}
	if p.RetweetCount < 0 {
		p.RetweetCount = 0
	}
	if p.FavoriteCount < 0 {
		p.FavoriteCount = 0
	}
	for p.RetweetedStatus != nil && p.RetweetedStatus.RetweetedStatus != nil {
		p.RetweetedStatus = p.RetweetedStatus.RetweetedStatus
	}
	if p.RetweetedStatus != nil {
		if err := p.RetweetedStatus.Canonicalize(); err != nil {
			return fmt.Errorf("retweeted status of %s: %w", p.IDStr, err)
		}
	}
	if p.QuotedStatus != nil {
		if err := p.QuotedStatus.Canonicalize(); err != nil {
			return fmt.Errorf("quoted status of %s: %w", p.IDStr, err)
		}
	}
	return nil
}
