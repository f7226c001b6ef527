package twitter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"roostdb/pkg/logger"
	"roostdb/pkg/models"
)

// wirePost mirrors the v1.1 status payload. Named rather than anonymous
// because retweet and quote relations nest the same shape.
type wirePost struct {
	ID                int64     `json:"id"`
	IDStr             string    `json:"id_str"`
	Text              string    `json:"text"`
	FullText          string    `json:"full_text"`
	CreatedAt         string    `json:"created_at"`
	User              *wireUser `json:"user"`
	RetweetCount      int       `json:"retweet_count"`
	FavoriteCount     int       `json:"favorite_count"`
	Favorited         bool      `json:"favorited"`
	Retweeted         bool      `json:"retweeted"`
	InReplyToStatusID int64     `json:"in_reply_to_status_id"`
	RetweetedStatus   *wirePost `json:"retweeted_status"`
	QuotedStatus      *wirePost `json:"quoted_status"`
}

type wireUser struct {
	ID         int64  `json:"id"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`
}

func (w *wireUser) toModel() *models.User {
	if w == nil {
		return nil
	}
	return &models.User{ID: w.ID, Handle: w.ScreenName, Name: w.Name}
}

// toModel maps one wire status into the domain shape. Extended statuses
// carry the body in full_text; classic ones in text. A creation
// timestamp that fails to parse is left zero rather than dropping the
// whole post.
func (w *wirePost) toModel() *models.Post {
	if w == nil {
		return nil
	}
	ts, err := time.Parse(time.RubyDate, w.CreatedAt)
	if err != nil && w.CreatedAt != "" {
		logger.Debug("created_at_unparsed", "id", w.IDStr, "value", w.CreatedAt)
	}
	text := w.FullText
	if text == "" {
		text = w.Text
	}
	return &models.Post{
		ID:              w.ID,
		IDStr:           w.IDStr,
		Text:            text,
		CreatedAt:       ts,
		User:            w.User.toModel(),
		RetweetCount:    w.RetweetCount,
		FavoriteCount:   w.FavoriteCount,
		Favorited:       w.Favorited,
		Retweeted:       w.Retweeted,
		InReplyToID:     w.InReplyToStatusID,
		RetweetedStatus: w.RetweetedStatus.toModel(),
		QuotedStatus:    w.QuotedStatus.toModel(),
	}
}

// toModels converts and canonicalizes a page of wire statuses. A post
// without a usable identity is skipped, not fatal.
func toModels(raw []*wirePost) ([]*models.Post, error) {
	out := make([]*models.Post, 0, len(raw))
	for _, w := range raw {
		p := w.toModel()
		if p == nil {
			continue
		}
		if err := p.Canonicalize(); err != nil {
			logger.Warn("wire_post_skipped", "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func decodePosts(r io.Reader) ([]*models.Post, error) {
	var raw []*wirePost
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return toModels(raw)
}
