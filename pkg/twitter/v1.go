package twitter

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"roostdb/pkg/models"
)

// V1Client calls the v1.1 endpoints with OAuth 1.0a user-context
// signatures. The timestamp and nonce sources are injectable so the
// signature base string is reproducible under test.
type V1Client struct {
	Base           *HTTPClient
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
	nowFn          func() time.Time
	nonceFn        func() string
}

// NewV1Client wraps the base client with user-context credentials.
func NewV1Client(base *HTTPClient, ck, cs, at, as string) *V1Client {
	return &V1Client{
		Base:           base,
		ConsumerKey:    ck,
		ConsumerSecret: cs,
		AccessToken:    at,
		AccessSecret:   as,
		nowFn:          time.Now,
		nonceFn:        func() string { return strconv.FormatInt(rand.Int63(), 36) },
	}
}

// VerifyCredentials resolves the authenticated account. Called once at
// startup when the account is not pinned in configuration.
func (c *V1Client) VerifyCredentials(ctx context.Context) (*models.User, error) {
	resp, err := c.get(ctx, "/account/verify_credentials.json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var raw wireUser
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	u := raw.toModel()
	if u.ID == 0 {
		return nil, fmt.Errorf("credentials response has no user id")
	}
	return u, nil
}

// HomeTimeline returns recent posts from the account's home feed,
// newest first. sinceID of 0 means no lower bound.
func (c *V1Client) HomeTimeline(ctx context.Context, count int, sinceID int64) ([]*models.Post, error) {
	params := map[string]string{
		"count":      strconv.Itoa(clampCount(count, 200)),
		"tweet_mode": "extended",
	}
	if sinceID > 0 {
		params["since_id"] = strconv.FormatInt(sinceID, 10)
	}
	resp, err := c.get(ctx, "/statuses/home_timeline.json", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodePosts(resp.Body)
}

// UserTimeline returns recent posts authored by screenName, or by the
// authenticated user when screenName is empty.
func (c *V1Client) UserTimeline(ctx context.Context, screenName string, count int) ([]*models.Post, error) {
	params := map[string]string{
		"count":      strconv.Itoa(clampCount(count, 200)),
		"tweet_mode": "extended",
	}
	if screenName != "" {
		params["screen_name"] = screenName
	}
	resp, err := c.get(ctx, "/statuses/user_timeline.json", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodePosts(resp.Body)
}

// Search runs a recent-post search bounded by the id window
// (sinceID, maxID]. Either bound may be 0 for unbounded.
func (c *V1Client) Search(ctx context.Context, query string, sinceID, maxID int64, count int) ([]*models.Post, error) {
	params := map[string]string{
		"q":           query,
		"count":       strconv.Itoa(clampCount(count, 100)),
		"result_type": "recent",
		"tweet_mode":  "extended",
	}
	if sinceID > 0 {
		params["since_id"] = strconv.FormatInt(sinceID, 10)
	}
	if maxID > 0 {
		params["max_id"] = strconv.FormatInt(maxID, 10)
	}
	resp, err := c.get(ctx, "/search/tweets.json", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var raw struct {
		Statuses []*wirePost `json:"statuses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode search page: %w", err)
	}
	return toModels(raw.Statuses)
}

// Favorite marks the post as liked by the account.
func (c *V1Client) Favorite(ctx context.Context, id string) error {
	return c.action(ctx, "/favorites/create.json", map[string]string{"id": id})
}

// Unfavorite removes the account's like from the post.
func (c *V1Client) Unfavorite(ctx context.Context, id string) error {
	return c.action(ctx, "/favorites/destroy.json", map[string]string{"id": id})
}

// Retweet shares the post from the account.
func (c *V1Client) Retweet(ctx context.Context, id string) error {
	return c.action(ctx, "/statuses/retweet/"+url.PathEscape(id)+".json", nil)
}

// Unretweet withdraws the account's share of the post.
func (c *V1Client) Unretweet(ctx context.Context, id string) error {
	return c.action(ctx, "/statuses/unretweet/"+url.PathEscape(id)+".json", nil)
}

func (c *V1Client) get(ctx context.Context, path string, params map[string]string) (*http.Response, error) {
	reqURL := c.Base.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + encodeQuery(params)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	c.oauth1Sign(req, params)
	return c.Base.do(ctx, req)
}

// action issues a signed mutating call. The success body is drained and
// discarded: confirmation state is already held locally, and a rejection
// surfaces as *APIError out of the base client.
func (c *V1Client) action(ctx context.Context, path string, params map[string]string) error {
	reqURL := c.Base.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + encodeQuery(params)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return err
	}
	c.oauth1Sign(req, params)
	resp, err := c.Base.do(ctx, req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// oauth1Sign computes the HMAC-SHA1 request signature over the method,
// base URL and the merged oauth/request parameters, and sets the
// Authorization header.
func (c *V1Client) oauth1Sign(req *http.Request, requestParams map[string]string) {
	oauth := map[string]string{
		"oauth_consumer_key":     c.ConsumerKey,
		"oauth_nonce":            c.nonceFn(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(c.nowFn().Unix(), 10),
		"oauth_token":            c.AccessToken,
		"oauth_version":          "1.0",
	}
	all := make(map[string]string, len(oauth)+len(requestParams))
	for k, v := range oauth {
		all[k] = v
	}
	for k, v := range requestParams {
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
	paramStr := strings.Join(paramParts, "&")
	baseURL := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	base := req.Method + "&" + rfc3986(baseURL) + "&" + rfc3986(paramStr)
	signingKey := rfc3986(c.ConsumerSecret) + "&" + rfc3986(c.AccessSecret)
	mac := hmac.New(sha1.New, []byte(signingKey))
	_, _ = mac.Write([]byte(base))
	oauth["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	hdrKeys := make([]string, 0, len(oauth))
	for k := range oauth {
		hdrKeys = append(hdrKeys, k)
	}
	sort.Strings(hdrKeys)
	authParts := make([]string, 0, len(hdrKeys))
	for _, k := range hdrKeys {
		authParts = append(authParts, fmt.Sprintf("%s=%q", rfc3986(k), rfc3986(oauth[k])))
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(authParts, ", "))
	req.Header.Set("Accept", "application/json")
}

func encodeQuery(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(m[k]))
	}
	return strings.Join(parts, "&")
}

// rfc3986 percent-encodes for OAuth signature material, which is
// stricter than form encoding about "+" and "*".
func rfc3986(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(url.QueryEscape(s), "+", "%20"), "*", "%2A")
}

func clampCount(v, max int) int {
	if v <= 0 {
		return 100
	}
	if v > max {
		return max
	}
	return v
}
