// Package ethos is the HTTP client for the upstream reputation network API:
// review activity streams, user profiles, and profile search.
package ethos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/trust-ethos/ethos-r4r/internal/analysis"
	"github.com/trust-ethos/ethos-r4r/internal/model"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.ethos.network"

// MaxActivityLimit is the record-count ceiling per activity fetch. The
// upstream API rejects larger pages.
const MaxActivityLimit = 500

// ErrUnavailable marks upstream failures: network errors, 5xx responses,
// malformed bodies. Callers must treat it as "could not load data", never as
// a legitimately empty result.
var ErrUnavailable = errors.New("ethos: upstream unavailable")

// ErrNotFound is returned when a userkey does not exist upstream.
var ErrNotFound = errors.New("ethos: user not found")

// Client calls the upstream API. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL. An empty baseURL falls
// back to production.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ActivityPage is one page of the activity feed.
type ActivityPage struct {
	Values []analysis.RawActivity `json:"values"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// Activities fetches up to MaxActivityLimit review activities for a subject.
// DirectionGiven fetches reviews the subject authored, DirectionReceived
// reviews written about them. The two directions are independent reads;
// callers analyzing a subject fetch both concurrently.
func (c *Client) Activities(ctx context.Context, userkey string, dir model.Direction) ([]analysis.RawActivity, error) {
	role := "author"
	if dir == model.DirectionReceived {
		role = "subject"
	}

	q := url.Values{}
	q.Set("userkey", userkey)
	q.Set("activityType", "review")
	q.Set("limit", strconv.Itoa(MaxActivityLimit))
	u := fmt.Sprintf("%s/api/v2/activities/%s?%s", c.baseURL, role, q.Encode())

	var page ActivityPage
	if err := c.getJSON(ctx, u, &page); err != nil {
		return nil, fmt.Errorf("ethos: fetch %s activities for %s: %w", dir, userkey, err)
	}
	return page.Values, nil
}

// userPayload is the upstream profile shape.
type userPayload struct {
	Userkey     string `json:"userkey"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatarUrl"`
	Score       int    `json:"score"`
	XPTotal     int64  `json:"xpTotal"`
}

func (u userPayload) profile() model.Profile {
	return model.Profile{
		Userkey:     u.Userkey,
		DisplayName: u.DisplayName,
		Username:    u.Username,
		Avatar:      u.AvatarURL,
		Score:       u.Score,
		XP:          u.XPTotal,
	}
}

// User fetches the subject's profile card: display identity, credibility
// score, and XP.
func (c *Client) User(ctx context.Context, userkey string) (model.Profile, error) {
	u := fmt.Sprintf("%s/api/v2/users/%s", c.baseURL, url.PathEscape(userkey))
	var payload userPayload
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return model.Profile{}, fmt.Errorf("ethos: fetch user %s: %w", userkey, err)
	}
	return payload.profile(), nil
}

// SearchUsers runs a typeahead profile search.
func (c *Client) SearchUsers(ctx context.Context, query string, limit int) ([]model.Profile, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	u := fmt.Sprintf("%s/api/v2/users/search?%s", c.baseURL, q.Encode())

	var payload struct {
		Values []userPayload `json:"values"`
	}
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("ethos: search %q: %w", query, err)
	}
	profiles := make([]model.Profile, 0, len(payload.Values))
	for _, v := range payload.Values {
		profiles = append(profiles, v.profile())
	}
	return profiles, nil
}

func (c *Client) getJSON(ctx context.Context, u string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	return nil
}
