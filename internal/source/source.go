// Package source fetches scored deal candidates from the upstream deal
// feed. The pipeline treats the feed as read-only: candidates come back
// already scored and ordered, and everything downstream filters rather
// than re-ranks.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"dealcast/internal/models"
)

// Source yields publish candidates at or above a minimum score.
type Source interface {
	FetchCandidates(ctx context.Context, minScore float64, limit int) ([]models.Deal, error)
	FetchDeal(ctx context.Context, id string) (models.Deal, error)
	FetchWindow(ctx context.Context, since time.Time, limit int) ([]models.Deal, error)
}

// Config for the HTTP deal feed client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the deal feed's JSON API.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

var _ Source = (*Client)(nil)

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type dealsResponse struct {
	Deals []models.Deal `json:"deals"`
}

// FetchCandidates returns deals scoring at or above minScore, best first,
// capped at limit.
func (c *Client) FetchCandidates(ctx context.Context, minScore float64, limit int) ([]models.Deal, error) {
	q := url.Values{}
	q.Set("min_score", strconv.FormatFloat(minScore, 'f', -1, 64))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out dealsResponse
	if err := c.get(ctx, "/v1/deals", q, &out); err != nil {
		return nil, err
	}

	deals := validDeals(out.Deals)
	sort.SliceStable(deals, func(i, j int) bool { return deals[i].Score > deals[j].Score })
	if limit > 0 && len(deals) > limit {
		deals = deals[:limit]
	}
	return deals, nil
}

// FetchDeal returns one deal by id, for operator-triggered single posts.
func (c *Client) FetchDeal(ctx context.Context, id string) (models.Deal, error) {
	var deal models.Deal
	if err := c.get(ctx, "/v1/deals/"+url.PathEscape(id), nil, &deal); err != nil {
		return models.Deal{}, err
	}
	if err := deal.Validate(); err != nil {
		return models.Deal{}, fmt.Errorf("deal %s failed validation: %w", id, err)
	}
	return deal, nil
}

// FetchWindow returns deals found since the given time, best first.
func (c *Client) FetchWindow(ctx context.Context, since time.Time, limit int) ([]models.Deal, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out dealsResponse
	if err := c.get(ctx, "/v1/deals", q, &out); err != nil {
		return nil, err
	}
	deals := validDeals(out.Deals)
	sort.SliceStable(deals, func(i, j int) bool { return deals[i].Score > deals[j].Score })
	if limit > 0 && len(deals) > limit {
		deals = deals[:limit]
	}
	return deals, nil
}

// validDeals drops feed entries that fail model validation, so a single
// malformed listing never poisons a batch.
func validDeals(deals []models.Deal) []models.Deal {
	out := deals[:0]
	for _, d := range deals {
		if d.Validate() == nil {
			out = append(out, d)
		}
	}
	return out
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build deal feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("deal feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deal feed %s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode deal feed response: %w", err)
	}
	return nil
}

// Static serves a fixed deal set, used by tests and the dry-run smoke path.
type Static struct {
	mu    sync.Mutex
	deals []models.Deal
}

var _ Source = (*Static)(nil)

func NewStatic(deals ...models.Deal) *Static {
	return &Static{deals: deals}
}

// Replace swaps the served deal set.
func (s *Static) Replace(deals []models.Deal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals = append([]models.Deal(nil), deals...)
}

func (s *Static) FetchCandidates(_ context.Context, minScore float64, limit int) ([]models.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Deal, 0, len(s.deals))
	for _, d := range s.deals {
		if d.Score >= minScore {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Static) FetchDeal(_ context.Context, id string) (models.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deals {
		if d.ID == id {
			return d, nil
		}
	}
	return models.Deal{}, fmt.Errorf("deal %s not found", id)
}

func (s *Static) FetchWindow(_ context.Context, since time.Time, limit int) ([]models.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Deal, 0, len(s.deals))
	for _, d := range s.deals {
		if !d.FoundAt.Before(since) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
