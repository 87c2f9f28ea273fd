// Package mediagraph implements the asynchronous publish client for the
// media-graph channel. Publishing is three remote steps: stage a media
// container, wait for remote processing to finish, then publish the
// container. Carousels stage N child containers plus one combining group.
package mediagraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dealcast/internal/channel"
	"dealcast/internal/format"
	"dealcast/internal/models"
)

type Config struct {
	BaseURL   string
	Token     string
	AccountID string
	Timeout   time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("mediagraph base_url is empty")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("mediagraph token is empty")
	}
	if strings.TrimSpace(cfg.AccountID) == "" {
		return nil, fmt.Errorf("mediagraph account_id is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}, nil
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type idResponse struct {
	ID    string    `json:"id"`
	Error *apiError `json:"error,omitempty"`
}

type statusResponse struct {
	StatusCode string    `json:"status_code"` // IN_PROGRESS | FINISHED | ERROR
	Error      *apiError `json:"error,omitempty"`
}

// CreateContainer stages a single media container and returns its id.
// The container is not publishable until Status reports FINISHED.
func (c *Client) CreateContainer(ctx context.Context, p format.Payload) (string, error) {
	form := url.Values{
		"image_url": {p.MediaURL},
		"caption":   {p.Text},
	}
	var out idResponse
	if err := c.post(ctx, "/media", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateGroup stages a carousel container combining already-processed
// child containers.
func (c *Client) CreateGroup(ctx context.Context, children []string, p format.Payload) (string, error) {
	form := url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
		"caption":    {p.Text},
	}
	var out idResponse
	if err := c.post(ctx, "/media", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Status reports the remote processing state of a container.
func (c *Client) Status(ctx context.Context, containerID string) (channel.ProcessingStatus, error) {
	u := fmt.Sprintf("%s/v1/media/%s?fields=status_code", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(containerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return channel.StatusError, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	var out statusResponse
	if err := c.do(req, &out); err != nil {
		return channel.StatusError, err
	}

	switch strings.ToUpper(strings.TrimSpace(out.StatusCode)) {
	case "IN_PROGRESS":
		return channel.StatusInProgress, nil
	case "FINISHED":
		return channel.StatusFinished, nil
	case "ERROR":
		return channel.StatusError, nil
	default:
		return channel.StatusError, &channel.Error{
			Channel: models.ChannelMediaGraph,
			Code:    "bad_status",
			Message: fmt.Sprintf("unknown status_code %q", out.StatusCode),
		}
	}
}

// Publish makes a finished container live and returns the post id.
func (c *Client) Publish(ctx context.Context, containerID string) (string, error) {
	form := url.Values{"creation_id": {containerID}}
	var out idResponse
	if err := c.post(ctx, "/media_publish", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values, out *idResponse) error {
	u := fmt.Sprintf("%s/v1/%s%s", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.AccountID), endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	if err := c.do(req, out); err != nil {
		return err
	}
	if out.ID == "" {
		return &channel.Error{Channel: models.ChannelMediaGraph, Code: "empty_id", Message: "response carried no id"}
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("mediagraph: decoding response (status %d): %w", resp.StatusCode, err)
	}

	// Error bodies share the {error:{code,message}} envelope.
	var env struct {
		Error *apiError `json:"error"`
	}
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode >= 400 || env.Error != nil {
		cerr := &channel.Error{Channel: models.ChannelMediaGraph, Code: fmt.Sprintf("http_%d", resp.StatusCode)}
		if env.Error != nil {
			cerr.Code = env.Error.Code
			cerr.Message = env.Error.Message
		}
		return cerr
	}
	return nil
}
