// Package microblog implements the synchronous publish client for the
// thread-based microblogging channel. One POST submits a post (optionally
// as a reply) and returns the remote id immediately.
package microblog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dealcast/internal/channel"
	"dealcast/internal/format"
	"dealcast/internal/models"
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("microblog base_url is empty")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("microblog token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}, nil
}

type postRequest struct {
	Text    string `json:"text"`
	ReplyTo string `json:"reply_to_id,omitempty"`
}

type postResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Submit publishes one post and returns its remote id.
func (c *Client) Submit(ctx context.Context, p format.Payload) (string, error) {
	body, err := json.Marshal(postRequest{Text: p.Text, ReplyTo: p.ReplyTo})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/posts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var pr postResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return "", fmt.Errorf("microblog: decoding response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 || pr.Error != nil {
		cerr := &channel.Error{Channel: models.ChannelMicroblog, Code: fmt.Sprintf("http_%d", resp.StatusCode)}
		if pr.Error != nil {
			cerr.Code = pr.Error.Code
			cerr.Message = pr.Error.Message
		}
		return "", cerr
	}
	if pr.ID == "" {
		return "", &channel.Error{Channel: models.ChannelMicroblog, Code: "empty_id", Message: "response carried no post id"}
	}
	return pr.ID, nil
}
