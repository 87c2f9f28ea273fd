package microblog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealcast/internal/channel"
	"dealcast/internal/format"
)

func TestSubmit(t *testing.T) {
	t.Parallel()

	var got struct {
		Text    string `json:"text"`
		ReplyTo string `json:"reply_to_id"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/posts", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "post-1"})
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Token: "tok"})
	require.NoError(t, err)

	id, err := c.Submit(context.Background(), format.Payload{Text: "hi", ReplyTo: "parent-9"})
	require.NoError(t, err)
	assert.Equal(t, "post-1", id)
	assert.Equal(t, "hi", got.Text)
	assert.Equal(t, "parent-9", got.ReplyTo, "reply threading goes over the wire")
}

func TestSubmitRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "too_long", "message": "text exceeds limit"},
		})
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Token: "tok"})
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), format.Payload{Text: "way too long"})
	var cerr *channel.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "too_long", cerr.Code)
	assert.Equal(t, "text exceeds limit", cerr.Message)
}

func TestSubmitEmptyID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Token: "tok"})
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), format.Payload{Text: "hi"})
	var cerr *channel.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "empty_id", cerr.Code)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Token: "tok"})
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "https://microblog.example"})
	assert.Error(t, err)
}
