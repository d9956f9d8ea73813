package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"artifact-publisher/internal/config"
	"artifact-publisher/internal/publish"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookServer(t *testing.T, status int, got *DiscordWebhook) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNotifyPublishSuccess(t *testing.T) {
	var got DiscordWebhook
	srv := webhookServer(t, http.StatusNoContent, &got)

	s := NewService(&config.Config{Notification: true, DiscordWebhookURL: srv.URL})
	err := s.NotifyPublishSuccess(context.Background(), &publish.PublishResult{
		Success:  true,
		DestPath: "build42",
		URLs: map[string]string{
			"b.bin": "https://acct.file.core.windows.net/artifacts/build42/b.bin?sv=2020",
			"a.bin": "https://acct.file.core.windows.net/artifacts/build42/a.bin?sv=2020",
		},
		Duration: 1500 * time.Millisecond,
	})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	fields := got.Embeds[0].Fields
	require.Len(t, fields, 4)
	assert.Equal(t, "build42", fields[0].Value)
	assert.Equal(t, "1.5s", fields[1].Value)
	assert.Equal(t, ":link: a.bin", fields[2].Name)
	assert.Equal(t, ":link: b.bin", fields[3].Name)
}

func TestNotifyPublishFailureIncludesPartialUploads(t *testing.T) {
	var got DiscordWebhook
	srv := webhookServer(t, http.StatusNoContent, &got)

	s := NewService(&config.Config{Notification: true, DiscordWebhookURL: srv.URL})
	err := s.NotifyPublishFailure(context.Background(), &publish.PublishResult{
		URLs:  map[string]string{"a.bin": "https://example.org/a.bin"},
		Total: 2,
	}, errors.New("upload b.bin failed"), time.Second)
	require.NoError(t, err)

	fields := got.Embeds[0].Fields
	require.Len(t, fields, 4)
	assert.Equal(t, "upload b.bin failed", fields[1].Value)
	assert.Equal(t, "1/2", fields[2].Value)
	assert.Equal(t, "https://example.org/a.bin", fields[3].Value)
}

func TestNotifyDisabled(t *testing.T) {
	s := NewService(&config.Config{Notification: false, DiscordWebhookURL: "http://127.0.0.1:1"})
	assert.NoError(t, s.NotifyPublishSuccess(context.Background(), &publish.PublishResult{}))
	assert.NoError(t, s.NotifyPublishFailure(context.Background(), nil, errors.New("x"), 0))
}

func TestNotifyUnexpectedStatus(t *testing.T) {
	var got DiscordWebhook
	srv := webhookServer(t, http.StatusBadRequest, &got)

	s := NewService(&config.Config{Notification: true, DiscordWebhookURL: srv.URL})
	err := s.NotifyPublishSuccess(context.Background(), &publish.PublishResult{URLs: map[string]string{}})
	assert.Error(t, err)
}

func TestURLFieldsTruncated(t *testing.T) {
	urls := make(map[string]string)
	for i := 0; i < maxURLFields+5; i++ {
		name := fmt.Sprintf("f%02d", i)
		urls[name] = "https://example.org/" + name
	}

	fields := urlFields(urls)
	require.Len(t, fields, maxURLFields+1)
	assert.Equal(t, "5 files", fields[maxURLFields].Value)
}
