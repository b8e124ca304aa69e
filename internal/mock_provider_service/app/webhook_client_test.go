package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
	"github.com/aradsms/mock_provider/internal/mock_provider_service/repository/memory"
)

type failingLogWriter struct{}

func (failingLogWriter) CreateCallbackLog(context.Context, *domain.CallbackLog) error {
	return errors.New("disk full")
}

func TestWebhookClient_Deliver_Success(t *testing.T) {
	var gotContentType, gotStatus string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		gotStatus = r.PostForm.Get("MessageStatus")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	repo := memory.New()
	client := NewWebhookClient(repo, discardLogger())

	result, err := client.Deliver(context.Background(), srv.URL, CallbackPayload{"MessageStatus": "sent"}, 1)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, http.StatusNoContent, result.StatusCode)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "sent", gotStatus)

	logs, err := repo.ListCallbackLogs(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].StatusCode)
	assert.Equal(t, http.StatusNoContent, *logs[0].StatusCode)
	assert.Equal(t, 1, logs[0].AttemptNumber)
	assert.JSONEq(t, `{"MessageStatus":"sent"}`, logs[0].Payload)
}

func TestWebhookClient_Deliver_HTTPErrorTruncatesBody(t *testing.T) {
	longBody := strings.Repeat("x", 800)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(longBody))
	}))
	defer srv.Close()

	repo := memory.New()
	client := NewWebhookClient(repo, discardLogger())

	result, err := client.Deliver(context.Background(), srv.URL, CallbackPayload{}, 2)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.Equal(t, longBody, result.Body)

	logs, _ := repo.ListCallbackLogs(context.Background(), 0, 0)
	require.Len(t, logs, 1)
	assert.Len(t, logs[0].ResponseBody, MaxLoggedResponseBody)
	assert.Equal(t, 2, logs[0].AttemptNumber)
}

func TestWebhookClient_Deliver_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	repo := memory.New()
	client := NewWebhookClient(repo, discardLogger())

	result, err := client.Deliver(context.Background(), url, CallbackPayload{}, 1)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, result.StatusCode)
	assert.True(t, strings.HasPrefix(result.Body, "Error: "))

	logs, _ := repo.ListCallbackLogs(context.Background(), 0, 0)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].StatusCode)
	assert.True(t, strings.HasPrefix(logs[0].ResponseBody, "Error: "))
}

func TestWebhookClient_Deliver_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	repo := memory.New()
	client := NewWebhookClient(repo, discardLogger(), WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))

	result, err := client.Deliver(context.Background(), srv.URL, CallbackPayload{}, 1)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, result.StatusCode)
}

func TestWebhookClient_Deliver_LogFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := NewWebhookClient(failingLogWriter{}, discardLogger())

	result, err := client.Deliver(context.Background(), srv.URL, CallbackPayload{}, 1)
	require.Error(t, err)
	assert.True(t, result.Success)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "éé", truncateRunes("ééé", 2))
}
