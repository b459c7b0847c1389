package openai

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibreez3/lm-helper/config"
)

func setEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvModel, "test-model")
	t.Setenv(config.EnvBaseURL, baseURL)
	t.Setenv(config.EnvAPIKey, "test-key")
	t.Setenv(config.EnvMaxRetries, "")
	t.Setenv(config.EnvRequestTimeout, "")
}

func TestNewHandleRequiresModel(t *testing.T) {
	setEnv(t, "")
	t.Setenv(config.EnvModel, "")

	_, err := NewHandle("")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "LM_MODEL")
}

func TestHandleAsk(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, " forty-two ")
	setEnv(t, srv.URL+"/v1")

	h, err := NewHandle("")
	require.NoError(t, err)

	out, err := h.Ask(context.Background(), "what is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "forty-two", out)
	assert.Equal(t, "test-model", srv.request()["model"])
}

func TestHandleClientIsLazyAndStable(t *testing.T) {
	setEnv(t, "http://127.0.0.1:1/v1")

	h, err := NewHandle("")
	require.NoError(t, err)
	assert.Nil(t, h.cli)

	first := h.Client()
	assert.Same(t, first, h.Client())
}

func TestHandleReload(t *testing.T) {
	srvA := newChatServer(t, http.StatusOK, "from A")
	srvB := newChatServer(t, http.StatusOK, "from B")
	setEnv(t, srvA.URL+"/v1")
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	h, err := NewHandle("", WithLogger(logger))
	require.NoError(t, err)
	old := h.Client()

	t.Setenv(config.EnvBaseURL, srvB.URL+"/v1")
	require.NoError(t, h.Reload())

	assert.NotSame(t, old, h.Client())
	assert.Contains(t, logs.String(), "reloading client")
	out, err := h.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "from B", out)
}

func TestHandleReloadKeepsClientOnError(t *testing.T) {
	setEnv(t, "http://127.0.0.1:1/v1")

	h, err := NewHandle("")
	require.NoError(t, err)
	old := h.Client()

	t.Setenv(config.EnvModel, "")
	require.Error(t, h.Reload())
	assert.Same(t, old, h.Client())
	assert.Equal(t, "test-model", h.Config().LM.Model)
}

func TestHandleRetriesConfiguredTimes(t *testing.T) {
	srv := newChatServer(t, http.StatusServiceUnavailable, "")
	setEnv(t, srv.URL+"/v1")
	t.Setenv(config.EnvMaxRetries, "2")
	sleeps := &sleepRecorder{}

	h, err := NewHandle("", WithRetryPolicy(RetryPolicy{Sleep: sleeps.Sleep}))
	require.NoError(t, err)

	_, err = h.Ask(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoResponse)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, int32(2), srv.hits.Load())
	assert.Equal(t, []int{15}, secondsOf(sleeps))
}
