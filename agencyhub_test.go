package agencyhub

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agencyhub/config"
	"github.com/hupe1980/agencyhub/logging"
	"github.com/hupe1980/agencyhub/tool"
)

const templatesYAML = `
agencies:
  - agency_id: starter
    name: Starter
    agency_manifesto: Be helpful.
    agents:
      - role: ceo
        tools: [BuildDirectoryTree]
      - role: dev
    agency_chart:
      - ceo
      - [ceo, dev]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	tplPath := filepath.Join(dir, "templates.yaml")
	require.NoError(t, os.WriteFile(tplPath, []byte(templatesYAML), 0o600))

	cfg := config.Defaults()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Tools.RootDir = dir
	cfg.Templates.File = tplPath
	cfg.Auth.Tokens = []config.TokenConfig{{Token: "alice-token", UserID: "alice"}}
	return cfg
}

func newTestHub(t *testing.T, cfg *config.Config, optFns ...func(o *Options)) *Hub {
	t.Helper()
	optFns = append([]func(o *Options){func(o *Options) { o.Logger = logging.Discard() }}, optFns...)
	h, err := New(context.Background(), cfg, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, h http.Handler, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer alice-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return rec.Code
}

func TestHub_TemplateToConversation(t *testing.T) {
	h := newTestHub(t, testConfig(t))
	handler := h.Handler()

	var list []map[string]any
	require.Equal(t, http.StatusOK, call(t, handler, http.MethodGet, "/v1/api/agency/list", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "starter", list[0]["agency_id"])

	var tpl map[string]any
	require.Equal(t, http.StatusOK, call(t, handler, http.MethodGet, "/v1/api/agency?agency_id=starter", nil, &tpl))

	var created map[string]string
	require.Equal(t, http.StatusOK, call(t, handler, http.MethodPut, "/v1/api/agency", tpl, &created))
	id := created["agency_id"]
	require.NotEqual(t, "starter", id)

	var session map[string]string
	require.Equal(t, http.StatusOK, call(t, handler, http.MethodPost, "/v1/api/session", map[string]string{"agency_id": id}, &session))
	threadID := session["thread_id"]
	require.NotEmpty(t, threadID)

	var turn map[string]any
	require.Equal(t, http.StatusOK, call(t, handler, http.MethodPost, "/v1/api/session/message",
		map[string]string{"agency_id": id, "thread_id": threadID, "message": "hi"}, &turn))
	assert.Equal(t, "Mock response to: hi", turn["response"])

	template, err := h.Stores().Agencies.Load(context.Background(), "starter")
	require.NoError(t, err)
	assert.True(t, template.IsTemplate())
}

func TestHub_RegistersBuiltinsAndExtraTools(t *testing.T) {
	extra := tool.NewFunctionTool("ping", "Ping", nil, func(context.Context, map[string]any) (any, error) {
		return "pong", nil
	})
	h := newTestHub(t, testConfig(t), func(o *Options) { o.Tools = []tool.Tool{extra} })

	names := h.Registry().Names()
	assert.Contains(t, names, tool.BuildDirectoryTreeName)
	assert.Contains(t, names, tool.SummarizeCodeName)
	assert.Contains(t, names, "ping")
}

func TestHub_SQLiteStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "hub.db")

	h := newTestHub(t, cfg)
	var created map[string]string
	require.Equal(t, http.StatusOK, call(t, h.Handler(), http.MethodPut, "/v1/api/agency", map[string]any{
		"name":         "Persistent",
		"agents":       []map[string]any{{"role": "ceo"}},
		"agency_chart": []any{"ceo"},
	}, &created))
	require.NoError(t, h.Close(context.Background()))

	reopened := newTestHub(t, cfg)
	saved, err := reopened.Stores().Agencies.Load(context.Background(), created["agency_id"])
	require.NoError(t, err)
	assert.Equal(t, "alice", saved.OwnerID)
	assert.NotEmpty(t, saved.Agents[0].ID)
}

func TestHub_UnsupportedProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "gemini"

	_, err := New(context.Background(), cfg, func(o *Options) { o.Logger = logging.Discard() })
	assert.ErrorContains(t, err, "unsupported llm provider")
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	h := newTestHub(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + h.Server().Addr() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
