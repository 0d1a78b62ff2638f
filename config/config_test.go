package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := writeFile(t, "agencyhub.yaml", `
server:
  addr: ":9090"
storage:
  driver: sqlite
  path: /tmp/hub.db
cache:
  capacity: 16
  turn_timeout: 30s
llm:
  provider: openai
  model: gpt-4o
auth:
  tokens:
    - token: secret
      user_id: alice
      superuser: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 16, cfg.Cache.Capacity)
	assert.Equal(t, 30*time.Second, cfg.Cache.TurnTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Cache.BuildTimeout)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	require.Len(t, cfg.Auth.Tokens, 1)
	u := cfg.Auth.Tokens[0].User()
	assert.Equal(t, "alice", u.ID)
	assert.True(t, u.IsSuperuser)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"AGENCYHUB_SERVER_ADDR":     ":7000",
		"AGENCYHUB_LLM_PROVIDER":    "anthropic",
		"AGENCYHUB_CACHE_CAPACITY":  "3",
		"AGENCYHUB_TRACER_ENABLED":  "true",
		"AGENCYHUB_TOOLS_ROOT_DIR":  "/srv/work",
		"AGENCYHUB_UNRELATED_VALUE": "x",
	}
	cfg := Defaults()
	require.NoError(t, cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Cache.Capacity)
	assert.True(t, cfg.Tracer.Enabled)
	assert.Equal(t, "/srv/work", cfg.Tools.RootDir)
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	cfg := Defaults()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "AGENCYHUB_CACHE_CAPACITY" {
			return "many", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "AGENCYHUB_CACHE_CAPACITY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"storage driver", func(c *Config) { c.Storage.Driver = "firestore" }, "storage.driver"},
		{"sqlite path", func(c *Config) { c.Storage.Driver = "sqlite"; c.Storage.Path = "" }, "storage.path"},
		{"capacity", func(c *Config) { c.Cache.Capacity = 0 }, "cache.capacity"},
		{"provider", func(c *Config) { c.LLM.Provider = "gemini" }, "llm.provider"},
		{"log level", func(c *Config) { c.Logger.Level = "loud" }, "logger.level"},
		{"exporter", func(c *Config) { c.Tracer.Exporter = "jaeger" }, "tracer.exporter"},
		{"tool rounds", func(c *Config) { c.Runtime.MaxToolRounds = 0 }, "max_tool_rounds"},
		{"token user", func(c *Config) { c.Auth.Tokens = []TokenConfig{{Token: "t"}} }, "user_id"},
		{"duplicate token", func(c *Config) {
			c.Auth.Tokens = []TokenConfig{{Token: "t", UserID: "a"}, {Token: "t", UserID: "b"}}
		}, "duplicate token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoadTemplates(t *testing.T) {
	path := writeFile(t, "templates.yaml", `
agencies:
  - agency_id: starter
    owner_id: someone
    name: Starter
    agency_manifesto: Be helpful.
    agents:
      - role: ceo
      - role: dev
    agency_chart:
      - ceo
      - [ceo, dev]
tools:
  - tool_id: t1
    name: shout
    version: 1
    approved: true
skills:
  - id: s1
    user_id: someone
    title: summarize
`)

	tpl, err := LoadTemplates(path)
	require.NoError(t, err)

	require.Len(t, tpl.Agencies, 1)
	a := tpl.Agencies[0]
	assert.True(t, a.IsTemplate())
	require.Len(t, a.AgencyChart, 2)
	assert.False(t, a.AgencyChart[0].IsChain())
	assert.Equal(t, []string{"ceo", "dev"}, a.AgencyChart[1].Roles)

	require.Len(t, tpl.Tools, 1)
	assert.True(t, tpl.Tools[0].Approved)
	require.Len(t, tpl.Skills, 1)
	assert.True(t, tpl.Skills[0].IsTemplate())
}

func TestLoadTemplates_RequiresIDs(t *testing.T) {
	path := writeFile(t, "templates.yaml", "agencies:\n  - name: nameless\n")

	_, err := LoadTemplates(path)
	assert.ErrorContains(t, err, "agency_id")
}
