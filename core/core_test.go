package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestChartNode_JSON(t *testing.T) {
	var chart []ChartNode
	require.NoError(t, json.Unmarshal([]byte(`["ceo", ["ceo", "dev"], ["dev", "va", "qa"]]`), &chart))

	require.Len(t, chart, 3)
	assert.False(t, chart[0].IsChain())
	assert.Equal(t, []string{"ceo"}, chart[0].Roles)
	assert.True(t, chart[1].IsChain())
	assert.Equal(t, []string{"dev", "va", "qa"}, chart[2].Roles)

	out, err := json.Marshal(chart)
	require.NoError(t, err)
	assert.JSONEq(t, `["ceo",["ceo","dev"],["dev","va","qa"]]`, string(out))
}

func TestChartNode_JSONRejectsObjects(t *testing.T) {
	var n ChartNode
	assert.Error(t, json.Unmarshal([]byte(`{"role":"ceo"}`), &n))
}

func TestChartNode_YAML(t *testing.T) {
	src := `
agency_id: a1
name: Demo
agents:
  - role: ceo
  - role: dev
    tools: [BuildDirectoryTree]
agency_chart:
  - ceo
  - [ceo, dev]
`
	var cfg AgencyConfig
	require.NoError(t, yaml.Unmarshal([]byte(src), &cfg))

	assert.Equal(t, "a1", cfg.AgencyID)
	require.Len(t, cfg.AgencyChart, 2)
	assert.Equal(t, Hub("ceo"), cfg.AgencyChart[0])
	assert.Equal(t, Chain("ceo", "dev"), cfg.AgencyChart[1])
	assert.True(t, cfg.IsTemplate())
}

func TestAgencyConfig_UpdateAgentIDsAndClone(t *testing.T) {
	cfg := &AgencyConfig{
		AgencyID:    "a1",
		Agents:      []AgentConfig{{Role: "ceo", Tools: []string{"x"}}, {Role: "dev", ID: "old"}},
		AgencyChart: []ChartNode{Hub("ceo")},
	}

	clone := cfg.Clone()
	cfg.UpdateAgentIDs(map[string]string{"ceo": "agent_1", "dev": ""})

	ceo, ok := cfg.Agent("ceo")
	require.True(t, ok)
	assert.Equal(t, "agent_1", ceo.ID)
	dev, _ := cfg.Agent("dev")
	assert.Equal(t, "old", dev.ID)

	clone.Agents[0].Tools[0] = "changed"
	assert.Equal(t, "x", cfg.Agents[0].Tools[0])
	cloneCeo, _ := clone.Agent("ceo")
	assert.Empty(t, cloneCeo.ID)

	_, ok = cfg.Agent("missing")
	assert.False(t, ok)
}

func TestGraphConstructionError(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := fmt.Errorf("build: %w", NewGraphConstructionError("a1", "unknown role", cause))

	var gce *GraphConstructionError
	require.True(t, errors.As(err, &gce))
	assert.Equal(t, "a1", gce.AgencyID)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "graph construction failed for agency a1: unknown role: boom", gce.Error())
}

func TestContent_Helpers(t *testing.T) {
	c := Content{Role: "assistant", Parts: []Part{
		TextPart{Text: "hello "},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "1", Name: "t"}},
		TextPart{Text: "world"},
	}}

	assert.Equal(t, "hello world", c.Text())
	assert.Len(t, c.FunctionCalls(), 1)
	assert.Equal(t, "user", NewTextContent("user", "hi").Role)
}
