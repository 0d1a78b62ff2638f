package model

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/logging"
)

var (
	_ Model = (*MockModel)(nil)
	_ Model = (*ScriptedModel)(nil)
	_ Model = (*CircuitBreaker)(nil)
	_ Model = (*Logged)(nil)
)

func TestMockModel_Generate(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddResponse("hi", "hello")

	resp, err := m.Generate(context.Background(), Request{Contents: []core.Content{core.NewTextContent("user", "hi")}})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content.Text())

	resp, err = m.Generate(context.Background(), Request{Contents: []core.Content{core.NewTextContent("user", "other")}})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Content.Text())

	_, err = m.Generate(context.Background(), Request{})
	assert.Error(t, err)
}

func TestScriptedModel_ReplaysSteps(t *testing.T) {
	s := NewScriptedModel(CallTool("c1", "lookup", `{"q":"x"}`), Reply("final"))

	first, err := s.Generate(context.Background(), Request{Instructions: "a"})
	require.NoError(t, err)
	calls := first.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "lookup", calls[0].Name)

	second, err := s.Generate(context.Background(), Request{Instructions: "b"})
	require.NoError(t, err)
	assert.Equal(t, "final", second.Content.Text())

	third, err := s.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "done", third.Content.Text())

	assert.Len(t, s.Requests(), 3)
	assert.Equal(t, "a", s.Requests()[0].Instructions)
}

func TestComplete(t *testing.T) {
	s := NewScriptedModel(Reply("summary"))
	out, err := Complete(context.Background(), s, "be short", "long text")
	require.NoError(t, err)
	assert.Equal(t, "summary", out)

	req := s.Requests()[0]
	assert.Equal(t, "be short", req.Instructions)
	assert.Equal(t, "long text", req.Contents[0].Text())
}

func TestCatalog_Resolve(t *testing.T) {
	def := NewMockModel("gpt-4o-mini", "openai")
	cheap := NewMockModel("haiku", "anthropic")
	c := NewCatalog(def)
	c.Register("cheap", cheap)

	m, err := c.Resolve("")
	require.NoError(t, err)
	assert.Same(t, def, m)

	m, err = c.Resolve("cheap")
	require.NoError(t, err)
	assert.Same(t, cheap, m)

	m, err = c.Resolve("gpt-4o-mini")
	require.NoError(t, err)
	assert.Same(t, def, m)

	_, err = c.Resolve("missing")
	assert.Error(t, err)

	_, err = NewCatalog(nil).Resolve("")
	assert.Error(t, err)
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	providerErr := errors.New("provider error")
	inner := NewScriptedModel(Fail(providerErr), Fail(providerErr), Fail(providerErr))
	cb := NewCircuitBreaker(inner, func(o *BreakerOptions) {
		o.MaxFailures = 2
		o.Timeout = time.Minute
	})

	for i := 0; i < 2; i++ {
		_, err := cb.Generate(context.Background(), Request{})
		assert.ErrorIs(t, err, providerErr)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, inner.Requests(), 2)
}

func TestCircuitBreaker_PassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(NewScriptedModel(Reply("ok")))
	resp, err := cb.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content.Text())
	assert.Equal(t, "scripted", cb.Info().Name)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})

	m := WithLogging(NewScriptedModel(
		func(Request) (*Response, error) {
			r := TextResponse("ok")
			r.Usage = &TokenUsage{TotalTokens: 42}
			return r, nil
		},
		Fail(errors.New("provider down")),
	), logger)

	resp, err := m.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content.Text())
	assert.Equal(t, "scripted", m.Info().Name)

	_, err = m.Generate(context.Background(), Request{})
	assert.EqualError(t, err, "provider down")

	out := buf.String()
	assert.Contains(t, out, `"token_count":42`)
	assert.Contains(t, out, "LLM call failed")
}
