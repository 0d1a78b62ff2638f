package model

import (
	"context"
	"time"

	"github.com/hupe1980/agencyhub/logging"
)

// Logged wraps a Model and records every call with LogLLMCall.
type Logged struct {
	inner  Model
	logger *logging.HubLogger
}

// WithLogging wraps inner so each Generate is logged with latency and token usage.
func WithLogging(inner Model, logger *logging.HubLogger) *Logged {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Logged{inner: inner, logger: logger}
}

// Generate implements Model.
func (l *Logged) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	tokens := 0
	if resp != nil && resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	l.logger.LogLLMCall(l.inner.Info().Name, tokens, time.Since(start), err == nil, err)
	return resp, err
}

// Info implements Model.
func (l *Logged) Info() Info { return l.inner.Info() }
