package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/logging"
	"github.com/hupe1980/agencyhub/model"
)

const sendMessageTool = "send_message"

type agentNode struct {
	id           string
	name         string
	role         string
	instructions string
	model        model.Model
	caps         map[string]core.Capability
	defs         []model.ToolDefinition
	recipients   []string
}

func (n *agentNode) addRecipient(role string) {
	for _, r := range n.recipients {
		if r == role {
			return
		}
	}
	n.recipients = append(n.recipients, role)
}

type thread struct {
	id       string
	contents []core.Content
}

func newThread() *thread {
	return &thread{id: "thread_" + uuid.NewString()}
}

// graph is the core.Graph produced by Runtime. Turns are serialized.
type graph struct {
	agencyID string
	opts     Options
	logger   logging.Logger
	executor *capabilityExecutor
	agents   map[string]*agentNode
	entry    string

	turnMu sync.Mutex

	stateMu sync.RWMutex
	main    *thread
	pairs   map[string]*thread
}

// turn carries per-turn state through nested agent calls.
type turn struct {
	budget *callBudget
}

func (g *graph) CurrentThreadID() string {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	if g.main == nil {
		return ""
	}
	return g.main.id
}

func (g *graph) AgentIDs() map[string]string {
	ids := make(map[string]string, len(g.agents))
	for role, n := range g.agents {
		ids[role] = n.id
	}
	return ids
}

func (g *graph) CreateThread(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.turnMu.Lock()
	defer g.turnMu.Unlock()

	th := newThread()
	g.stateMu.Lock()
	g.main = th
	g.pairs = map[string]*thread{}
	g.stateMu.Unlock()
	return th.id, nil
}

func (g *graph) RunTurn(ctx context.Context, message string) (string, error) {
	g.turnMu.Lock()
	defer g.turnMu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.stateMu.Lock()
	if g.main == nil {
		g.main = newThread()
	}
	main := g.main
	g.stateMu.Unlock()

	t := &turn{budget: newCallBudget(g.opts.MaxModelCalls)}
	start := time.Now()
	reply, err := g.converse(ctx, t, g.entry, main, message, 0)
	g.logger.Debug("runtime.turn.complete",
		"agency_id", g.agencyID,
		"thread_id", main.id,
		"model_calls", t.budget.used(),
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)
	return reply, err
}

func (g *graph) pairThread(from, to string) *thread {
	key := from + "->" + to
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	th, ok := g.pairs[key]
	if !ok {
		th = newThread()
		g.pairs[key] = th
	}
	return th
}

func (g *graph) history(th *thread) []core.Content {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return append([]core.Content(nil), th.contents...)
}

func (g *graph) commit(th *thread, contents []core.Content) {
	g.stateMu.Lock()
	th.contents = contents
	g.stateMu.Unlock()
}

// converse runs one agent on a thread until it produces a text answer. The
// thread is only updated when the agent finishes successfully.
func (g *graph) converse(ctx context.Context, t *turn, role string, th *thread, message string, depth int) (string, error) {
	node := g.agents[role]
	contents := append(g.history(th), core.NewTextContent("user", message))

	caps, defs := node.caps, node.defs
	var sm *sendMessage
	if len(node.recipients) > 0 && depth < g.opts.MaxDepth {
		sm = &sendMessage{g: g, t: t, from: role, recipients: node.recipients, depth: depth}
		caps = make(map[string]core.Capability, len(node.caps)+1)
		for k, v := range node.caps {
			caps[k] = v
		}
		caps[sendMessageTool] = sm
		defs = append(append([]model.ToolDefinition(nil), node.defs...), model.NewToolDefinition(sm.Name(), sm.Description(), sm.Parameters()))
	}

	for round := 0; round < g.opts.MaxToolRounds; round++ {
		if err := t.budget.spend(); err != nil {
			return "", err
		}

		start := time.Now()
		resp, err := node.model.Generate(ctx, model.Request{
			Instructions: node.instructions,
			Contents:     trimHistory(contents, g.opts.MaxHistoryMessages),
			Tools:        defs,
		})
		if err != nil {
			return "", err
		}
		g.logModelCall(node, resp, time.Since(start))

		resp.Content.Role = "assistant"
		contents = append(contents, resp.Content)

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			g.commit(th, contents)
			return resp.Content.Text(), nil
		}

		sequential := sm != nil && requestsTool(calls, sendMessageTool)
		results := g.executor.execute(ctx, node.name, caps, calls, sequential)
		if sm != nil {
			if err := sm.failure(); err != nil {
				return "", err
			}
		}

		parts := make([]core.Part, 0, len(results))
		for _, r := range results {
			parts = append(parts, core.FunctionResponsePart{FunctionResponse: r})
		}
		contents = append(contents, core.Content{Role: "tool", Parts: parts})
	}

	return "", fmt.Errorf("%w: agent %s stopped after %d rounds", ErrMaxToolRounds, node.name, g.opts.MaxToolRounds)
}

func (g *graph) logModelCall(node *agentNode, resp *model.Response, dur time.Duration) {
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	g.logger.Debug("agent.model.called",
		"agent", node.name,
		"model", node.model.Info().Name,
		"tokens", tokens,
		"finish_reason", resp.FinishReason,
		"duration_ms", dur.Milliseconds(),
	)
}

func requestsTool(calls []core.FunctionCall, name string) bool {
	for _, c := range calls {
		if c.Name == name {
			return true
		}
	}
	return false
}

// trimHistory keeps at most max trailing contents and never starts on a tool
// result whose call was cut off.
func trimHistory(contents []core.Content, max int) []core.Content {
	if max <= 0 || len(contents) <= max {
		return contents
	}
	trimmed := contents[len(contents)-max:]
	for len(trimmed) > 1 && trimmed[0].Role == "tool" {
		trimmed = trimmed[1:]
	}
	return trimmed
}

// sendMessage lets an agent delegate to the next agents of its chains. A
// failure of the recipient other than a capability error aborts the turn.
type sendMessage struct {
	g          *graph
	t          *turn
	from       string
	recipients []string
	depth      int

	mu    sync.Mutex
	fatal error
}

func (s *sendMessage) Name() string { return sendMessageTool }

func (s *sendMessage) Description() string {
	return "Send a message to another agent of the agency and return its answer."
}

func (s *sendMessage) Parameters() map[string]any {
	enum := make([]any, len(s.recipients))
	for i, r := range s.recipients {
		enum[i] = r
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipient": map[string]any{"type": "string", "enum": enum, "description": "Role of the receiving agent."},
			"message":   map[string]any{"type": "string", "description": "Task or question for the recipient."},
		},
		"required": []any{"recipient", "message"},
	}
}

func (s *sendMessage) Call(ctx context.Context, args map[string]any) (any, error) {
	recipient, _ := args["recipient"].(string)
	message, _ := args["message"].(string)
	if !s.allowed(recipient) {
		return nil, fmt.Errorf("%s cannot send messages to %q", s.from, recipient)
	}
	if message == "" {
		return nil, errors.New("message is required")
	}

	reply, err := s.g.converse(ctx, s.t, recipient, s.g.pairThread(s.from, recipient), message, s.depth+1)
	if err != nil {
		s.mu.Lock()
		if s.fatal == nil {
			s.fatal = err
		}
		s.mu.Unlock()
		return nil, err
	}
	return reply, nil
}

func (s *sendMessage) allowed(role string) bool {
	for _, r := range s.recipients {
		if r == role {
			return true
		}
	}
	return false
}

func (s *sendMessage) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}
