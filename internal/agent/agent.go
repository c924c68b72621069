package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/headliner/internal/telemetry"
	"github.com/mohammad-safakhou/headliner/models"
	"github.com/mohammad-safakhou/headliner/tools"
)

const DefaultMaxSteps = 25

// State is a node of the agent loop.
type State string

const (
	StateAwaitingModel  State = "awaiting_model"
	StateModelResponded State = "model_responded"
	StateToolRequested  State = "tool_requested"
	StateFinalAnswer    State = "final_answer"
	StateGaveUp         State = "gave_up"
	StateFailed         State = "failed"
)

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == StateFinalAnswer || s == StateGaveUp || s == StateFailed
}

// ErrModel wraps failures of the language model call.
var ErrModel = errors.New("language model call failed")

// ToolError is returned when a tool's own execution fails. It ends the run.
type ToolError struct {
	Tool   string
	CallID string
	Err    error
}

func (e *ToolError) Error() string { return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err) }

func (e *ToolError) Unwrap() error { return e.Err }

// LLM completes a conversation, possibly asking for tool calls.
type LLM interface {
	Complete(ctx context.Context, messages []models.Message, specs []models.ToolSpec) (models.Message, error)
}

// Conversation is the persisted message history of one session.
type Conversation interface {
	Messages(ctx context.Context) ([]models.Message, error)
	Append(ctx context.Context, msgs ...models.Message) error
}

// Event is emitted on every state transition.
type Event struct {
	State State
	Step  int
	Tool  string
	Err   error
}

type Observer func(Event)

// Result summarizes a finished run.
type Result struct {
	Reply     string
	State     State
	Steps     int
	ToolCalls int
	Appended  []models.Message
}

type Agent struct {
	llm          LLM
	registry     *tools.Registry
	maxSteps     int
	systemPrompt string
	observer     Observer
	logger       *log.Logger
	metrics      *telemetry.Metrics
}

type Option func(*Agent)

func WithMaxSteps(n int) Option { return func(a *Agent) { a.maxSteps = n } }

func WithSystemPrompt(p string) Option { return func(a *Agent) { a.systemPrompt = p } }

func WithObserver(o Observer) Option { return func(a *Agent) { a.observer = o } }

func WithLogger(l *log.Logger) Option { return func(a *Agent) { a.logger = l } }

func WithMetrics(m *telemetry.Metrics) Option { return func(a *Agent) { a.metrics = m } }

func New(llm LLM, registry *tools.Registry, opts ...Option) *Agent {
	a := &Agent{llm: llm, registry: registry, maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxSteps <= 0 {
		a.maxSteps = DefaultMaxSteps
	}
	if a.logger == nil {
		a.logger = log.New(log.Writer(), "[AGENT] ", log.LstdFlags)
	}
	return a
}

func (a *Agent) emit(ev Event) {
	a.logger.Printf("step %d: %s %s", ev.Step, ev.State, ev.Tool)
	if a.observer != nil {
		a.observer(ev)
	}
}

// Run appends input to the conversation and drives the model until it answers
// without tool calls, max steps are reached, or something fails. Each step's
// messages are appended in one call; the first batch carries the user message.
func (a *Agent) Run(ctx context.Context, conv Conversation, input string) (Result, error) {
	history, err := conv.Messages(ctx)
	if err != nil {
		return Result{State: StateFailed}, fmt.Errorf("load conversation: %w", err)
	}

	user := models.UserMessage(input)
	working := make([]models.Message, 0, len(history)+1)
	working = append(working, history...)
	working = append(working, user)
	pending := []models.Message{user}

	var specs []models.ToolSpec
	if a.registry != nil {
		specs = a.registry.Specs()
	}

	res := Result{}
	var lastContent string
	commit := func(batch []models.Message) error {
		if err := conv.Append(ctx, batch...); err != nil {
			return fmt.Errorf("append conversation: %w", err)
		}
		res.Appended = append(res.Appended, batch...)
		return nil
	}
	fail := func(step int, err error) (Result, error) {
		res.State = StateFailed
		res.Steps = step
		a.emit(Event{State: StateFailed, Step: step, Err: err})
		return res, err
	}

	for step := 1; step <= a.maxSteps; step++ {
		a.emit(Event{State: StateAwaitingModel, Step: step})
		reply, err := a.llm.Complete(ctx, a.prompt(working), specs)
		if err != nil {
			return fail(step, fmt.Errorf("%w: %w", ErrModel, err))
		}
		reply.Role = models.RoleAssistant
		if reply.CreatedAt.IsZero() {
			reply.CreatedAt = time.Now()
		}
		if reply.Content != "" {
			lastContent = reply.Content
		}
		a.emit(Event{State: StateModelResponded, Step: step})

		if !reply.HasToolCalls() {
			if err := commit(append(pending, reply)); err != nil {
				return fail(step, err)
			}
			res.Reply = reply.Content
			res.State = StateFinalAnswer
			res.Steps = step
			a.emit(Event{State: StateFinalAnswer, Step: step})
			return res, nil
		}

		batch := append(pending, reply)
		for _, call := range reply.ToolCalls {
			a.emit(Event{State: StateToolRequested, Step: step, Tool: call.Name})
			res.ToolCalls++
			out, err := a.dispatch(ctx, call)
			if err != nil {
				return fail(step, err)
			}
			batch = append(batch, models.ToolResultMessage(call, out))
		}
		if err := commit(batch); err != nil {
			return fail(step, err)
		}
		working = append(working, batch[len(pending):]...)
		pending = nil
	}

	notice := lastContent
	if notice == "" {
		notice = fmt.Sprintf("Stopped after %d steps without a final answer.", a.maxSteps)
	}
	final := models.AssistantMessage(notice)
	if err := commit(append(pending, final)); err != nil {
		return fail(a.maxSteps, err)
	}
	res.Reply = notice
	res.State = StateGaveUp
	res.Steps = a.maxSteps
	a.emit(Event{State: StateGaveUp, Step: a.maxSteps})
	return res, nil
}

// dispatch runs one tool call. Unknown tools and invalid arguments become an
// error result for the model; only a failing Execute is returned as an error.
func (a *Agent) dispatch(ctx context.Context, call models.ToolCall) (string, error) {
	if a.registry == nil {
		a.metrics.ToolCall(call.Name, "rejected")
		return fmt.Sprintf("Error: %v: %s", tools.ErrUnknownTool, call.Name), nil
	}
	tool, args, err := a.registry.Resolve(call)
	if err != nil {
		a.metrics.ToolCall(call.Name, "rejected")
		a.logger.Printf("rejected tool call %s: %v", call.Name, err)
		return fmt.Sprintf("Error: %v", err), nil
	}
	out, err := tool.Execute(ctx, args)
	if err != nil {
		a.metrics.ToolCall(call.Name, "error")
		return "", &ToolError{Tool: call.Name, CallID: call.ID, Err: err}
	}
	a.metrics.ToolCall(call.Name, "ok")
	return out, nil
}

func (a *Agent) prompt(working []models.Message) []models.Message {
	if a.systemPrompt == "" {
		return working
	}
	out := make([]models.Message, 0, len(working)+1)
	out = append(out, models.Message{Role: models.RoleSystem, Content: a.systemPrompt})
	return append(out, working...)
}
