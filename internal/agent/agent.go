package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/tools"
)

// DefaultMaxSteps bounds the number of model turns per question
const DefaultMaxSteps = 8

// ErrMaxSteps is returned when the model keeps requesting tools past the step limit
var ErrMaxSteps = errors.New("agent exceeded maximum reasoning steps")

// State is a state of the agent loop
type State int

const (
	// StateReasoning asks the model for the next message
	StateReasoning State = iota
	// StateInvoking runs the tool calls the model asked for
	StateInvoking
	// StateDone holds the final answer
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReasoning:
		return "reasoning"
	case StateInvoking:
		return "invoking"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Event is reported to the observer on every transition
type Event struct {
	State  State
	Step   int
	Call   *ToolCall // set while invoking
	Output string    // tool output while invoking, final answer when done
	Err    error     // tool error while invoking
}

// Agent answers questions by alternating model turns and tool invocations
type Agent struct {
	model    Model
	table    *tools.Table
	specs    []ToolSpec
	system   string
	maxSteps int
	observer func(Event)

	history []Message
}

// Option configures an Agent
type Option func(*Agent)

// WithSystemPrompt replaces the system prompt
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.system = prompt
	}
}

// WithMaxSteps sets the model turn limit per question
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithObserver registers a callback for loop transitions
func WithObserver(fn func(Event)) Option {
	return func(a *Agent) {
		a.observer = fn
	}
}

// SystemPrompt returns the default system prompt for a repository
func SystemPrompt(repoPath string) string {
	return fmt.Sprintf("You are a helpful coding assistant with access to tools "+
		"that help analyze the repository located at path %s. "+
		"At the end of your answer also list the tools and arguments used for answering.", repoPath)
}

// New creates an agent that may call every capability of table
func New(model Model, table *tools.Table, opts ...Option) *Agent {
	a := &Agent{
		model:    model,
		table:    table,
		system:   SystemPrompt("."),
		maxSteps: DefaultMaxSteps,
	}
	for _, c := range table.List() {
		a.specs = append(a.specs, ToolSpec{Name: c.Name, Description: c.Description, Parameters: c.Schema()})
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask adds a user message to the conversation and runs the loop until the
// model answers without requesting tools. On error the conversation is left
// as it was before the question.
func (a *Agent) Ask(ctx context.Context, question string) (string, error) {
	mark := len(a.history)
	a.history = append(a.history, Message{Role: RoleUser, Content: question})

	answer, err := a.run(ctx)
	if err != nil {
		a.history = a.history[:mark]
		return "", err
	}
	return answer, nil
}

func (a *Agent) run(ctx context.Context) (string, error) {
	state := StateReasoning
	step := 0
	var reply Message

	for {
		switch state {
		case StateReasoning:
			if step == a.maxSteps {
				return "", fmt.Errorf("%w (%d)", ErrMaxSteps, a.maxSteps)
			}
			step++
			a.notify(Event{State: state, Step: step})

			msg, err := a.model.Chat(ctx, a.prompt(), a.specs)
			if err != nil {
				return "", fmt.Errorf("model turn %d: %w", step, err)
			}
			msg.Role = RoleAssistant
			a.history = append(a.history, msg)
			reply = msg

			if len(msg.ToolCalls) > 0 {
				state = StateInvoking
			} else {
				state = StateDone
			}

		case StateInvoking:
			for i := range reply.ToolCalls {
				call := reply.ToolCalls[i]
				out, err := a.table.Call(ctx, call.Name, call.Arguments)
				if err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						return "", ctxErr
					}
					// The model sees the failure and may correct itself.
					slog.Debug("agent tool call failed", "tool", call.Name, "error", err)
					out = "error: " + err.Error()
				}
				a.notify(Event{State: state, Step: step, Call: &call, Output: out, Err: err})
				a.history = append(a.history, Message{
					Role:       RoleTool,
					Content:    out,
					ToolCallID: call.ID,
					ToolName:   call.Name,
				})
			}
			state = StateReasoning

		case StateDone:
			a.notify(Event{State: state, Step: step, Output: reply.Content})
			return reply.Content, nil
		}
	}
}

func (a *Agent) prompt() []Message {
	msgs := make([]Message, 0, len(a.history)+1)
	if a.system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: a.system})
	}
	return append(msgs, a.history...)
}

func (a *Agent) notify(e Event) {
	if a.observer != nil {
		a.observer(e)
	}
}

// History returns a copy of the conversation so far
func (a *Agent) History() []Message {
	return append([]Message(nil), a.history...)
}

// Reset forgets the conversation
func (a *Agent) Reset() {
	a.history = nil
}

// FormatArguments renders tool call arguments compactly for display
func FormatArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}
