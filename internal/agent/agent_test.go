package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/tools"
)

// scriptedModel replays canned replies and records what it was sent
type scriptedModel struct {
	replies []Message
	err     error
	calls   [][]Message
	tools   []ToolSpec
}

func (m *scriptedModel) Chat(_ context.Context, messages []Message, specs []ToolSpec) (Message, error) {
	m.calls = append(m.calls, append([]Message(nil), messages...))
	m.tools = specs
	if m.err != nil {
		return Message{}, m.err
	}
	if len(m.calls) > len(m.replies) {
		return m.replies[len(m.replies)-1], nil
	}
	return m.replies[len(m.calls)-1], nil
}

func echoTable(t *testing.T, seen *[]tools.Args) *tools.Table {
	t.Helper()
	return tools.NewTable(tools.Capability{
		Name:        "query_repository",
		Description: "Search the indexed repository",
		Params: []tools.Param{
			{Name: "query", Type: tools.TypeString, Description: "search text", Required: true},
		},
		Handler: func(_ context.Context, args tools.Args) (string, error) {
			*seen = append(*seen, args)
			return "found: " + args.String("query"), nil
		},
	})
}

func TestAsk_AnswerWithoutTools(t *testing.T) {
	var seen []tools.Args
	model := &scriptedModel{replies: []Message{{Content: "hello"}}}
	a := New(model, echoTable(t, &seen), WithSystemPrompt("sys"))

	answer, err := a.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", answer)
	assert.Empty(t, seen)

	require.Len(t, model.calls, 1)
	assert.Equal(t, RoleSystem, model.calls[0][0].Role)
	assert.Equal(t, "sys", model.calls[0][0].Content)
	assert.Equal(t, Message{Role: RoleUser, Content: "hi"}, model.calls[0][1])

	require.Len(t, model.tools, 1)
	assert.Equal(t, "query_repository", model.tools[0].Name)
	assert.Equal(t, []string{"query"}, model.tools[0].Parameters["required"])
}

func TestAsk_ToolRoundTrip(t *testing.T) {
	var seen []tools.Args
	model := &scriptedModel{replies: []Message{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "query_repository", Arguments: map[string]any{"query": "parser"}}}},
		{Content: "The parser lives in parse.py. Tools: query_repository(query=parser)"},
	}}
	var events []Event
	a := New(model, echoTable(t, &seen), WithObserver(func(e Event) { events = append(events, e) }))

	answer, err := a.Ask(context.Background(), "where is the parser?")
	require.NoError(t, err)
	assert.Contains(t, answer, "parse.py")

	require.Len(t, seen, 1)
	assert.Equal(t, "parser", seen[0].String("query"))

	require.Len(t, model.calls, 2)
	second := model.calls[1]
	last := second[len(second)-1]
	assert.Equal(t, RoleTool, last.Role)
	assert.Equal(t, "found: parser", last.Content)
	assert.Equal(t, "c1", last.ToolCallID)
	assert.Equal(t, "query_repository", last.ToolName)

	var states []State
	for _, e := range events {
		states = append(states, e.State)
	}
	assert.Equal(t, []State{StateReasoning, StateInvoking, StateReasoning, StateDone}, states)

	// user, assistant(tool call), tool, assistant(answer)
	assert.Len(t, a.History(), 4)
}

func TestAsk_ToolErrorFedBack(t *testing.T) {
	var seen []tools.Args
	model := &scriptedModel{replies: []Message{
		{ToolCalls: []ToolCall{{Name: "no_such_tool"}}},
		{Content: "sorry"},
	}}
	a := New(model, echoTable(t, &seen))

	answer, err := a.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "sorry", answer)

	second := model.calls[1]
	assert.Contains(t, second[len(second)-1].Content, "error:")
}

func TestAsk_MaxSteps(t *testing.T) {
	var seen []tools.Args
	loop := Message{ToolCalls: []ToolCall{{Name: "query_repository", Arguments: map[string]any{"query": "x"}}}}
	model := &scriptedModel{replies: []Message{loop}}
	a := New(model, echoTable(t, &seen), WithMaxSteps(3))

	_, err := a.Ask(context.Background(), "q")
	require.ErrorIs(t, err, ErrMaxSteps)
	assert.Len(t, model.calls, 3)
	assert.Empty(t, a.History(), "failed question must not stay in the conversation")
}

func TestAsk_ModelError(t *testing.T) {
	var seen []tools.Args
	boom := errors.New("boom")
	model := &scriptedModel{err: boom}
	a := New(model, echoTable(t, &seen))

	_, err := a.Ask(context.Background(), "q")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, a.History())
}

func TestAsk_ConversationCarriesOver(t *testing.T) {
	var seen []tools.Args
	model := &scriptedModel{replies: []Message{{Content: "one"}, {Content: "two"}}}
	a := New(model, echoTable(t, &seen))

	_, err := a.Ask(context.Background(), "first")
	require.NoError(t, err)
	_, err = a.Ask(context.Background(), "second")
	require.NoError(t, err)

	// system, first, one, second
	require.Len(t, model.calls[1], 4)
	assert.Equal(t, "one", model.calls[1][2].Content)

	a.Reset()
	assert.Empty(t, a.History())
}

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt("/src/project")
	assert.Contains(t, p, "/src/project")
	assert.Contains(t, p, "tools and arguments")
}

func TestFormatArguments(t *testing.T) {
	assert.Equal(t, "{}", FormatArguments(nil))
	assert.Equal(t, `{"k":3,"query":"x"}`, FormatArguments(map[string]any{"query": "x", "k": 3}))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "reasoning", StateReasoning.String())
	assert.Equal(t, "invoking", StateInvoking.String())
	assert.Equal(t, "done", StateDone.String())
}
