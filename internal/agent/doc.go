// Package agent runs a tool-using chat loop over the capability table.
//
// The loop is a small state machine. In the reasoning state the model gets
// the conversation and the tool list; a reply with tool calls moves the loop
// to the invoking state, any other reply ends it. Invoking runs each call
// through the table, appends the outputs as tool messages and returns to
// reasoning. The number of model turns per question is bounded, and exceeding
// it fails with ErrMaxSteps.
//
// Models are pluggable through the Model interface. OllamaModel talks to a
// local Ollama server; OpenAIModel works with OpenAI or any endpoint speaking
// the same chat completions API.
package agent
