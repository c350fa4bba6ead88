// Package agent hosts the LLM-backed conversational agents.
//
// # Overview
//
// The agent package owns agent identity and memory. Each Agent keeps a
// private transcript of everything it has been told and everything it has
// replied, independent of any room it participates in.
//
// # Registry
//
// The Registry tracks all live agents by name:
//
//	reg := agent.NewRegistry(backend, systemPrompt, logger)
//
// Key operations:
//
//   - Create(name): Add a new agent, false if the name is taken
//   - Get(name): Look up an agent by name
//   - Remove(name): Drop an agent and its transcript
//   - Names(): List all registered agent names
//
// All agents share one completion backend; what separates them is the
// personalized system prompt and the transcript that accumulates per agent.
//
// # Responding
//
// Respond appends the incoming prompt as a user turn, sends the whole
// transcript to the backend, and returns a Result:
//
//	res := ag.Respond(ctx, prompt)
//	if res.Soft {
//	    // backend trouble described in res.Text, transcript still advanced
//	}
//
// Backend errors and abnormal finish reasons never surface as Go errors
// here. They come back as soft results so a room conversation degrades
// into an apologetic reply instead of a dropped message.
//
// # Transcript Bounds
//
// Transcripts are bounded. Once the conversational turns exceed the cap,
// the oldest non-system turn is dropped before each append, so the system
// prompt always survives.
//
// # Thread Safety
//
// Agent serializes Respond with a mutex, so one agent answers one prompt
// at a time while distinct agents respond concurrently. Registry guards
// its map the same way.
package agent
