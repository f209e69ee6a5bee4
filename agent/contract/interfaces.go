package contract

import "context"

// Generator produces the primary spoken reply for a non-decisive turn.
// Implementations must honor ctx cancellation; the orchestrator enforces a
// per-turn deadline and discards late results.
type Generator interface {
	Reply(ctx context.Context, req ReplyRequest) (string, error)
}

// Retriever returns a short supporting snippet for an utterance, or an empty
// string when nothing relevant exists. Blocking call contract; internals are
// out of scope for the conversation core.
type Retriever interface {
	Lookup(ctx context.Context, query string) (string, error)
}
