package conversationnode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/baazlab/voicereach/agent/contract"
	statex "github.com/baazlab/voicereach/agent/state"
)

var ErrInvalidCallID = errors.New("call id is empty")

type GraphInput struct {
	CallID     string
	Utterance  string
	Confidence float64
}

type GraphOutput struct {
	Result contractx.TurnResult
}

// GraphState flows through the turn pipeline. Nodes stage their effects on it;
// only CommitSession writes the session back to the store, so an error in any
// earlier node leaves the stored session untouched.
type GraphState struct {
	CallID     string
	Utterance  string
	Confidence float64
	Now        time.Time

	Session *statex.Session
	Intent  contractx.Intent

	// Reply and Continue are set by whichever node resolves the turn.
	// Resolved short-circuits the remaining reply nodes.
	Reply    string
	Continue bool
	Resolved bool

	// Session deltas staged for CommitSession.
	PendingEmptyStreak int
	PendingConfirm     int
	PendingReject      int
	PendingOutcome     contractx.CallOutcome
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	callID := strings.TrimSpace(in.CallID)
	if callID == "" {
		return nil, ErrInvalidCallID
	}

	// An empty utterance is a legitimate turn: the caller stayed silent and
	// the silence policy decides what happens next.
	return &GraphState{
		CallID:     callID,
		Utterance:  strings.TrimSpace(in.Utterance),
		Confidence: in.Confidence,
		Now:        nowFn().UTC(),
	}, nil
}
