package conversationnode

import (
	"fmt"

	contractx "github.com/baazlab/voicereach/agent/contract"
)

const (
	rePromptLine = "I didn't catch that. Are you interested in hearing about maximizing your property returns?"
	noSpeechLine = "I'm having trouble hearing you. Our senior advisor will call you back within 24 hours. Thank you!"
)

// ScreenInput applies the silence policy: one empty utterance earns a
// re-prompt, a second consecutive one ends the call. Non-empty input resets
// the streak and falls through to classification.
func ScreenInput(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	if in.Utterance != "" {
		in.PendingEmptyStreak = 0
		return in, nil
	}

	if in.Session.EmptyStreak >= 1 {
		in.Reply = noSpeechLine
		in.Continue = false
		in.Resolved = true
		in.PendingEmptyStreak = in.Session.EmptyStreak + 1
		in.PendingOutcome = contractx.OutcomeNoSpeech
		return in, nil
	}

	in.Reply = rePromptLine
	in.Continue = true
	in.Resolved = true
	in.PendingEmptyStreak = 1
	return in, nil
}
