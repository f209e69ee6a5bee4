package conversationnode

import (
	"fmt"

	contractx "github.com/baazlab/voicereach/agent/contract"
	intentx "github.com/baazlab/voicereach/agent/intent"
)

// decisiveStrength is credited to the matching counter when an intent ends
// the call on its own.
const decisiveStrength = 2

const (
	confirmClosingLine = "Excellent! I'll send you detailed investment projections via WhatsApp and have our senior advisor contact you within 24 hours with specific opportunities. Thank you!"
	rejectClosingLine  = "I understand. You'll be removed from our calling list. Have a great day!"
)

// ClassifyIntent labels the utterance and resolves decisive turns with their
// fixed closing lines. Neutral turns fall through to reply composition.
func ClassifyIntent(in *GraphState, classifier *intentx.Classifier) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if in.Resolved {
		return in, nil
	}

	in.Intent = classifier.Classify(in.Utterance)

	switch in.Intent {
	case contractx.IntentStrongConfirm:
		in.Reply = confirmClosingLine
		in.Continue = false
		in.Resolved = true
		in.PendingConfirm = decisiveStrength
		in.PendingOutcome = contractx.OutcomeConfirmed
	case contractx.IntentStrongReject:
		in.Reply = rejectClosingLine
		in.Continue = false
		in.Resolved = true
		in.PendingReject = decisiveStrength
		in.PendingOutcome = contractx.OutcomeRejected
	}

	return in, nil
}
