package conversationnode

import (
	"fmt"

	contractx "github.com/baazlab/voicereach/agent/contract"
	speechx "github.com/baazlab/voicereach/agent/speech"
)

// FinalizeTurn normalizes every reply for phone speech and shapes the result.
func FinalizeTurn(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Session == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if in.Reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: turn produced no reply for call=%s", contractx.ErrValidation, in.CallID)
	}

	return GraphOutput{
		Result: contractx.TurnResult{
			Reply:     speechx.Clean(in.Reply),
			Continue:  in.Continue,
			Outcome:   in.Session.Outcome,
			Exchanges: in.Session.ExchangeCount,
		},
	}, nil
}
