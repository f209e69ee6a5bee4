package conversationnode

import (
	"context"
	"fmt"

	contractx "github.com/baazlab/voicereach/agent/contract"
	statex "github.com/baazlab/voicereach/agent/state"
)

// LoadSession resolves the call's session. An unknown or expired call id
// surfaces statex.ErrSessionNotFound to the caller unchanged; the webhook
// layer turns it into the session-expired response.
func LoadSession(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	sess, err := store.Get(ctx, in.CallID)
	if err != nil {
		return nil, err
	}
	if sess.Terminal() {
		return nil, fmt.Errorf("%w: session already finished for call=%s", contractx.ErrValidation, in.CallID)
	}

	in.Session = sess
	return in, nil
}
