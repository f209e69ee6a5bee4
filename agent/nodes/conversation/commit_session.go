package conversationnode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	callogx "github.com/baazlab/voicereach/agent/callog"
	contractx "github.com/baazlab/voicereach/agent/contract"
	statex "github.com/baazlab/voicereach/agent/state"
)

const wrapUpLine = "I can see you need time to consider this. Our senior advisor will send you detailed information and follow up personally. Thank you for your time!"

const defaultMaxExchanges = 4

// CommitSession is the pipeline's only writer: it applies the staged deltas,
// enforces the exchange ceiling, and either persists the session or destroys
// it when the turn was terminal. Nothing before this node touches the store,
// so a failed turn never leaves half-applied counters behind.
func CommitSession(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	recorder callogx.Recorder,
	maxExchanges int,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if maxExchanges <= 0 {
		maxExchanges = defaultMaxExchanges
	}

	sess := in.Session
	sess.EmptyStreak = in.PendingEmptyStreak
	sess.AddStrength(in.PendingConfirm, in.PendingReject)

	// Only a composed reply counts as an exchange; re-prompts and decisive
	// closings return without advancing the counter.
	if !in.Resolved {
		sess.ExchangeCount++
		if sess.ExchangeCount >= maxExchanges {
			in.Reply = wrapUpLine
			in.Continue = false
			in.PendingOutcome = contractx.OutcomeWrappedUp
		}
	}

	if in.PendingOutcome != "" {
		sess.Finish(in.PendingOutcome, in.Now)
		// Record before Delete: the finished counters and caller numbers only
		// live on the session, and the store is about to forget them.
		if recorder != nil {
			if err := recorder.Record(ctx, callogx.FromSession(sess)); err != nil {
				log.Warn().Err(err).Str("call_id", sess.CallID).Msg("record call outcome")
			}
		}
		if err := store.Delete(ctx, sess.CallID); err != nil {
			return nil, err
		}
		return in, nil
	}

	sess.Touch(in.Now)
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if err := store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return in, nil
}
