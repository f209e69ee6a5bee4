package conversationnode

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	contractx "github.com/baazlab/voicereach/agent/contract"
)

// fallbackReplyLine is spoken when the generator misses its deadline. A
// knowledge snippet alone is never spoken without a primary reply.
const fallbackReplyLine = "I'm still pulling up the latest details. Could you share a bit more while I check?"

// Limits bound one reply composition. Zero fields take the defaults below.
type Limits struct {
	GenerationTimeout time.Duration
	RetrievalTimeout  time.Duration
	MaxReplyChars     int
}

const (
	defaultGenerationTimeout = 4 * time.Second
	defaultRetrievalTimeout  = 2 * time.Second
	defaultMaxReplyChars     = 300
)

func (l Limits) withDefaults() Limits {
	if l.GenerationTimeout <= 0 {
		l.GenerationTimeout = defaultGenerationTimeout
	}
	if l.RetrievalTimeout <= 0 {
		l.RetrievalTimeout = defaultRetrievalTimeout
	}
	if l.MaxReplyChars <= 0 {
		l.MaxReplyChars = defaultMaxReplyChars
	}
	return l
}

// ComposeReply runs the generator and the knowledge lookup concurrently,
// each under its own deadline, and combines whatever arrived in time.
// Total wait is bounded by the larger of the two timeouts, not their sum.
// A result that lands after its deadline is discarded with the turn's
// channels, so it can never leak into a later turn.
func ComposeReply(
	ctx context.Context,
	in *GraphState,
	generator contractx.Generator,
	retriever contractx.Retriever,
	limits Limits,
	sem *semaphore.Weighted,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if in.Resolved {
		return in, nil
	}

	limits = limits.withDefaults()

	req := contractx.ReplyRequest{
		Utterance: in.Utterance,
		Intent:    in.Intent,
		Lead:      in.Session.Lead,
		Exchange:  in.Session.ExchangeCount,
	}

	genCtx, cancelGen := context.WithTimeout(ctx, limits.GenerationTimeout)
	defer cancelGen()
	retCtx, cancelRet := context.WithTimeout(ctx, limits.RetrievalTimeout)
	defer cancelRet()

	genCh := make(chan string, 1)
	go func() {
		genCh <- runGeneration(genCtx, generator, req, sem, in.CallID)
	}()

	retCh := make(chan string, 1)
	go func() {
		retCh <- runRetrieval(retCtx, retriever, req.Utterance, sem, in.CallID)
	}()

	var mainText string
	select {
	case mainText = <-genCh:
	case <-genCtx.Done():
		log.Warn().Str("call_id", in.CallID).Dur("timeout", limits.GenerationTimeout).Msg("reply generation timed out")
	}

	var contextText string
	select {
	case contextText = <-retCh:
	case <-retCtx.Done():
		log.Warn().Str("call_id", in.CallID).Dur("timeout", limits.RetrievalTimeout).Msg("knowledge lookup timed out")
	}

	switch {
	case mainText != "" && contextText != "":
		in.Reply = mainText + " " + contextText
	case mainText != "":
		in.Reply = mainText
	default:
		in.Reply = fallbackReplyLine
	}
	in.Reply = truncateReply(in.Reply, limits.MaxReplyChars)
	in.Continue = true

	return in, nil
}

func runGeneration(
	ctx context.Context,
	generator contractx.Generator,
	req contractx.ReplyRequest,
	sem *semaphore.Weighted,
	callID string,
) string {
	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return ""
		}
		defer sem.Release(1)
	}

	text, err := generator.Reply(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("call_id", callID).Msg("reply generation failed")
		return ""
	}
	return strings.TrimSpace(text)
}

func runRetrieval(
	ctx context.Context,
	retriever contractx.Retriever,
	query string,
	sem *semaphore.Weighted,
	callID string,
) string {
	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return ""
		}
		defer sem.Release(1)
	}

	text, err := retriever.Lookup(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("call_id", callID).Msg("knowledge lookup failed")
		return ""
	}
	return strings.TrimSpace(text)
}

// truncateReply caps the spoken text. The tail of the budget is spent on a
// period so the cut does not end mid-word abruptly. The cut lands on a rune
// boundary so a multibyte character is never split into invalid UTF-8.
func truncateReply(reply string, maxChars int) string {
	if len(reply) <= maxChars {
		return reply
	}
	if maxChars <= 3 {
		return reply[:runeCut(reply, maxChars)]
	}
	return reply[:runeCut(reply, maxChars-3)] + "."
}

// runeCut walks i back to the nearest rune start in s.
func runeCut(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
