package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"golang.org/x/sync/semaphore"

	callogx "github.com/baazlab/voicereach/agent/callog"
	contractx "github.com/baazlab/voicereach/agent/contract"
	intentx "github.com/baazlab/voicereach/agent/intent"
	nodex "github.com/baazlab/voicereach/agent/nodes/conversation"
	statex "github.com/baazlab/voicereach/agent/state"
)

var ErrInvalidCallID = nodex.ErrInvalidCallID

// Config bounds the turn pipeline. Zero values take the documented defaults.
type Config struct {
	GenerationTimeout time.Duration `split_words:"true" default:"4s"`
	RetrievalTimeout  time.Duration `split_words:"true" default:"2s"`
	MaxReplyChars     int           `split_words:"true" default:"300"`
	MaxExchanges      int           `split_words:"true" default:"4"`
	MaxConcurrentOps  int64         `split_words:"true" default:"32"`
}

// Orchestrator drives one conversation turn per webhook callback.
type Orchestrator struct {
	store      statex.Store
	generator  contractx.Generator
	retriever  contractx.Retriever
	classifier *intentx.Classifier
	recorder   callogx.Recorder

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	limits       nodex.Limits
	maxExchanges int
	sem          *semaphore.Weighted

	now func() time.Time
}

func New(
	store statex.Store,
	generator contractx.Generator,
	retriever contractx.Retriever,
	classifier *intentx.Classifier,
	recorder callogx.Recorder,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if generator == nil {
		return nil, errors.New("reply generator is required")
	}
	if retriever == nil {
		return nil, errors.New("knowledge retriever is required")
	}
	if classifier == nil {
		classifier = intentx.New(intentx.Config{})
	}
	if recorder == nil {
		recorder = callogx.NoopRecorder{}
	}

	maxConcurrent := cfg.MaxConcurrentOps
	if maxConcurrent <= 0 {
		maxConcurrent = 32
	}

	o := &Orchestrator{
		store:      store,
		generator:  generator,
		retriever:  retriever,
		classifier: classifier,
		recorder:   recorder,
		limits: nodex.Limits{
			GenerationTimeout: cfg.GenerationTimeout,
			RetrievalTimeout:  cfg.RetrievalTimeout,
			MaxReplyChars:     cfg.MaxReplyChars,
		},
		maxExchanges: cfg.MaxExchanges,
		sem:          semaphore.NewWeighted(maxConcurrent),
		now:          time.Now,
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTurn processes one utterance for the call and returns the spoken
// reply with the continuation decision. statex.ErrSessionNotFound passes
// through for unknown or expired call ids.
func (o *Orchestrator) HandleTurn(ctx context.Context, turn contractx.TurnInput) (contractx.TurnResult, error) {
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		CallID:     turn.CallID,
		Utterance:  turn.Utterance,
		Confidence: turn.Confidence,
	})
	if err != nil {
		return contractx.TurnResult{}, err
	}
	return out.Result, nil
}
