package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/baazlab/voicereach/agent/contract"
)

func TestTemplateReplyRotates(t *testing.T) {
	t.Parallel()

	g := NewTemplate()
	lead := contractx.DefaultLeadProfile()

	seen := make(map[string]bool)
	for exchange := 0; exchange < 3; exchange++ {
		reply, err := g.Reply(context.Background(), contractx.ReplyRequest{
			Utterance: "let me think about it",
			Intent:    contractx.IntentNeutral,
			Lead:      lead,
			Exchange:  exchange,
		})
		if err != nil {
			t.Fatalf("Reply() error = %v", err)
		}
		if reply == "" {
			t.Fatal("Reply() returned empty text")
		}
		seen[reply] = true
	}
	if len(seen) != 3 {
		t.Fatalf("got %d distinct replies across 3 exchanges, want 3", len(seen))
	}
}

func TestTemplateReplyQuestion(t *testing.T) {
	t.Parallel()

	g := NewTemplate()
	reply, err := g.Reply(context.Background(), contractx.ReplyRequest{
		Utterance: "how does that even work",
		Lead:      contractx.DefaultLeadProfile(),
	})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if !strings.Contains(reply, "strategy") {
		t.Fatalf("Reply() = %q, want the strategy explanation for questions", reply)
	}
}

func TestTemplateReplyCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewTemplate()
	_, err := g.Reply(ctx, contractx.ReplyRequest{Lead: contractx.DefaultLeadProfile()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Reply() error = %v, want context.Canceled", err)
	}
}

func TestNewLLMRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewLLM(LLMConfig{})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("NewLLM() error = %v, want ErrValidation", err)
	}
}

func TestTrimSpoken(t *testing.T) {
	t.Parallel()

	short := "Short reply."
	if got := trimSpoken(short); got != short {
		t.Fatalf("trimSpoken(short) = %q, want unchanged", got)
	}

	long := strings.Repeat("First sentence is long enough to matter here. ", 6)
	got := trimSpoken(long)
	if !strings.HasSuffix(got, ".") {
		t.Fatalf("trimSpoken(long) = %q, want trailing period", got)
	}
	if strings.Count(got, ".") > 2 {
		t.Fatalf("trimSpoken(long) = %q, want at most two sentences", got)
	}
}
