package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	conversationx "github.com/baazlab/voicereach/agent/agents/conversation"
	callogx "github.com/baazlab/voicereach/agent/callog"
	contractx "github.com/baazlab/voicereach/agent/contract"
	intentx "github.com/baazlab/voicereach/agent/intent"
	statex "github.com/baazlab/voicereach/agent/state"
	"github.com/baazlab/voicereach/pkg/twilio"
)

type slowGenerator struct {
	reply string
	delay time.Duration
}

func (g *slowGenerator) Reply(ctx context.Context, req contractx.ReplyRequest) (string, error) {
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.reply, nil
}

type staticRetriever struct{ snippet string }

func (r *staticRetriever) Lookup(ctx context.Context, query string) (string, error) {
	return r.snippet, nil
}

type capturingRecorder struct {
	records []callogx.Record
}

func (c *capturingRecorder) Record(ctx context.Context, rec callogx.Record) error {
	c.records = append(c.records, rec)
	return nil
}

func (c *capturingRecorder) Close() error { return nil }

type fakeDialer struct {
	lastParams twilio.MakeCallParams
	call       *twilio.Call
	err        error
	from       string
}

func (d *fakeDialer) MakeCall(ctx context.Context, params twilio.MakeCallParams) (*twilio.Call, error) {
	d.lastParams = params
	if d.err != nil {
		return nil, d.err
	}
	return d.call, nil
}

func (d *fakeDialer) FromNumber() string { return d.from }

type failingTurnHandler struct{}

func (failingTurnHandler) HandleTurn(ctx context.Context, turn contractx.TurnInput) (contractx.TurnResult, error) {
	return contractx.TurnResult{}, errors.New("graph exploded")
}

type testHarness struct {
	server   *Server
	store    statex.Store
	recorder *capturingRecorder
	dialer   *fakeDialer
}

func newHarness(t *testing.T, gen contractx.Generator, ret contractx.Retriever) *testHarness {
	t.Helper()

	store, err := statex.NewStore(statex.StoreTypeMemory)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	recorder := &capturingRecorder{}
	orch, err := conversationx.New(store, gen, ret, intentx.New(intentx.Config{}), recorder, conversationx.Config{
		GenerationTimeout: 150 * time.Millisecond,
		RetrievalTimeout:  150 * time.Millisecond,
		MaxReplyChars:     300,
		MaxExchanges:      4,
		MaxConcurrentOps:  8,
	})
	if err != nil {
		t.Fatalf("conversation.New() error = %v", err)
	}

	dialer := &fakeDialer{call: &twilio.Call{SID: "CA900", Status: "queued"}, from: "+971500000000"}
	cfg := Config{PublicBaseURL: "https://bot.example.com", GatherTimeout: 5}

	return &testHarness{
		server:   NewServer(cfg, store, orch, dialer, recorder),
		store:    store,
		recorder: recorder,
		dialer:   dialer,
	}
}

func postForm(t *testing.T, handler http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestVoiceOpensCallWithGreeting(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &slowGenerator{reply: "unused"}, &staticRetriever{})
	rr := postForm(t, h.server.Handler(), "/voice", url.Values{
		"CallSid": {"CA400"},
		"From":    {"+971500000000"},
		"To":      {"+971501112222"},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("Content-Type = %q", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"<Gather", `action="/process"`,
		"2,100,000 Arab Emirates Dirhams since 2020",
		"175 percent return on investment",
		"hear a response", "<Hangup>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}

	sess, err := h.store.Get(context.Background(), "CA400")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess.From != "+971500000000" || sess.To != "+971501112222" {
		t.Fatalf("session numbers = %q/%q", sess.From, sess.To)
	}
}

func TestProcessSlowGeneratorSpeaksFallback(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &slowGenerator{reply: "too late", delay: time.Second}, &staticRetriever{snippet: "orphan snippet"})
	postForm(t, h.server.Handler(), "/voice", url.Values{"CallSid": {"CA401"}})

	rr := postForm(t, h.server.Handler(), "/process", url.Values{
		"CallSid":      {"CA401"},
		"SpeechResult": {"tell me more about the market"},
	})

	body := rr.Body.String()
	if !strings.Contains(body, "still pulling up the latest details") {
		t.Fatalf("body missing fallback text:\n%s", body)
	}
	if !strings.Contains(body, "<Gather") {
		t.Fatalf("call must keep listening after fallback:\n%s", body)
	}
	if !strings.Contains(body, "What do you think?") {
		t.Fatalf("body missing follow-up prompt inside gather:\n%s", body)
	}
}

func TestProcessSilenceRepromptsInsideGather(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &slowGenerator{reply: "unused"}, &staticRetriever{})
	postForm(t, h.server.Handler(), "/voice", url.Values{"CallSid": {"CA406"}})

	rr := postForm(t, h.server.Handler(), "/process", url.Values{
		"CallSid":      {"CA406"},
		"SpeechResult": {""},
	})

	body := rr.Body.String()
	if !strings.Contains(body, "catch that") {
		t.Fatalf("body missing re-prompt:\n%s", body)
	}
	// The re-prompt is itself the gather prompt, not followed by another
	// question.
	if strings.Contains(body, "What do you think?") {
		t.Fatalf("silence turn must not add the follow-up line:\n%s", body)
	}
	if idx := strings.Index(body, "<Gather"); idx < 0 || !strings.Contains(body[idx:], "catch that") {
		t.Fatalf("re-prompt must be spoken inside the gather:\n%s", body)
	}
}

func TestProcessConfirmEndsCallAndRecordsOutcome(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &slowGenerator{reply: "unused"}, &staticRetriever{})
	postForm(t, h.server.Handler(), "/voice", url.Values{
		"CallSid": {"CA402"},
		"From":    {"+971509998877"},
		"To":      {"+971502223344"},
	})

	rr := postForm(t, h.server.Handler(), "/process", url.Values{
		"CallSid":      {"CA402"},
		"SpeechResult": {"yes, very interested"},
	})

	body := rr.Body.String()
	if !strings.Contains(body, "detailed investment projections") {
		t.Fatalf("body missing confirm closing:\n%s", body)
	}
	if !strings.Contains(body, "<Hangup>") {
		t.Fatalf("confirm must hang up:\n%s", body)
	}

	if len(h.recorder.records) != 1 {
		t.Fatalf("records = %d, want 1", len(h.recorder.records))
	}
	rec := h.recorder.records[0]
	if rec.Outcome != string(contractx.OutcomeConfirmed) {
		t.Fatalf("recorded outcome = %q, want confirmed", rec.Outcome)
	}
	if rec.ConfirmStrength != 2 {
		t.Fatalf("ConfirmStrength = %d, want 2", rec.ConfirmStrength)
	}
	if rec.From != "+971509998877" || rec.To != "+971502223344" {
		t.Fatalf("From/To = %q/%q, want caller numbers on the record", rec.From, rec.To)
	}
	if rec.StartedAt.IsZero() || rec.EndedAt.IsZero() {
		t.Fatalf("record missing timestamps: %+v", rec)
	}

	// The session is gone, so the provider's next callback gets the
	// expired response.
	rr = postForm(t, h.server.Handler(), "/process", url.Values{
		"CallSid":      {"CA402"},
		"SpeechResult": {"hello?"},
	})
	if !strings.Contains(rr.Body.String(), "Session expired") {
		t.Fatalf("body missing expired line:\n%s", rr.Body.String())
	}
}

func TestProcessUnknownSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &slowGenerator{reply: "unused"}, &staticRetriever{})

	rr := postForm(t, h.server.Handler(), "/process", url.Values{
		"CallSid":      {"CA403"},
		"SpeechResult": {"hello"},
	})

	body := rr.Body.String()
	if !strings.Contains(body, "Session expired. Please call back.") {
		t.Fatalf("body missing expired line:\n%s", body)
	}
	if !strings.Contains(body, "<Hangup>") {
		t.Fatalf("expired session must hang up:\n%s", body)
	}
}

func TestProcessTurnFailureEndsCallGracefully(t *testing.T) {
	t.Parallel()

	store, err := statex.NewStore(statex.StoreTypeMemory)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sess := statex.NewSession("CA404", contractx.DefaultLeadProfile(), time.Now())
	if err := store.Create(context.Background(), sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	recorder := &capturingRecorder{}
	server := NewServer(Config{GatherTimeout: 5}, store, failingTurnHandler{}, nil, recorder)

	rr := postForm(t, server.Handler(), "/process", url.Values{
		"CallSid":      {"CA404"},
		"SpeechResult": {"hello"},
	})

	body := rr.Body.String()
	if !strings.Contains(body, "technical issue") || !strings.Contains(body, "<Hangup>") {
		t.Fatalf("body missing technical-issue hangup:\n%s", body)
	}

	if _, err := store.Get(context.Background(), "CA404"); !errors.Is(err, statex.ErrSessionNotFound) {
		t.Fatalf("session must be destroyed after failed turn, Get() error = %v", err)
	}
	if len(recorder.records) != 1 || recorder.records[0].Outcome != string(contractx.OutcomeFailed) {
		t.Fatalf("records = %+v, want one failed record", recorder.records)
	}
}

func TestOutboundCall(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &slowGenerator{reply: "unused"}, &staticRetriever{})

	payload := `{"to_number":"+971501112222","client_name":"John Smith","property_id":"DXB-042"}`
	req := httptest.NewRequest(http.MethodPost, "/outbound_call", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["status"] != "initiated" || resp["call_sid"] != "CA900" {
		t.Fatalf("response = %v", resp)
	}
	if want := "https://bot.example.com/voice"; h.dialer.lastParams.URL != want {
		t.Fatalf("callback url = %q, want %q", h.dialer.lastParams.URL, want)
	}
}

// captureLogs routes the global logger into a buffer for the test's duration.
// Callers must not run in parallel.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestProcessLogsConfidence(t *testing.T) {
	buf := captureLogs(t)

	h := newHarness(t, &slowGenerator{reply: "Noted."}, &staticRetriever{})
	postForm(t, h.server.Handler(), "/voice", url.Values{"CallSid": {"CA408"}})

	postForm(t, h.server.Handler(), "/process", url.Values{
		"CallSid":      {"CA408"},
		"SpeechResult": {"tell me more"},
		"Confidence":   {"0.87"},
	})

	if !strings.Contains(buf.String(), `"confidence":0.87`) {
		t.Fatalf("turn log missing confidence:\n%s", buf.String())
	}
}

func TestOutboundCallLogsClientIdentifiers(t *testing.T) {
	buf := captureLogs(t)

	h := newHarness(t, &slowGenerator{reply: "unused"}, &staticRetriever{})

	payload := `{"to_number":"+971501112222","client_name":"John Smith","property_id":"DXB-042"}`
	req := httptest.NewRequest(http.MethodPost, "/outbound_call", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	logged := buf.String()
	if !strings.Contains(logged, `"client_name":"John Smith"`) || !strings.Contains(logged, `"property_id":"DXB-042"`) {
		t.Fatalf("outbound log missing client identifiers:\n%s", logged)
	}
}

func TestOutboundCallMissingNumber(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &slowGenerator{reply: "unused"}, &staticRetriever{})

	req := httptest.NewRequest(http.MethodPost, "/outbound_call", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestOutboundCallProviderNotConfigured(t *testing.T) {
	t.Parallel()

	store, err := statex.NewStore(statex.StoreTypeMemory)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	server := NewServer(Config{}, store, failingTurnHandler{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/outbound_call", strings.NewReader(`{"to_number":"+971501112222"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestOutboundCallProviderFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &slowGenerator{reply: "unused"}, &staticRetriever{})
	h.dialer.err = &twilio.Error{Code: 21211, Message: "Invalid 'To' phone number", Status: 400}

	req := httptest.NewRequest(http.MethodPost, "/outbound_call", strings.NewReader(`{"to_number":"bogus"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &slowGenerator{reply: "unused"}, &staticRetriever{})
	postForm(t, h.server.Handler(), "/voice", url.Values{"CallSid": {"CA405"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp struct {
		Status         string `json:"status"`
		ActiveSessions int    `json:"active_sessions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != "healthy" || resp.ActiveSessions != 1 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestGroupDigits(t *testing.T) {
	t.Parallel()

	cases := map[int64]string{
		0:          "0",
		999:        "999",
		2_100_000:  "2,100,000",
		-1_234_567: "-1,234,567",
	}
	for n, want := range cases {
		if got := groupDigits(n); got != want {
			t.Errorf("groupDigits(%d) = %q, want %q", n, got, want)
		}
	}
}
