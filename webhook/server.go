// Package webhook exposes the telephony provider's HTTP callback surface.
// Every voice endpoint answers with a well-formed markup document, including
// on error paths, because the provider treats anything else as a dead call.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	callogx "github.com/baazlab/voicereach/agent/callog"
	contractx "github.com/baazlab/voicereach/agent/contract"
	statex "github.com/baazlab/voicereach/agent/state"
	"github.com/baazlab/voicereach/pkg/twilio"
	"github.com/baazlab/voicereach/pkg/twiml"
)

// Config shapes the webhook surface.
type Config struct {
	Addr          string `split_words:"true" default:":8080"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" split_words:"true"`
	GatherTimeout int    `split_words:"true" default:"5"`
}

// TurnHandler processes one conversation turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, turn contractx.TurnInput) (contractx.TurnResult, error)
}

// Dialer places outbound calls. Nil when the provider account is not
// configured; /outbound_call then answers with a configuration error.
type Dialer interface {
	MakeCall(ctx context.Context, params twilio.MakeCallParams) (*twilio.Call, error)
	FromNumber() string
}

type Server struct {
	cfg      Config
	store    statex.Store
	turns    TurnHandler
	dialer   Dialer
	recorder callogx.Recorder
	lead     func() contractx.LeadProfile
}

func NewServer(cfg Config, store statex.Store, turns TurnHandler, dialer Dialer, recorder callogx.Recorder) *Server {
	if recorder == nil {
		recorder = callogx.NoopRecorder{}
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		turns:    turns,
		dialer:   dialer,
		recorder: recorder,
		lead:     contractx.DefaultLeadProfile,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /voice", s.handleVoice)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("POST /outbound_call", s.handleOutboundCall)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) respondTwiML(w http.ResponseWriter, doc *twiml.Response) {
	body, err := doc.Render()
	if err != nil {
		log.Error().Err(err).Msg("render voice response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write(body)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("encode json response")
	}
}
