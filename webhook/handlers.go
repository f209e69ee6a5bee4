package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	callogx "github.com/baazlab/voicereach/agent/callog"
	contractx "github.com/baazlab/voicereach/agent/contract"
	speechx "github.com/baazlab/voicereach/agent/speech"
	statex "github.com/baazlab/voicereach/agent/state"
	"github.com/baazlab/voicereach/pkg/twilio"
	"github.com/baazlab/voicereach/pkg/twiml"
)

const (
	noInputLine        = "I didn't hear a response. Our team will call you back. Goodbye!"
	followUpLine       = "What do you think?"
	sessionExpiredLine = "Session expired. Please call back."
	technicalIssueLine = "I'm experiencing a technical issue. Our senior advisor will call you back shortly. Thank you!"
)

// handleVoice opens the call: it creates the session and speaks the greeting
// while listening for the first response.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(r.PostFormValue("CallSid"))
	if callID == "" {
		s.respondTwiML(w, twiml.New().Say(technicalIssueLine).Hangup())
		return
	}

	lead := s.lead()
	sess := statex.NewSession(callID, lead, time.Now())
	sess.From = r.PostFormValue("From")
	sess.To = r.PostFormValue("To")

	if err := s.store.Create(r.Context(), sess); err != nil {
		log.Error().Err(err).Str("call_id", callID).Msg("create session")
		s.respondTwiML(w, twiml.New().Say(technicalIssueLine).Hangup())
		return
	}

	log.Info().Str("call_id", callID).Str("from", sess.From).Msg("call opened")

	doc := twiml.New().
		GatherSpeech("/process", s.cfg.GatherTimeout, speechx.Clean(greeting(lead))).
		Say(noInputLine).
		Hangup()
	s.respondTwiML(w, doc)
}

// handleProcess runs one conversation turn and renders the orchestrator's
// decision as markup.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	callID := strings.TrimSpace(r.PostFormValue("CallSid"))
	if callID == "" {
		s.respondTwiML(w, twiml.New().Say(technicalIssueLine).Hangup())
		return
	}

	utterance := r.PostFormValue("SpeechResult")
	confidence, _ := strconv.ParseFloat(r.PostFormValue("Confidence"), 64)

	res, err := s.turns.HandleTurn(r.Context(), contractx.TurnInput{
		CallID:     callID,
		Utterance:  utterance,
		Confidence: confidence,
	})
	if err != nil {
		s.renderTurnError(w, r, callID, err)
		return
	}

	log.Info().
		Str("call_id", callID).
		Float64("confidence", confidence).
		Int("exchanges", res.Exchanges).
		Bool("continue", res.Continue).
		Dur("elapsed", time.Since(started)).
		Msg("turn handled")

	if res.Continue {
		// A silence re-prompt goes inside the Gather; a spoken reply is said
		// first, then the Gather asks the follow-up.
		doc := twiml.New()
		if strings.TrimSpace(utterance) == "" {
			doc.GatherSpeech("/process", s.cfg.GatherTimeout, res.Reply)
		} else {
			doc.Say(res.Reply).
				GatherSpeech("/process", s.cfg.GatherTimeout, followUpLine)
		}
		s.respondTwiML(w, doc)
		return
	}

	s.respondTwiML(w, twiml.New().Say(res.Reply).Hangup())
}

func (s *Server) renderTurnError(w http.ResponseWriter, r *http.Request, callID string, err error) {
	if errors.Is(err, statex.ErrSessionNotFound) {
		log.Warn().Str("call_id", callID).Msg("turn for unknown or expired session")
		s.respondTwiML(w, twiml.New().Say(sessionExpiredLine).Hangup())
		return
	}

	log.Error().Err(err).Str("call_id", callID).Msg("turn failed")

	// The session may hold half-applied state; destroy it so the provider's
	// next callback gets the expired response instead of retrying against it.
	if derr := s.store.Delete(r.Context(), callID); derr != nil && !errors.Is(derr, statex.ErrSessionNotFound) {
		log.Warn().Err(derr).Str("call_id", callID).Msg("destroy session after failed turn")
	}
	if rerr := s.recorder.Record(r.Context(), callogx.Failed(callID, time.Now())); rerr != nil {
		log.Warn().Err(rerr).Str("call_id", callID).Msg("record failed call")
	}

	s.respondTwiML(w, twiml.New().Say(technicalIssueLine).Hangup())
}

type outboundCallRequest struct {
	ToNumber   string `json:"to_number"`
	ClientName string `json:"client_name"`
	PropertyID string `json:"property_id"`
}

// handleOutboundCall asks the telephony provider to place a call whose
// answer webhook points back at /voice.
func (s *Server) handleOutboundCall(w http.ResponseWriter, r *http.Request) {
	if s.dialer == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "telephony provider not configured"})
		return
	}

	var req outboundCallRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.ToNumber) == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "to_number is required"})
		return
	}
	if s.dialer.FromNumber() == "" || s.cfg.PublicBaseURL == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "from number and public base url must be configured"})
		return
	}

	callbackURL := strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/voice"

	call, err := s.dialer.MakeCall(r.Context(), twilio.MakeCallParams{
		To:  req.ToNumber,
		URL: callbackURL,
	})
	if err != nil {
		log.Error().Err(err).Str("to", req.ToNumber).Msg("outbound call failed")
		respondJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	log.Info().
		Str("call_sid", call.SID).
		Str("to", req.ToNumber).
		Str("client_name", req.ClientName).
		Str("property_id", req.PropertyID).
		Msg("outbound call placed")
	respondJSON(w, http.StatusOK, map[string]string{"status": "initiated", "call_sid": call.SID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "healthy", "active_sessions": count})
}

// greeting opens with the lead's own numbers so the first line lands as a
// personal valuation update, not a cold pitch.
func greeting(lead contractx.LeadProfile) string {
	return fmt.Sprintf(
		"Hi %s, this is Alexa from Baaz Landmark Real Estate. Your %s property gained %s Arab Emirates Dirhams since %d. That's %.0f percent return on investment! Are you interested in maximizing this further?",
		lead.Name,
		lead.Location,
		groupDigits(lead.Profit()),
		lead.PurchaseYear,
		lead.ROIPercent(),
	)
}

// groupDigits renders n with comma thousands separators.
func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	for i, digit := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
