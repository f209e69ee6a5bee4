package state

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/baazlab/voicereach/agent/contract"
)

// Session is the per-call mutable state owned by the turn orchestrator.
// A session exists only between the call's opening webhook and its
// destruction; it is never shared across calls.
type Session struct {
	CallID string `json:"call_id"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ExchangeCount   int `json:"exchange_count"`
	ConfirmStrength int `json:"confirm_strength"`
	RejectStrength  int `json:"reject_strength"`
	EmptyStreak     int `json:"empty_streak"`

	// Outcome is set exactly once, on the turn that ends the call.
	Outcome contractx.CallOutcome `json:"outcome,omitempty"`

	Lead contractx.LeadProfile `json:"lead"`
}

// NewSession creates a session for the call's opening webhook.
func NewSession(callID string, lead contractx.LeadProfile, now time.Time) *Session {
	return &Session{
		CallID:    strings.TrimSpace(callID),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
		Lead:      lead,
	}
}

// Terminal reports whether the session has reached an end state.
func (s *Session) Terminal() bool {
	return s != nil && s.Outcome != ""
}

// Finish marks the session terminal. The first outcome wins; later calls are
// no-ops so terminal flags stay mutually exclusive.
func (s *Session) Finish(outcome contractx.CallOutcome, now time.Time) {
	if s == nil || s.Outcome != "" {
		return
	}
	s.Outcome = outcome
	s.Touch(now)
}

// AddStrength applies saturating deltas to the confirm/reject counters.
func (s *Session) AddStrength(confirm, reject int) {
	s.ConfirmStrength += confirm
	if s.ConfirmStrength < 0 {
		s.ConfirmStrength = 0
	}
	s.RejectStrength += reject
	if s.RejectStrength < 0 {
		s.RejectStrength = 0
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

func (s *Session) Validate() error {
	if strings.TrimSpace(s.CallID) == "" {
		return ErrInvalidCallID
	}
	if s.ExchangeCount < 0 || s.ConfirmStrength < 0 || s.RejectStrength < 0 || s.EmptyStreak < 0 {
		return fmt.Errorf("%w: negative counter on call=%s", contractx.ErrValidation, s.CallID)
	}
	return nil
}
