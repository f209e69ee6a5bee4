package contract

// Intent is the closed set of labels the keyword classifier produces.
// Unmatched input always maps to IntentNeutral, never to an absent value.
type Intent string

const (
	IntentStrongConfirm Intent = "strong_confirm"
	IntentStrongReject  Intent = "strong_reject"
	IntentNeutral       Intent = "neutral"
)

// Decisive reports whether the intent ends the conversation on its own.
func (i Intent) Decisive() bool {
	return i == IntentStrongConfirm || i == IntentStrongReject
}

// CallOutcome marks how a finished call ended.
type CallOutcome string

const (
	OutcomeConfirmed CallOutcome = "confirmed"
	OutcomeRejected  CallOutcome = "rejected"
	OutcomeWrappedUp CallOutcome = "wrapped_up"
	OutcomeNoSpeech  CallOutcome = "no_speech"
	OutcomeFailed    CallOutcome = "failed"
)

// TurnInput is one webhook turn as seen by the orchestrator.
type TurnInput struct {
	CallID     string
	Utterance  string
	Confidence float64
}

// TurnResult is the spoken reply for one turn plus whether the call should
// keep listening. Outcome is set only on the turn that ends the call.
type TurnResult struct {
	Reply     string
	Continue  bool
	Outcome   CallOutcome
	Exchanges int
}

// ReplyRequest carries everything a reply generator needs for one turn.
type ReplyRequest struct {
	Utterance string
	Intent    Intent
	Lead      LeadProfile
	Exchange  int
}

// LeadProfile describes the property owner being called.
type LeadProfile struct {
	Name         string `json:"name"`
	Location     string `json:"location"`
	Bedrooms     int    `json:"bedrooms"`
	PurchaseYear int    `json:"purchase_year"`
	BoughtPrice  int64  `json:"bought_price"`
	CurrentPrice int64  `json:"current_price"`
}

// Profit is the absolute gain since purchase. Negative when the market fell.
func (l LeadProfile) Profit() int64 {
	return l.CurrentPrice - l.BoughtPrice
}

// ROIPercent is the gain relative to the purchase price, in percent.
// Returns 0 for a zero purchase price.
func (l LeadProfile) ROIPercent() float64 {
	if l.BoughtPrice == 0 {
		return 0
	}
	return float64(l.Profit()) / float64(l.BoughtPrice) * 100
}

// DefaultLeadProfile is the demo profile used when no CRM lookup is wired.
func DefaultLeadProfile() LeadProfile {
	return LeadProfile{
		Name:         "John Smith",
		Location:     "Downtown Dubai",
		Bedrooms:     2,
		PurchaseYear: 2020,
		BoughtPrice:  1_200_000,
		CurrentPrice: 3_300_000,
	}
}
