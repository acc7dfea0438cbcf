package decision

import (
	"regexp"
	"time"

	"github.com/mfalcone/duecall/internal/intent"
	"github.com/mfalcone/duecall/internal/replies"
	"github.com/mfalcone/duecall/internal/risk"
)

// State is the conversation FSM state.
type State string

const (
	StateGreeting          State = "GREETING"
	StateListening         State = "LISTENING"
	StateConfirmingPayment State = "CONFIRMING_PAYMENT"
	StateAwaitingContact   State = "AWAITING_CONTACT"
	StateEscalated         State = "ESCALATED"
	StateClosed            State = "CLOSED"
)

// Terminal reports whether no further action-producing transition can occur.
// A later turn for the same customer starts a fresh session.
func (s State) Terminal() bool {
	switch s {
	case StateAwaitingContact, StateEscalated, StateClosed:
		return true
	default:
		return false
	}
}

// Action is what the orchestrator does with a decision.
type Action string

const (
	ActionContinue         Action = "continue_conversation"
	ActionIssuePaymentLink Action = "issue_payment_link"
	ActionScheduleCallback Action = "schedule_callback"
	ActionEscalate         Action = "escalate_to_human"
	ActionEndSession       Action = "end_session"
)

// Decision is the engine's output for one turn, 1:1 with the turn.
type Decision struct {
	NextState   State      `json:"next_state"`
	Action      Action     `json:"action"`
	Reply       string     `json:"reply"`
	Urgent      bool       `json:"urgent,omitempty"`
	Destination string     `json:"destination,omitempty"`
	Reprompts   int        `json:"reprompts"`
	CallbackAt  *time.Time `json:"callback_at,omitempty"`
}

// Input is everything the engine may read for one decision. The engine is a
// pure function of this snapshot; it never touches session storage.
type Input struct {
	State        State
	Intent       intent.Result
	Utterance    string
	Tier         risk.Tier
	Reprompts    int
	Language     string
	CustomerName string
	AmountDue    float64
	DueDate      string
}

const defaultRepromptLimit = 3

// DefaultCallbackDelay is used when the customer asks for a callback without
// a parseable time.
const DefaultCallbackDelay = 24 * time.Hour

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Engine applies the decision rules for collection conversations.
type Engine struct {
	catalog       *replies.Catalog
	repromptLimit int
	now           func() time.Time
}

func NewEngine(catalog *replies.Catalog, repromptLimit int) *Engine {
	if catalog == nil {
		catalog = replies.NewCatalog()
	}
	if repromptLimit <= 0 {
		repromptLimit = defaultRepromptLimit
	}
	return &Engine{
		catalog:       catalog,
		repromptLimit: repromptLimit,
		now:           time.Now,
	}
}

// Decide computes the next state and action for one classified turn.
func (e *Engine) Decide(in Input) Decision {
	// Terminal states never transition again; the store will have archived
	// the session, this is a defensive backstop for stale callers.
	if in.State.Terminal() {
		return Decision{
			NextState: in.State,
			Action:    ActionEndSession,
			Reply:     e.render(in, replies.KindClosing),
			Reprompts: in.Reprompts,
		}
	}

	if in.State == StateConfirmingPayment {
		return e.decideConfirming(in)
	}

	ambiguous := in.Intent.Ambiguous()
	if ambiguous {
		n := in.Reprompts + 1
		if n >= e.repromptLimit {
			return Decision{
				NextState: StateClosed,
				Action:    ActionEndSession,
				Reply:     e.render(in, replies.KindClosing),
				Reprompts: n,
			}
		}
		if in.State == StateGreeting {
			// The opening turn still plays the reminder even when the
			// utterance itself is noise.
			return Decision{
				NextState: StateListening,
				Action:    ActionContinue,
				Reply:     e.render(in, replies.KindReminder),
				Reprompts: n,
			}
		}
		return Decision{
			NextState: StateListening,
			Action:    ActionContinue,
			Reply:     e.render(in, replies.KindReprompt),
			Reprompts: n,
		}
	}

	if in.State == StateGreeting {
		return Decision{
			NextState: StateListening,
			Action:    ActionContinue,
			Reply:     e.render(in, replies.KindReminder),
		}
	}

	switch in.Intent.Intent {
	case intent.PayNow:
		return Decision{
			NextState: StateConfirmingPayment,
			Action:    ActionContinue,
			Reply:     e.render(in, replies.KindAskAddress),
		}
	case intent.RequestCallback:
		at := e.now().UTC().Add(DefaultCallbackDelay)
		return Decision{
			NextState:  StateAwaitingContact,
			Action:     ActionScheduleCallback,
			Reply:      e.render(in, replies.KindCallbackAck),
			CallbackAt: &at,
		}
	case intent.Dispute:
		// Risk never overrides the customer's stated intent; a high tier
		// only marks the escalation urgent for the human queue.
		return Decision{
			NextState: StateEscalated,
			Action:    ActionEscalate,
			Reply:     e.render(in, replies.KindEscalateAck),
			Urgent:    in.Tier == risk.TierHigh,
		}
	case intent.InfoRequest:
		return Decision{
			NextState: StateListening,
			Action:    ActionContinue,
			Reply:     e.render(in, replies.KindInfo),
		}
	default:
		return Decision{
			NextState: StateListening,
			Action:    ActionContinue,
			Reply:     e.render(in, replies.KindReprompt),
			Reprompts: in.Reprompts + 1,
		}
	}
}

// decideConfirming waits for a delivery address. Anything without one counts
// against the re-prompt limit like an unclear turn.
func (e *Engine) decideConfirming(in Input) Decision {
	if addr := emailPattern.FindString(in.Utterance); addr != "" {
		return Decision{
			NextState:   StateClosed,
			Action:      ActionIssuePaymentLink,
			Reply:       e.render(in, replies.KindPaymentSent),
			Destination: addr,
		}
	}

	n := in.Reprompts + 1
	if n >= e.repromptLimit {
		return Decision{
			NextState: StateClosed,
			Action:    ActionEndSession,
			Reply:     e.render(in, replies.KindClosing),
			Reprompts: n,
		}
	}
	return Decision{
		NextState: StateConfirmingPayment,
		Action:    ActionContinue,
		Reply:     e.render(in, replies.KindAskAddress),
		Reprompts: n,
	}
}

// Apology is the generic recoverable-fault reply: the front-end always gets
// a reply string, even when something went wrong on our side.
func (e *Engine) Apology(language string) string {
	return e.catalog.Render(language, replies.KindApology, replies.Vars{})
}

func (e *Engine) render(in Input, kind replies.Kind) string {
	return e.catalog.Render(in.Language, kind, replies.Vars{
		Name:    in.CustomerName,
		Amount:  in.AmountDue,
		DueDate: in.DueDate,
	})
}
