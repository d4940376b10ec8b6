// Package session holds per-user dialog state for multi-step flows.
package session

import (
	"time"
)

// Flow identifies which multi-step dialog a user is inside.
type Flow string

const (
	FlowNone Flow = ""

	FlowBook   Flow = "book"
	FlowCancel Flow = "cancel"
	FlowChange Flow = "change"

	FlowAdminBook      Flow = "admin_book"
	FlowAdminCancel    Flow = "admin_cancel"
	FlowAdminChange    Flow = "admin_change"
	FlowAdminRuleNew   Flow = "admin_rule_new"
	FlowAdminRuleDrop  Flow = "admin_rule_drop"
	FlowAdminCancelAll Flow = "admin_cancel_all"
	FlowAdminGrant     Flow = "admin_grant"
	FlowAdminRevoke    Flow = "admin_revoke"
)

// IsAdmin reports whether the flow acts on behalf of other users and
// therefore requires operator rights on every step.
func (f Flow) IsAdmin() bool {
	switch f {
	case FlowAdminBook, FlowAdminCancel, FlowAdminChange,
		FlowAdminRuleNew, FlowAdminRuleDrop, FlowAdminCancelAll,
		FlowAdminGrant, FlowAdminRevoke:
		return true
	}
	return false
}

// Step identifies the position inside a flow.
type Step string

const (
	StepNone Step = ""

	StepPickDate    Step = "pick_date"
	StepPickSeat    Step = "pick_seat"
	StepPickBooking Step = "pick_booking"
	StepConfirm     Step = "confirm"

	StepAskUsername  Step = "ask_username"
	StepPickWeekdays Step = "pick_weekdays"
	StepPickRule     Step = "pick_rule"
)

// Session is the dialog state for a single user. It is serialized to
// Redis as JSON, so every field carries a tag.
type Session struct {
	Flow         Flow      `json:"flow"`
	Step         Step      `json:"step"`
	Date         string    `json:"date,omitempty"`
	SeatID       int64     `json:"seat_id,omitempty"`
	TargetUserID int64     `json:"target_user_id,omitempty"`
	OldBookingID int64     `json:"old_booking_id,omitempty"`
	RuleID       int64     `json:"rule_id,omitempty"`
	Weekdays     []int     `json:"weekdays,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Active reports whether the user is inside a flow.
func (s *Session) Active() bool {
	return s != nil && s.Flow != FlowNone
}

// FSM validates dialog step transitions within a flow.
type FSM struct {
	transitions map[Step][]Step
}

// NewFSM builds the transition table shared by all flows. A flow that
// skips a step simply never enters it.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[Step][]Step{
			StepNone:         {StepPickDate, StepPickBooking, StepPickRule, StepAskUsername, StepConfirm},
			StepAskUsername:  {StepPickDate, StepPickBooking, StepPickWeekdays, StepNone},
			StepPickDate:     {StepPickSeat, StepPickDate, StepNone},
			StepPickSeat:     {StepConfirm, StepPickDate, StepNone},
			StepPickBooking:  {StepConfirm, StepPickDate, StepNone},
			StepPickWeekdays: {StepPickSeat, StepPickWeekdays, StepConfirm, StepNone},
			StepPickRule:     {StepConfirm, StepNone},
			StepConfirm:      {StepPickSeat, StepPickDate, StepNone},
		},
	}
}

// CanTransition checks if a step change is allowed.
func (f *FSM) CanTransition(from, to Step) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Advance moves the session to the next step if allowed.
func (f *FSM) Advance(s *Session, to Step) bool {
	if !f.CanTransition(s.Step, to) {
		return false
	}
	s.Step = to
	s.UpdatedAt = time.Now()
	return true
}
