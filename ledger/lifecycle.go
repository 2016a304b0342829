/*
lifecycle.go - State machine for one moderator's day

PURPOSE:
  Each (moderator, day) pair is in exactly one state. Operations name the
  event they perform and Transition decides whether it is allowed, instead
  of every handler re-checking "does the row exist" and "is it done".

STATES:
  Uninitialized  no usage row for the day
  Open           bottles issued, day accepts moderator activity
  Done           moderator closed the day; only admin corrections apply
  Deleted        row removed; the day behaves as Uninitialized again

TRANSITIONS:
                 Issue  Refill Record Return Close  Reopen Correct Delete  Discard
  Uninitialized  Open   404    404    404    404    404    404     404     404
  Open           409    Open   Open   Open   Done   409    Open    Deleted Deleted
  Done           409    closed closed closed 409    Open   Done    Deleted closed
  Deleted        Open   404    404    404    404    404    404     404     404

  Delete is the admin removal; Discard is a moderator dropping their own day.

  404 = NotFoundError, 409 = ConflictError, closed = ErrDayClosed
*/
package ledger

import "fmt"

type DayState int

const (
	DayUninitialized DayState = iota
	DayOpen
	DayDone
	DayDeleted
)

func (s DayState) String() string {
	switch s {
	case DayUninitialized:
		return "uninitialized"
	case DayOpen:
		return "open"
	case DayDone:
		return "done"
	case DayDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("DayState(%d)", int(s))
	}
}

type DayEvent int

const (
	// EventIssue is the first bottle issuance of the day.
	EventIssue DayEvent = iota
	// EventRefill is a later addUpdateBottleUsage call.
	EventRefill
	// EventRecord covers moderator deliveries, misc and expenses.
	EventRecord
	// EventReturn hands bottles back to the warehouse.
	EventReturn
	// EventClose marks the day done.
	EventClose
	// EventReopen clears the done flag.
	EventReopen
	// EventCorrect is an admin edit that ignores the done flag.
	EventCorrect
	// EventDelete is an admin removal of the day.
	EventDelete
	// EventDiscard is a moderator removing their own day. Closed days
	// are read-only to it.
	EventDiscard
)

func (e DayEvent) String() string {
	switch e {
	case EventIssue:
		return "issue"
	case EventRefill:
		return "refill"
	case EventRecord:
		return "record"
	case EventReturn:
		return "return"
	case EventClose:
		return "close"
	case EventReopen:
		return "reopen"
	case EventCorrect:
		return "correct"
	case EventDelete:
		return "delete"
	case EventDiscard:
		return "discard"
	default:
		return fmt.Sprintf("DayEvent(%d)", int(e))
	}
}

// StateOf reports the state of a day from its usage row (nil when absent).
func StateOf(u *BottleUsage) DayState {
	switch {
	case u == nil:
		return DayUninitialized
	case u.Done:
		return DayDone
	default:
		return DayOpen
	}
}

// Transition returns the state after ev, or why ev is not allowed in from.
func Transition(from DayState, ev DayEvent) (DayState, error) {
	switch from {
	case DayUninitialized, DayDeleted:
		if ev == EventIssue {
			return DayOpen, nil
		}
		return from, &NotFoundError{Entity: "bottle usage for day"}

	case DayOpen:
		switch ev {
		case EventRefill, EventRecord, EventReturn, EventCorrect:
			return DayOpen, nil
		case EventClose:
			return DayDone, nil
		case EventDelete, EventDiscard:
			return DayDeleted, nil
		case EventIssue:
			return from, &ConflictError{Entity: "bottle usage", Reason: "bottles already issued for this day"}
		case EventReopen:
			return from, &ConflictError{Entity: "bottle usage", Reason: "day is not done"}
		}

	case DayDone:
		switch ev {
		case EventRefill, EventRecord, EventReturn, EventDiscard:
			return from, ErrDayClosed
		case EventCorrect:
			return DayDone, nil
		case EventReopen:
			return DayOpen, nil
		case EventDelete:
			return DayDeleted, nil
		case EventIssue:
			return from, &ConflictError{Entity: "bottle usage", Reason: "bottles already issued for this day"}
		case EventClose:
			return from, &ConflictError{Entity: "bottle usage", Reason: "day is already done"}
		}
	}
	return from, fmt.Errorf("%w: %s not allowed from %s", ErrInvalidInput, ev, from)
}
