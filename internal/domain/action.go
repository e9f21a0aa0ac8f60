package domain

import (
	"fmt"
	"strings"
)

// Action represents the type of trading action to be performed.
type Action int

const (
	ActionHold Action = iota
	ActionBuy
	ActionSell
)

// action string constants to avoid magic strings
const (
	actionStringHold = "HOLD"
	actionStringBuy  = "BUY"
	actionStringSell = "SELL"
)

// ParseAction converts a recommendation action to the typed Action.
// Matching is case-insensitive.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case actionStringHold:
		return ActionHold, nil
	case actionStringBuy:
		return ActionBuy, nil
	case actionStringSell:
		return ActionSell, nil
	}
	return ActionHold, fmt.Errorf("invalid action: %q", s)
}

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionHold:
		return actionStringHold
	case ActionBuy:
		return actionStringBuy
	case ActionSell:
		return actionStringSell
	default:
		return "unknown"
	}
}

// Side returns the exchange order side for trading actions.
func (a Action) Side() Side {
	if a == ActionSell {
		return SideSell
	}
	return SideBuy
}
