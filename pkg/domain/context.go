package domain

import (
	"fmt"
	"math/rand/v2"
)

// AgentContext is the airline state the agents share within a thread
type AgentContext struct {
	PassengerName      string `json:"passenger_name,omitempty"`
	ConfirmationNumber string `json:"confirmation_number,omitempty"`
	SeatNumber         string `json:"seat_number,omitempty"`
	FlightNumber       string `json:"flight_number,omitempty"`
	AccountNumber      string `json:"account_number,omitempty"`
}

// NewAgentContext returns a context with a fresh 8-digit account number
func NewAgentContext() AgentContext {
	return AgentContext{
		AccountNumber: fmt.Sprintf("%08d", rand.IntN(100_000_000)),
	}
}

// Public returns the context as exposed to clients, with the account
// number masked down to its last four digits
func (c AgentContext) Public() map[string]any {
	out := map[string]any{
		"passenger_name":      nullable(c.PassengerName),
		"confirmation_number": nullable(c.ConfirmationNumber),
		"seat_number":         nullable(c.SeatNumber),
		"flight_number":       nullable(c.FlightNumber),
		"account_number":      nil,
	}
	if n := len(c.AccountNumber); n > 4 {
		out["account_number"] = "****" + c.AccountNumber[n-4:]
	} else if n > 0 {
		out["account_number"] = c.AccountNumber
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
