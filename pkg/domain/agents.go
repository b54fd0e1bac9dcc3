package domain

import "strings"

// Agent names
const (
	TriageAgent              = "Triage Agent"
	FAQAgent                 = "FAQ Agent"
	FlightInformationAgent   = "Flight Information Agent"
	SeatSpecialServicesAgent = "Seat and Special Services Agent"
	BookingCancellationAgent = "Booking and Cancellation Agent"
	RefundsCompensationAgent = "Refunds and Compensation Agent"
)

// Agent describes one specialist in the airline triage system
type Agent struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Instructions string   `json:"-"`
	Keywords     []string `json:"-"`
	Handoffs     []string `json:"handoffs"`
}

var specialists = []string{
	FAQAgent,
	FlightInformationAgent,
	SeatSpecialServicesAgent,
	BookingCancellationAgent,
	RefundsCompensationAgent,
}

// Agents is the catalogue, triage first
var Agents = []Agent{
	{
		Name:        TriageAgent,
		Description: "Routes the customer to the right specialist.",
		Instructions: "You are a helpful airline triage agent. Greet the customer, " +
			"work out what they need and keep answers short.",
		Handoffs: specialists,
	},
	{
		Name:        FAQAgent,
		Description: "Answers common questions about baggage, wifi and the aircraft.",
		Instructions: "You answer frequently asked airline questions about baggage " +
			"allowance, wifi, seating layout and onboard services.",
		Keywords: []string{"baggage", "bag", "luggage", "wifi", "wi-fi", "faq", "allowance"},
		Handoffs: []string{TriageAgent},
	},
	{
		Name:        FlightInformationAgent,
		Description: "Provides flight status, delays and gate information.",
		Instructions: "You provide flight status, delay and gate information for the " +
			"customer's flight number.",
		Keywords: []string{"status", "delay", "delayed", "gate", "departure", "arrival", "on time"},
		Handoffs: []string{TriageAgent},
	},
	{
		Name:        SeatSpecialServicesAgent,
		Description: "Changes seats and arranges special services.",
		Instructions: "You help customers change seats and request special services " +
			"such as wheelchairs or special meals. Confirm the new seat number.",
		Keywords: []string{"seat", "wheelchair", "meal", "assistance", "special service"},
		Handoffs: []string{TriageAgent},
	},
	{
		Name:        BookingCancellationAgent,
		Description: "Books, rebooks and cancels flights.",
		Instructions: "You handle bookings, rebookings and cancellations. Always ask " +
			"for the confirmation number before changing a booking.",
		Keywords: []string{"cancel", "cancellation", "rebook", "booking", "book", "reservation"},
		Handoffs: []string{TriageAgent},
	},
	{
		Name:        RefundsCompensationAgent,
		Description: "Handles refunds and compensation claims.",
		Instructions: "You handle refund and compensation requests for disrupted " +
			"journeys. Explain the entitlement before opening a case.",
		Keywords: []string{"refund", "compensation", "reimburse", "voucher", "claim"},
		Handoffs: []string{TriageAgent},
	},
}

// LookupAgent returns the agent with the given name
func LookupAgent(name string) (Agent, bool) {
	for _, a := range Agents {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

// Route returns the specialist whose keywords appear in text, or "" when
// none match. Earlier catalogue entries win ties.
func Route(text string) string {
	lower := strings.ToLower(text)
	for _, a := range Agents {
		for _, kw := range a.Keywords {
			if strings.Contains(lower, kw) {
				return a.Name
			}
		}
	}
	return ""
}
