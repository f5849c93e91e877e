package event

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoutingKeyLoanProcessed        = "loan.processed"
	RoutingKeyLoanExtended         = "loan.extended"
	RoutingKeyLoanFiguresCorrected = "loan.figures.corrected"
)

// Envelope carries the fields shared by every loan event.
type Envelope struct {
	EventID    string    `json:"eventId"`
	LoanID     int64     `json:"loanId"`
	BorrowerID int64     `json:"borrowerId"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewEnvelope(loanID, borrowerID int64, at time.Time) Envelope {
	return Envelope{
		EventID:    uuid.NewString(),
		LoanID:     loanID,
		BorrowerID: borrowerID,
		Timestamp:  at,
	}
}

type LoanProcessedEvent struct {
	Envelope
	DisbursalAmount string      `json:"disbursalAmount"`
	TotalRepayable  string      `json:"totalRepayable"`
	DueDates        []time.Time `json:"dueDates"`
}

type LoanExtendedEvent struct {
	Envelope
	ExtensionDays  int         `json:"extensionDays"`
	ExtensionCount int         `json:"extensionCount"`
	DueDates       []time.Time `json:"dueDates"`
}

// LoanFiguresCorrectedEvent is emitted when a refresh finds stored derived figures
// that disagree with a fresh calculation and writes the corrected values back.
type LoanFiguresCorrectedEvent struct {
	Envelope
	PreviousTotal   string `json:"previousTotal"`
	CorrectedTotal  string `json:"correctedTotal"`
	ScheduleWritten bool   `json:"scheduleWritten"`
}
