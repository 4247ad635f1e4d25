package domain

import "time"

// Event types
const (
	EventTypeAccountCreated     = "account.created"
	EventTypeTransferCompleted  = "transfer.completed"
	EventTypeClearanceSubmitted = "clearance.submitted"
	EventTypeClearanceResolved  = "clearance.resolved"
	EventTypeClearanceParked    = "clearance.parked"
)

// Aggregate types
const (
	AggregateTypeAccount   = "account"
	AggregateTypeTransfer  = "transfer"
	AggregateTypeClearance = "clearance"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// NewClearanceEvent builds the outbox payload describing r.
func NewClearanceEvent(r *ClearanceRecord, at time.Time) map[string]any {
	payload := map[string]any{
		"clearance_id":               r.ID,
		"status":                     string(r.Status),
		"destination_account_number": r.DestinationAccountNumber,
		"event_at":                   at.UTC().Format(time.RFC3339),
	}
	if r.SourceAccountNumber != "" {
		payload["source_account_number"] = r.SourceAccountNumber
	}
	if r.Amount != nil {
		payload["amount"] = r.Amount.String()
	}
	if r.LastError != "" {
		payload["last_error"] = r.LastError
	}
	return payload
}
