package domain

import "time"

// Notification is an append-only ledger record. Sent means the delivery was
// attempted, not that the provider confirmed it.
type Notification struct {
	NotificationID string    `json:"id" dynamodbav:"notification_id"`
	RecipientID    string    `json:"recipientId" dynamodbav:"recipient_id"`
	Title          string    `json:"title" dynamodbav:"title"`
	Body           string    `json:"body" dynamodbav:"body"`
	Data           Payload   `json:"data,omitempty" dynamodbav:"data,omitempty"`
	Sent           bool      `json:"sent" dynamodbav:"sent"`
	CreatedAt      time.Time `json:"createdAt" dynamodbav:"created_at"`
}
