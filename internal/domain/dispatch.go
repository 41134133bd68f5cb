package domain

type SendRequest struct {
	IDs   []string `json:"ids" validate:"required,min=1"`
	Title string   `json:"title" validate:"notblank"`
	Body  string   `json:"body" validate:"notblank"`
	Data  Payload  `json:"data"`
}

type BroadcastRequest struct {
	Title string  `json:"title" validate:"notblank"`
	Body  string  `json:"body" validate:"notblank"`
	Data  Payload `json:"data"`
}

// GuardianRequest notifies every parent linked to a student.
type GuardianRequest struct {
	StudentID   string  `json:"studentId" validate:"notblank"`
	StudentName string  `json:"studentName"`
	Title       string  `json:"title" validate:"notblank"`
	Body        string  `json:"body" validate:"notblank"`
	Data        Payload `json:"data"`
}

// PushMessage is a single delivery handed to a push provider.
type PushMessage struct {
	Address string
	Title   string
	Body    string
	Data    map[string]string
}

type OutcomeStatus string

const (
	OutcomeSent    OutcomeStatus = "sent"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// DeliveryOutcome is the per-recipient result of a dispatch. Address is set
// whenever a delivery address was resolved, whether or not the send succeeded.
type DeliveryOutcome struct {
	RecipientID string        `json:"recipientId"`
	Status      OutcomeStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	Address     string        `json:"-"`
}
