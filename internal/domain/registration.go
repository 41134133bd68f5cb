package domain

import "time"

// Child links a parent registration to a student.
type Child struct {
	ChildID   string `json:"studentId" dynamodbav:"child_id"`
	ChildName string `json:"studentName,omitempty" dynamodbav:"child_name,omitempty"`
}

// Registration is the per-recipient delivery record. DeliveryAddress is empty
// until a push token is saved; a given address belongs to at most one recipient.
type Registration struct {
	RecipientID     string    `json:"id" dynamodbav:"recipient_id"`
	DeliveryAddress string    `json:"address,omitempty" dynamodbav:"delivery_address,omitempty"`
	Children        []Child   `json:"students,omitempty" dynamodbav:"children,omitempty"`
	ChildIDs        []string  `json:"-" dynamodbav:"child_ids,stringset,omitempty"`
	CreatedAt       time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// Child returns the association for childID, if any.
func (r *Registration) Child(childID string) (Child, bool) {
	for _, c := range r.Children {
		if c.ChildID == childID {
			return c, true
		}
	}
	return Child{}, false
}

type SavePushTokenRequest struct {
	ID      string `json:"id" validate:"notblank"`
	Address string `json:"address" validate:"notblank"`
}

type AddStudentRequest struct {
	StudentID   string `json:"studentId" validate:"notblank"`
	StudentName string `json:"studentName"`
}
