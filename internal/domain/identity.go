package domain

import "time"

type IdentityKind string

const (
	KindStudent IdentityKind = "student"
	KindParent  IdentityKind = "parent"
)

// Identity is a registered student or parent. For students the ID is the
// school roster user_id; push tokens and notifications are keyed by it.
type Identity struct {
	ID             string       `json:"id" dynamodbav:"identity_id"`
	CredentialHash string       `json:"-" dynamodbav:"credential_hash"`
	Kind           IdentityKind `json:"kind" dynamodbav:"kind"`
	Name           string       `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Phone          string       `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	CreatedAt      time.Time    `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt      time.Time    `json:"updatedAt" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	ID         string `json:"id" validate:"notblank"`
	Credential string `json:"credential" validate:"required,max=72"`
}

type RegisterParentRequest struct {
	ID         string `json:"id" validate:"notblank"`
	Credential string `json:"credential" validate:"required,max=72"`
	Name       string `json:"name" validate:"notblank"`
	Phone      string `json:"phone"`
}

type LoginRequest struct {
	ID         string `json:"id" validate:"notblank"`
	Credential string `json:"credential" validate:"required"`
}

type ChangeCredentialRequest struct {
	CurrentCredential string `json:"currentCredential" validate:"required"`
	NewCredential     string `json:"newCredential" validate:"required,max=72"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token    string
	Identity *Identity
}
