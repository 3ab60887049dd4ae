package models

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// InvitationCode lets the holder of Email register an account. Codes are
// single use and owned by the user who issued them.
type InvitationCode struct {
	Code      string    `bson:"_id" json:"code"`
	Email     string    `bson:"email" json:"email"`
	CreatedBy string    `bson:"created_by" json:"created_by"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// InvitationRequest is the body of invitation create and update calls.
type InvitationRequest struct {
	Email string `json:"email"`
}

// NormalizedEmail validates the recipient and returns it lower cased.
func (r InvitationRequest) NormalizedEmail() (string, error) {
	email := strings.ToLower(strings.TrimSpace(r.Email))
	if email == "" {
		return "", errors.New("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", errors.New("invalid email format")
	}
	return email, nil
}
