// Package contact stores visitor contact-form messages and relays them to
// the site operator by email.
package contact

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidMessage = errors.New("invalid contact message")

const (
	maxNameLen    = 200
	maxSubjectLen = 300
	maxMessageLen = 5000
)

// Message is a stored contact-form submission.
type Message struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Subject   string    `bson:"subject,omitempty" json:"subject,omitempty"`
	Message   string    `bson:"message" json:"message"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Form is the visitor input.
type Form struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message" binding:"required"`
}

// NewMessage validates f and builds a message stamped with now.
func NewMessage(f Form, now time.Time) (Message, error) {
	m := Message{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(f.Name),
		Email:     strings.TrimSpace(f.Email),
		Phone:     strings.TrimSpace(f.Phone),
		Subject:   strings.TrimSpace(f.Subject),
		Message:   strings.TrimSpace(f.Message),
		CreatedAt: now.UTC(),
	}
	switch {
	case m.Name == "":
		return Message{}, fmt.Errorf("%w: name is required", ErrInvalidMessage)
	case m.Email == "":
		return Message{}, fmt.Errorf("%w: email is required", ErrInvalidMessage)
	case m.Message == "":
		return Message{}, fmt.Errorf("%w: message is required", ErrInvalidMessage)
	case len(m.Name) > maxNameLen, len(m.Subject) > maxSubjectLen, len(m.Message) > maxMessageLen:
		return Message{}, fmt.Errorf("%w: field too long", ErrInvalidMessage)
	}
	addr, err := mail.ParseAddress(m.Email)
	if err != nil || addr.Name != "" {
		return Message{}, fmt.Errorf("%w: email is not a valid address", ErrInvalidMessage)
	}
	m.Email = addr.Address
	return m, nil
}
