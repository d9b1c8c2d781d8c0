// Package domain contains core domain types for the chat relay.
package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultChatID is the single implicit channel every message belongs to.
	DefaultChatID int64 = 1

	// SyntheticSender is the sender identity used for all automated replies.
	SyntheticSender = "other"

	// MaxSenderLength is the longest sender label the store accepts.
	MaxSenderLength = 50
)

var (
	ErrEmptyContent  = errors.New("message content is empty")
	ErrEmptySender   = errors.New("message sender is empty")
	ErrSenderTooLong = errors.New("message sender is too long")
)

// Message is a persisted chat message. It is never updated after creation.
type Message struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	ChatID    int64     `json:"chat_id"`
}

// IsSynthetic returns true if the message was produced by the responder.
func (m *Message) IsSynthetic() bool {
	return m.Sender == SyntheticSender
}

// ValidateDraft checks a client-supplied message before it is persisted.
func ValidateDraft(content, sender string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if strings.TrimSpace(sender) == "" {
		return ErrEmptySender
	}
	if utf8.RuneCountInString(sender) > MaxSenderLength {
		return ErrSenderTooLong
	}
	return nil
}
