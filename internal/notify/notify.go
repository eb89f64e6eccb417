// Package notify delivers alert messages by SMS and email
package notify

import (
	"context"
	"errors"
)

// ErrDisabled is returned by senders that have no credentials configured
var ErrDisabled = errors.New("channel not configured")

// SMSSender sends a text message to one phone number
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// EmailSender sends a plain text email to one address
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Disabled is a sender for unconfigured channels
type Disabled struct{}

func (Disabled) SendSMS(context.Context, string, string) error           { return ErrDisabled }
func (Disabled) SendEmail(context.Context, string, string, string) error { return ErrDisabled }
