// Package notify delivers one-time codes to users.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Message is a single outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// OTPMessage builds the password reset notification carrying code.
func OTPMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Reset Password",
		Body:    fmt.Sprintf("Dear user, your otp to reset password is %s. It expires in %s.", code, ttl.Round(time.Minute)),
	}
}

// Log writes messages to the logger instead of delivering them.
// Used for SMS (not integrated) and for email when SMTP is not configured.
type Log struct {
	log     *zap.Logger
	channel string
}

// NewLog constructs a log sender labelled with channel.
func NewLog(log *zap.Logger, channel string) *Log {
	return &Log{log: log, channel: channel}
}

// Send logs the message.
func (l *Log) Send(_ context.Context, m Message) error {
	l.log.Info("notification",
		zap.String("channel", l.channel),
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("body", m.Body),
	)
	return nil
}
