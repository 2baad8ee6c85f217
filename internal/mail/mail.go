// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

// Package mail delivers verification and password reset emails.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/samber/oops"
)

// SMTPNotifier sends emails through a plain SMTP relay.
type SMTPNotifier struct {
	addr    string
	from    string
	baseURL string
	logger  *slog.Logger

	// send is swappable for tests.
	send func(addr, from string, to []string, msg []byte) error
}

// NewSMTPNotifier creates a notifier that delivers through the SMTP
// relay at addr ("host:port"). Links in emails are built on baseURL.
func NewSMTPNotifier(addr, from, baseURL string, logger *slog.Logger) (*SMTPNotifier, error) {
	if addr == "" {
		return nil, oops.Code("MAIL_MISCONFIGURED").Errorf("smtp address is required")
	}
	if from == "" {
		return nil, oops.Code("MAIL_MISCONFIGURED").Errorf("from address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPNotifier{
		addr:    addr,
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}, nil
}

// SendVerificationEmail mails an email verification link.
func (n *SMTPNotifier) SendVerificationEmail(ctx context.Context, email, token string) error {
	link := n.baseURL + "/v1/auth/verify-email?token=" + url.QueryEscape(token)
	body := "Welcome to Astralx!\r\n\r\n" +
		"Please verify your email address by visiting the link below:\r\n\r\n" +
		link + "\r\n\r\n" +
		"This link expires in 24 hours.\r\n"
	return n.deliver(ctx, email, "Verify your email address", body)
}

// SendPasswordResetEmail mails a password reset link.
func (n *SMTPNotifier) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	link := n.baseURL + "/reset-password?token=" + url.QueryEscape(token)
	body := "A password reset was requested for your account.\r\n\r\n" +
		"Visit the link below to choose a new password:\r\n\r\n" +
		link + "\r\n\r\n" +
		"This link expires in 1 hour. If you did not request a reset, ignore this email.\r\n"
	return n.deliver(ctx, email, "Reset your password", body)
}

func (n *SMTPNotifier) deliver(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("to", to).Wrap(err)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		n.from, to, subject, body)

	if err := n.send(n.addr, n.from, []string{to}, []byte(msg)); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("to", to).
			With("subject", subject).
			Wrap(err)
	}

	n.logger.DebugContext(ctx, "email sent", "to", to, "subject", subject)
	return nil
}

// LogNotifier writes email contents to the log instead of sending them.
// Used in development where no SMTP relay is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs instead of sending.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendVerificationEmail logs the verification token.
func (n *LogNotifier) SendVerificationEmail(ctx context.Context, email, token string) error {
	n.logger.InfoContext(ctx, "verification email (not sent, no smtp relay configured)",
		"to", email, "token", token)
	return nil
}

// SendPasswordResetEmail logs the reset token.
func (n *LogNotifier) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	n.logger.InfoContext(ctx, "password reset email (not sent, no smtp relay configured)",
		"to", email, "token", token)
	return nil
}
