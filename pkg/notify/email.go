/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"github.com/carverauto/pulse/pkg/models"
)

var errSMTPNotConfigured = errors.New("smtp host is not configured")

// EmailConfig is the outbound SMTP relay.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c EmailConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c EmailConfig) auth() smtp.Auth {
	if c.Username == "" {
		return nil
	}

	return smtp.PlainAuth("", c.Username, c.Password, c.Host)
}

// Email sends a plain text message to config.addresses.
type Email struct {
	cfg  EmailConfig
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewEmail(cfg EmailConfig) *Email {
	return &Email{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (m *Email) Deliver(_ context.Context, d *models.NotificationDelivery) error {
	to := d.Channel.ConfigStrings("addresses")
	if len(to) == 0 {
		return fmt.Errorf("%w: email addresses", ErrMissingConfig)
	}

	if m.cfg.Host == "" {
		return errSMTPNotConfigured
	}

	msg := &email.Email{
		To:      to,
		From:    orDefault(m.cfg.From, "pulse@localhost"),
		Subject: title(d),
		Text:    []byte(emailBody(d)),
	}

	if err := m.send(msg, m.cfg.addr(), m.cfg.auth()); err != nil {
		return fmt.Errorf("cannot send email: %w", err)
	}

	return nil
}

func emailBody(d *models.NotificationDelivery) string {
	a := d.Alert

	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", a.Message)
	fmt.Fprintf(&b, "Project: %s\n", d.ProjectName)
	fmt.Fprintf(&b, "Rule: %s\n", d.RuleName)
	fmt.Fprintf(&b, "Severity: %s\n", a.Severity)
	fmt.Fprintf(&b, "Environment: %s\n", orDefault(a.Environment, "N/A"))

	if a.Endpoint != "" {
		fmt.Fprintf(&b, "Endpoint: %s\n", a.Endpoint)
	}

	fmt.Fprintf(&b, "Triggered at: %s\n", a.TriggeredAt.UTC().Format("2006-01-02 15:04:05 MST"))

	return b.String()
}
