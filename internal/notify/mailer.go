// Package notify sends transactional email about engagement to the account
// that should hear of it.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/gate"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/store"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	AppName  string
}

// SendFunc delivers a fully rendered message.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer implements engagement.Notifier over SMTP.
type Mailer struct {
	config Config
	store  store.DocumentStore
	auth   smtp.Auth
	send   SendFunc
}

func NewMailer(cfg Config, s store.DocumentStore) *Mailer {
	if cfg.AppName == "" {
		cfg.AppName = "Marketplace"
	}
	return &Mailer{
		config: cfg,
		store:  s,
		auth:   smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
		send:   smtp.SendMail,
	}
}

// SetSender replaces the SMTP transport (tests).
func (m *Mailer) SetSender(fn SendFunc) { m.send = fn }

// IsConfigured reports whether host, port and sender are set.
func (m *Mailer) IsConfigured() bool {
	return m.config.Host != "" && m.config.Port != "" && m.config.From != ""
}

var errNotConfigured = errors.New("email not configured")

type message struct {
	AppName   string
	Recipient string
	Actor     string
	Kind      string
	Subject   string
	Title     string
}

// Engaged mails the owner of the engaged listing (entries) or the requested
// account (requests). Other kinds are ignored.
func (m *Mailer) Engaged(ctx context.Context, e models.Engagement) error {
	if !m.IsConfigured() {
		return errNotConfigured
	}
	msg := message{AppName: m.config.AppName, Actor: e.UID, Kind: string(e.Kind)}
	var recipient *models.Account
	switch e.Kind {
	case models.EngageEntry:
		doc, err := m.store.Get(ctx, e.Index, e.ObjectID)
		if err != nil {
			return fmt.Errorf("load listing %s: %w", e.ObjectID, err)
		}
		var l models.Listing
		if err := store.Decode(doc, &l); err != nil {
			return err
		}
		msg.Title = l.Title
		if msg.Title == "" {
			msg.Title = l.Position
		}
		if recipient, err = gate.LoadAccount(ctx, m.store, models.KindOrganization, l.UID); err != nil {
			return err
		}
		msg.Subject = fmt.Sprintf("[%s] New entry for %s", m.config.AppName, msg.Title)
	case models.EngageRequest:
		var err error
		if recipient, err = gate.LoadAccount(ctx, m.store, models.AccountKind(e.Index), e.ObjectID); err != nil {
			return err
		}
		msg.Subject = fmt.Sprintf("[%s] You have a new request", m.config.AppName)
	default:
		return nil
	}
	if recipient.Profile.Email == "" {
		return apperr.NotFound(apperr.OriginMail, "recipient has no email address")
	}
	msg.Recipient = recipient.Profile.Name

	var body bytes.Buffer
	if err := engagementTemplate.Execute(&body, msg); err != nil {
		return fmt.Errorf("render engagement template: %w", err)
	}
	return m.SendHTML([]string{recipient.Profile.Email}, msg.Subject, body.String())
}

// SendHTML sends a multipart message with a plain text fallback.
func (m *Mailer) SendHTML(to []string, subject, htmlBody string) error {
	if !m.IsConfigured() {
		return errNotConfigured
	}
	from := m.config.From
	if m.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.config.FromName, m.config.From)
	}
	boundary := "boundary-marketplace"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)
	fmt.Fprintf(&msg, "--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n", boundary)
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n\r\n")
	fmt.Fprintf(&msg, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n", boundary)
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	if err := m.send(m.config.Host+":"+m.config.Port, m.auth, m.config.From, to, msg.Bytes()); err != nil {
		return apperr.DataLoss(apperr.OriginMail, "failed to send email", err)
	}
	return nil
}

var engagementTemplate = template.Must(template.New("engagement").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
  <p>Hello {{.Recipient}},</p>
  {{if eq .Kind "entry"}}
  <p>A member has sent an entry for <strong>{{.Title}}</strong>.</p>
  {{else}}
  <p>A member has sent you a request. Sign in to accept or decline it.</p>
  {{end}}
  <p style="color: #999; font-size: 12px;">{{.AppName}}</p>
</body>
</html>`))
