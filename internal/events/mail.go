package events

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/Skotchmaster/auth_service/pkg/logging"
)

type MailKind string

const (
	MailVerification  MailKind = "email_verification"
	MailPasswordReset MailKind = "password_reset"
)

// Mail is a request for the mail worker; delivery itself happens elsewhere.
type Mail struct {
	Kind      MailKind  `json:"kind"`
	To        string    `json:"to"`
	FirstName string    `json:"firstName,omitempty"`
	Link      string    `json:"link"`
	At        time.Time `json:"at"`
}

type Mailer interface {
	SendVerification(ctx context.Context, to, firstName, token string) error
	SendPasswordReset(ctx context.Context, to, firstName, token string) error
}

type links struct{ base string }

func (l links) build(path, token string) string {
	return strings.TrimRight(l.base, "/") + path + url.PathEscape(token)
}

func (l links) verification(token string) string { return l.build("/verify-email/", token) }
func (l links) reset(token string) string        { return l.build("/reset-password/", token) }

// KafkaMailer hands mail requests to the mail worker through a topic.
type KafkaMailer struct {
	writer Writer
	links  links
}

func NewKafkaMailer(brokers []string, topic, frontendURL string) *KafkaMailer {
	return NewKafkaMailerWithWriter(NewWriter(brokers, topic), frontendURL)
}

func NewKafkaMailerWithWriter(w Writer, frontendURL string) *KafkaMailer {
	return &KafkaMailer{writer: w, links: links{base: frontendURL}}
}

func (m *KafkaMailer) SendVerification(ctx context.Context, to, firstName, token string) error {
	return m.send(ctx, Mail{Kind: MailVerification, To: to, FirstName: firstName, Link: m.links.verification(token)})
}

func (m *KafkaMailer) SendPasswordReset(ctx context.Context, to, firstName, token string) error {
	return m.send(ctx, Mail{Kind: MailPasswordReset, To: to, FirstName: firstName, Link: m.links.reset(token)})
}

func (m *KafkaMailer) send(ctx context.Context, mail Mail) error {
	mail.At = time.Now().UTC()
	return writeJSON(ctx, m.writer, mail.To, mail)
}

func (m *KafkaMailer) Close() error { return m.writer.Close() }

// LogMailer is used when no broker is configured. Links are only logged
// outside production.
type LogMailer struct {
	links   links
	showURL bool
}

func NewLogMailer(frontendURL string, showURL bool) *LogMailer {
	return &LogMailer{links: links{base: frontendURL}, showURL: showURL}
}

func (m *LogMailer) SendVerification(ctx context.Context, to, _, token string) error {
	m.log(ctx, MailVerification, to, m.links.verification(token))
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, _, token string) error {
	m.log(ctx, MailPasswordReset, to, m.links.reset(token))
	return nil
}

func (m *LogMailer) log(ctx context.Context, kind MailKind, to, link string) {
	l := logging.FromContext(ctx).With("svc", "mailer", "kind", string(kind), "to", to)
	if m.showURL {
		l = l.With("link", link)
	}
	l.Info("mail_not_sent_no_broker")
}
