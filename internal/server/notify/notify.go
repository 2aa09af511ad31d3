// Package notify sends order confirmation emails.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/domain/order"
)

// DefaultSender is the From address of confirmation emails.
const DefaultSender = "munchifyorg@gmail.com"

const confirmationSubject = "Your Order Confirmation"

var confirmationBody = template.Must(template.New("confirmation").Parse(`Hi {{.FirstName}},

Thanks for placing your order with Munchify!

Total: ${{.Total}}

You'll pay on delivery. We'll reach out if there's anything else needed.

Feel free to contact us: +254-754-354-649

Cheers,
The Munchify Team
`))

// Message is a plain-text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer delivers a Message.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// Confirmations implements order.Notifier by emailing the order's contact.
type Confirmations struct {
	mailer Mailer
	sender string
}

var _ order.Notifier = (*Confirmations)(nil)

// NewConfirmations creates Confirmations sent from sender through mailer.
func NewConfirmations(mailer Mailer, sender string) *Confirmations {
	if sender == "" {
		sender = DefaultSender
	}
	return &Confirmations{mailer: mailer, sender: sender}
}

// OrderPlaced emails the confirmation for o.
func (c *Confirmations) OrderPlaced(ctx context.Context, o *order.Order) error {
	msg, err := c.Compose(o)
	if err != nil {
		return err
	}
	return c.mailer.Send(ctx, msg)
}

// Compose renders the confirmation email for o.
func (c *Confirmations) Compose(o *order.Order) (Message, error) {
	if strings.TrimSpace(o.Contact.Email) == "" {
		return Message{}, errors.New("order has no contact email")
	}
	var body bytes.Buffer
	if err := confirmationBody.Execute(&body, struct {
		FirstName string
		Total     string
	}{
		FirstName: o.Contact.FirstName,
		Total:     o.Total.StringFixed(2),
	}); err != nil {
		return Message{}, errors.Wrap(err, "render confirmation")
	}
	return Message{
		From:    c.sender,
		To:      []string{o.Contact.Email},
		Subject: confirmationSubject,
		Body:    body.String(),
	}, nil
}

// LogMailer writes messages to the context logger instead of sending them.
type LogMailer struct{}

// Send logs m.
func (LogMailer) Send(ctx context.Context, m Message) error {
	zctx.From(ctx).Info("Email",
		zap.String("from", m.From),
		zap.Strings("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("body_bytes", len(m.Body)),
	)
	return nil
}

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPMailer sends mail through an SMTP relay with STARTTLS and PLAIN auth.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// Send delivers m. smtp.SendMail has no context support, so the call runs
// in a goroutine and Send returns early when ctx or the timeout fires.
func (s *SMTPMailer) Send(ctx context.Context, m Message) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.send(addr, auth, m.From, m.To, encode(m)) }()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrapf(err, "send mail via %s", addr)
		}
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "send mail")
	}
}

func encode(m Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return b.Bytes()
}
