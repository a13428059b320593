package notify

import (
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/config"
)

// SendFunc delivers a built message.
type SendFunc func(msg *mail.Msg) error

// Mailer sends the daily error-URL report.
type Mailer struct {
	From string
	To   []string
	send SendFunc
	log  *zap.Logger
}

// NewMailer sends over implicit TLS (SMTPS, port 465 by default).
func NewMailer(cfg config.MailConfig, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Mailer{From: cfg.From, To: cfg.To, log: log}
	if m.From == "" {
		m.From = cfg.User
	}
	m.send = smtpsSender(cfg)
	return m
}

// NewMailerWith is NewMailer with a custom transport.
func NewMailerWith(from string, to []string, send SendFunc, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{From: from, To: to, send: send, log: log}
}

// ErrorReport builds the message listing urls that failed on dateString.
func ErrorReport(from string, to []string, dateString string, urls []string) (*mail.Msg, error) {
	msg := mail.NewMsg(mail.WithEncoding(mail.NoEncoding))
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("notify: from %q: %w", from, err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("notify: to %v: %w", to, err)
	}
	msg.Subject("Insider Trades Errors for " + dateString)
	msg.SetDate()
	msg.SetMessageID()

	var b strings.Builder
	for _, u := range urls {
		b.WriteString(u)
		b.WriteString("\n\n")
	}
	msg.SetBodyString(mail.TypeTextPlain, b.String())
	return msg, nil
}

// SendErrorURLs mails the report and reports whether it went out. Failures
// are logged, never returned.
func (m *Mailer) SendErrorURLs(dateString string, urls []string) bool {
	if len(m.To) == 0 {
		m.log.Warn("no mail recipients configured; error report not sent",
			zap.String("date", dateString), zap.Int("urls", len(urls)))
		return false
	}
	msg, err := ErrorReport(m.From, m.To, dateString, urls)
	if err != nil {
		m.log.Error("failed to build error report", zap.Error(err))
		return false
	}
	if err := m.send(msg); err != nil {
		m.log.Error("failed to send email for errors", zap.Error(err))
		return false
	}
	m.log.Info("error report sent", zap.String("date", dateString), zap.Int("urls", len(urls)))
	return true
}

func smtpsSender(cfg config.MailConfig) SendFunc {
	opts := []mail.Option{mail.WithPort(cfg.Port), mail.WithSSL()}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password))
	}
	return func(msg *mail.Msg) error {
		c, err := mail.NewClient(cfg.Host, opts...)
		if err != nil {
			return fmt.Errorf("smtp client %s: %w", cfg.Host, err)
		}
		return c.DialAndSend(msg)
	}
}
