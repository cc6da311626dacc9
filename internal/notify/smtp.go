package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/reminder"
)

// SMTPConfig содержит параметры SMTP-сервера.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLS: mandatory, opportunistic, ssl или none.
	TLS string
}

// Mailer отправляет напоминания по SMTP.
type Mailer struct {
	client *mail.Client
	from   string
}

// NewMailer создаёт SMTP-клиент. Соединение устанавливается при каждой отправке.
func NewMailer(cfg SMTPConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is not configured")
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	switch strings.ToLower(cfg.TLS) {
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case "opportunistic":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	case "ssl":
		opts = append(opts, mail.WithSSLPort(false))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &Mailer{client: client, from: from}, nil
}

func buildMessage(from string, r reminder.Reminder) (*mail.Msg, error) {
	html, text, err := Render(r)
	if err != nil {
		return nil, err
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := m.To(r.To); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	m.Subject(Subject(r))
	m.SetMessageID()
	m.SetDate()
	m.SetBodyString(mail.TypeTextHTML, html)
	m.AddAlternativeString(mail.TypeTextPlain, text)
	return m, nil
}

// Send отправляет письмо-напоминание и возвращает его Message-ID.
func (m *Mailer) Send(ctx context.Context, r reminder.Reminder) (string, error) {
	msg, err := buildMessage(m.from, r)
	if err != nil {
		return "", err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrTransientSend, err)
	}
	return msg.GetMessageID(), nil
}
