// Package notification sends alert emails over SMTP or SendGrid.
package notification

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"

	DefaultSendGridHost = "https://api.sendgrid.com"
)

var ErrNotConfigured = errors.New("email not configured")

// Config selects an email provider. An empty Provider disables email.
type Config struct {
	Provider string   `yaml:"provider"`
	To       []string `yaml:"to"`
	From     string   `yaml:"from"`
	FromName string   `yaml:"from_name"`

	// SMTP
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Encryption string `yaml:"encryption"` // none, tls (STARTTLS) or ssl

	// SendGrid
	APIKey       string `yaml:"api_key"`
	SendGridHost string `yaml:"sendgrid_host"`
}

func (c Config) validate() error {
	if c.Provider == "" {
		return ErrNotConfigured
	}
	if len(c.To) == 0 || c.From == "" {
		return fmt.Errorf("%w: from and to are required", ErrNotConfigured)
	}
	switch c.Provider {
	case ProviderSMTP:
		if c.Host == "" || c.Port == 0 {
			return fmt.Errorf("%w: smtp host and port are required", ErrNotConfigured)
		}
	case ProviderSendGrid:
		if c.APIKey == "" {
			return fmt.Errorf("%w: sendgrid api key is required", ErrNotConfigured)
		}
	default:
		return fmt.Errorf("unknown email provider %q", c.Provider)
	}
	return nil
}

type Mailer struct {
	cfg Config
}

// NewMailer checks cfg and returns a Mailer for it.
func NewMailer(cfg Config) (*Mailer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.SendGridHost == "" {
		cfg.SendGridHost = DefaultSendGridHost
	}
	return &Mailer{cfg: cfg}, nil
}

// Send mails a plain-text message to every recipient.
func (m *Mailer) Send(ctx context.Context, subject, body string) error {
	if m.cfg.Provider == ProviderSendGrid {
		return m.sendSendGrid(ctx, subject, body)
	}
	return m.sendSMTP(subject, body)
}

func (m *Mailer) message(subject, body string) []byte {
	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}
	return []byte("From: " + from + "\r\n" +
		"To: " + strings.Join(m.cfg.To, ", ") + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n" +
		"\r\n" + body + "\r\n")
}

func (m *Mailer) sendSMTP(subject, body string) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	msg := m.message(subject, body)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	switch m.cfg.Encryption {
	case "ssl":
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
		if err != nil {
			return err
		}
		c, err := smtp.NewClient(conn, m.cfg.Host)
		if err != nil {
			conn.Close()
			return err
		}
		return m.deliver(c, auth, msg)
	case "tls":
		c, err := smtp.Dial(addr)
		if err != nil {
			return err
		}
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				c.Close()
				return err
			}
		}
		return m.deliver(c, auth, msg)
	}
	return smtp.SendMail(addr, auth, m.cfg.From, m.cfg.To, msg)
}

func (m *Mailer) deliver(c *smtp.Client, auth smtp.Auth, msg []byte) error {
	defer c.Close()
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(m.cfg.From); err != nil {
		return err
	}
	for _, to := range m.cfg.To {
		if err := c.Rcpt(to); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (m *Mailer) sendSendGrid(ctx context.Context, subject, body string) error {
	msg := mail.NewV3Mail()
	msg.SetFrom(mail.NewEmail(m.cfg.FromName, m.cfg.From))
	msg.Subject = subject
	p := mail.NewPersonalization()
	for _, to := range m.cfg.To {
		p.AddTos(mail.NewEmail("", to))
	}
	msg.AddPersonalizations(p)
	msg.AddContent(mail.NewContent("text/plain", body))

	req := sendgrid.GetRequest(m.cfg.APIKey, "/v3/mail/send", m.cfg.SendGridHost)
	req.Method = rest.Post
	req.Body = mail.GetRequestBody(msg)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}
