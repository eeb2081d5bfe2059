package mail

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender renders a template and delivers it over SMTP.
type SMTPSender struct {
	cfg      Config
	auth     smtp.Auth
	renderer *Renderer
	send     sendFunc
	now      func() time.Time
	log      zerolog.Logger
}

func NewSMTPSender(cfg Config, renderer *Renderer, log zerolog.Logger) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		cfg:      cfg,
		auth:     auth,
		renderer: renderer,
		send:     smtp.SendMail,
		now:      time.Now,
		log:      log,
	}
}

// Send implements ports.MailSender. smtp.SendMail has no context support, so
// ctx is only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg domain.MailMessage) error {
	body, err := s.renderer.Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryUnavailable, err)
	}

	from, err := mail.ParseAddress(s.cfg.From)
	if err != nil {
		return fmt.Errorf("%w: sender address: %v", domain.ErrDeliveryUnavailable, err)
	}

	raw := buildMessage(s.cfg.From, msg.To, msg.Subject, body, s.now())
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, s.auth, from.Address, []string{msg.To}, raw); err != nil {
		s.log.Error().Err(err).Str("to", msg.To).Str("template", msg.Template).Msg("smtp delivery failed")
		return fmt.Errorf("%w: %v", domain.ErrDeliveryUnavailable, err)
	}
	return nil
}

func buildMessage(from, to, subject, html string, date time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}

// LogSender renders messages and writes them to the log instead of sending
// them. It is used when no SMTP host is configured.
type LogSender struct {
	renderer *Renderer
	log      zerolog.Logger
}

func NewLogSender(renderer *Renderer, log zerolog.Logger) *LogSender {
	return &LogSender{renderer: renderer, log: log}
}

func (s *LogSender) Send(_ context.Context, msg domain.MailMessage) error {
	body, err := s.renderer.Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}
	s.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("template", msg.Template).
		Int("bytes", len(body)).
		Msg("mail delivery skipped: smtp not configured")
	return nil
}
