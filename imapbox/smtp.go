package imapbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog/log"
)

// SMTPConfig holds SMTP submission settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool // implicit TLS; otherwise STARTTLS unless Insecure
	Insecure bool // plain connection, for local relays
}

// SMTPSender submits replies to an SMTP server, one connection per message.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Name() string { return "smtp" }

func (s *SMTPSender) dial() (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	tlsCfg := &tls.Config{ServerName: s.cfg.Host}
	switch {
	case s.cfg.SSL:
		return smtp.DialTLS(addr, tlsCfg)
	case s.cfg.Insecure:
		return smtp.Dial(addr)
	default:
		return smtp.DialStartTLS(addr, tlsCfg)
	}
}

// Send delivers raw. SMTP returns no message id, so the result is empty.
func (s *SMTPSender) Send(ctx context.Context, from string, to []string, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client, err := s.dial()
	if err != nil {
		return "", fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if s.cfg.Password != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := client.Auth(auth); err != nil {
			return "", fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err := client.SendMail(from, to, bytes.NewReader(raw)); err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	if err := client.Quit(); err != nil {
		log.Debug().Err(err).Msg("SMTP: quit failed")
	}
	log.Info().Strs("to", to).Msg("SMTP: message sent")
	return "", nil
}
