package email

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"kanzlei/insolvenzpanel/internal/config"
)

// Sender defines the interface for sending emails. The rawMessage parameter
// carries the full message including headers (and MIME parts for
// attachments), properly formatted.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// Identity carries the per-branding From address and SMTP account. A zero
// Identity falls back to the process-wide SMTP configuration.
type Identity struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
}

// IdentitySender is implemented by senders that can send on behalf of a
// specific branding identity.
type IdentitySender interface {
	Sender
	SendAs(ctx context.Context, identity Identity, to []string, subject string, rawMessage []byte) error
}

// SMTPSender implements the Sender interface using net/smtp.
type SMTPSender struct {
	cfg  *config.Config
	auth smtp.Auth
	addr string
}

// NewSMTPSender creates a new SMTPSender, or a logging sender when no SMTP
// host is configured.
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		log.Println("SMTP host not configured, using logging email sender.")
		return &LoggingSender{cfg: cfg}
	}

	auth := smtp.PlainAuth(
		"",
		cfg.SmtpUsername,
		cfg.SmtpPassword,
		cfg.SmtpHost,
	)
	addr := fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort)

	return &SMTPSender{
		cfg:  cfg,
		auth: auth,
		addr: addr,
	}
}

// Send sends an email using the process-wide SMTP account.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	err := smtp.SendMail(s.addr, s.auth, s.cfg.SmtpFromAddress, to, rawMessage)
	if err != nil {
		log.Printf("Failed to send email via SMTP to %v: %v", to, err)
		return fmt.Errorf("smtp error: %w", err)
	}
	log.Printf("Email sent successfully via SMTP to %v (Subject: %s)", to, subject)
	return nil
}

// SendAs sends using a branding's own SMTP identity, falling back to the
// process-wide account for any unset field.
func (s *SMTPSender) SendAs(ctx context.Context, identity Identity, to []string, subject string, rawMessage []byte) error {
	if identity.Host == "" {
		return s.Send(ctx, to, subject, rawMessage)
	}
	auth := smtp.PlainAuth("", identity.Username, identity.Password, identity.Host)
	addr := fmt.Sprintf("%s:%d", identity.Host, identity.Port)
	from := identity.FromAddress
	if from == "" {
		from = s.cfg.SmtpFromAddress
	}
	if err := smtp.SendMail(addr, auth, from, to, rawMessage); err != nil {
		log.Printf("Failed to send email via branding SMTP %s to %v: %v", addr, to, err)
		return fmt.Errorf("smtp error: %w", err)
	}
	log.Printf("Email sent via branding SMTP %s to %v (Subject: %s)", addr, to, subject)
	return nil
}

// LoggingSender is a mock implementation that just logs email details.
// Useful for development or when SMTP isn't configured.
type LoggingSender struct {
	cfg *config.Config
}

// Send logs the email details instead of sending.
func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	log.Printf("--- Sending Email (Logged) ---")
	log.Printf("To: %v", to)
	log.Printf("Configured From: %s", s.cfg.SmtpFromAddress)
	log.Printf("Subject: %s", subject)
	log.Println("--- Raw Message ---")
	log.Println(string(rawMessage))
	log.Println("--- End Email ---")
	return nil
}
