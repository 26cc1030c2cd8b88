package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"
)

type EmailConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// EmailService sends transactional mail over SMTP. Port 465 uses a direct
// TLS connection, anything else STARTTLS.
type EmailService struct {
	cfg EmailConfig
}

func NewEmailService(cfg EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`
<html>
<body>
  <h2>Registration Confirmed!</h2>
  <p>Team <strong>{{.TeamName}}</strong> is registered for the Ascension Valorant Tournament.</p>
  <p>Keep this email as your confirmation. Match schedule and bracket details follow after registration closes.</p>
  <p>See you on the battlefield.</p>
</body>
</html>`))

func (s *EmailService) SendRegistrationConfirmation(toEmail, teamName string) error {
	var body bytes.Buffer
	if err := confirmationTemplate.Execute(&body, struct{ TeamName string }{TeamName: teamName}); err != nil {
		return fmt.Errorf("failed to render confirmation email: %w", err)
	}

	subject := fmt.Sprintf("Welcome to Ascension, %s!", teamName)
	return s.send([]string{toEmail}, subject, body.String())
}

func (s *EmailService) send(to []string, subject, body string) error {
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)

	msg := []byte("To: " + to[0] + "\r\n" +
		"From: " + s.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	tlsconfig := &tls.Config{
		ServerName: s.cfg.Host,
	}

	var client *smtp.Client
	if s.cfg.Port == 465 {
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("failed to open TLS connection: %w", err)
		}
		client, err = smtp.NewClient(conn, s.cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to create SMTP client: %w", err)
		}
	} else {
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("failed to dial SMTP server: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO failed: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close DATA: %w", err)
	}

	return nil
}
