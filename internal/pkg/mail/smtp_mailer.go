package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/fielddesk/fielddesk/internal/pkg/env"
)

// SendMail sends a transactional email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendReauthNotice emails the user that an integration needs to be reconnected.
func SendReauthNotice(to, provider, accountEmail string) error {
	subject := fmt.Sprintf("Action required: reconnect your %s integration", provider)
	body := fmt.Sprintf(
		"<p>Synchronization for your connected account <b>%s</b> (%s) has been paused "+
			"because the provider no longer accepts our access.</p>"+
			"<p>Please open Settings &rarr; Integrations and reconnect the account to resume syncing.</p>",
		accountEmail, provider,
	)
	return SendMail(to, subject, body)
}
