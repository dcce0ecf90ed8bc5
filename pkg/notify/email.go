package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
)

// Email sends messages over SMTP. The target is an email address, which is
// also how SMS is reached through a carrier gateway such as
// 5555555555@tmomail.net.
type Email struct {
	host     string
	port     string
	username string
	password string
	from     string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmail returns an Email that authenticates with username and password.
func NewEmail(host, port, username, password, from string) *Email {
	if from == "" {
		from = username
	}
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

func configuredEmail() *Email {
	e := NewEmail("", "", "", "", "")
	host := lflag.String("smtp-host", "smtp.gmail.com", "SMTP server host")
	port := lflag.String("smtp-port", "587", "SMTP server port")
	username := lflag.String("smtp-username", "", "SMTP username (defaults to $GMAIL_USER)")
	password := lflag.String("smtp-password", "", "SMTP password (defaults to $GMAIL_APP_PASSWORD)")
	from := lflag.String("smtp-from", "", "From address (defaults to the SMTP username)")

	lflag.Do(func() {
		e.host = *host
		e.port = *port
		e.username = *username
		if e.username == "" {
			e.username = os.Getenv("GMAIL_USER")
		}
		e.password = *password
		if e.password == "" {
			e.password = os.Getenv("GMAIL_APP_PASSWORD")
		}
		e.from = *from
		if e.from == "" {
			e.from = e.username
		}
	})
	return e
}

// Enabled returns true if credentials are configured.
func (e *Email) Enabled() bool {
	return e.username != "" && e.password != ""
}

// Validate checks if the sender is properly configured.
func (e *Email) Validate() error {
	if e.host == "" {
		return errors.New("smtp-host is required")
	}
	if e.port == "" {
		return errors.New("smtp-port is required")
	}
	if e.from == "" {
		return errors.New("smtp-from is required")
	}
	return nil
}

func (e *Email) message(to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// Send emails body to the address with the title as subject.
func (e *Email) Send(ctx context.Context, to, title, body string) error {
	if strings.ContainsAny(to, "\r\n") || !strings.Contains(to, "@") {
		return fmt.Errorf("invalid email address: %q", to)
	}

	addr := net.JoinHostPort(e.host, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)
	msg := e.message(to, title, body)

	// smtp.SendMail has no context so abandon it once the context is done
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.sendMail(addr, auth, e.from, []string{to}, msg)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to send email: %w", ctx.Err())
	}
}
