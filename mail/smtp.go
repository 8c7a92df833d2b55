// Package mail delivers verification codes over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender implements authflow.Mailer with a single SMTP submission per
// message. Username empty means no authentication.
type SMTPSender struct {
	Host     string
	Port     string
	Username string
	Password string

	send SendFunc
}

// NewSMTPSender returns a sender for host:port.
func NewSMTPSender(host, port, username, password string) *SMTPSender {
	return &SMTPSender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		send:     smtp.SendMail,
	}
}

// SendHTML sends an HTML message. smtp.SendMail does not take a context, so
// ctx is only checked before dialing.
func (s *SMTPSender) SendHTML(ctx context.Context, to, subject, htmlBody, from string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" || from == "" {
		return errors.New("mail: sender and recipient required")
	}
	if strings.ContainsAny(to+from+subject, "\r\n") {
		return errors.New("mail: header values must not contain line breaks")
	}

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	send := s.send
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(net.JoinHostPort(s.Host, s.Port), auth, from, []string{to}, buildMessage(to, subject, htmlBody, from)); err != nil {
		return fmt.Errorf("mail: send to smtp %s: %w", s.Host, err)
	}
	return nil
}

func buildMessage(to, subject, htmlBody, from string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
