package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/jrsteele09/go-token-authority/users"
	"github.com/pkg/errors"
)

var _ Sender = (*SMTPSender)(nil)

// DefaultSMTPTimeout bounds one delivery when the caller's context carries no earlier deadline.
const DefaultSMTPTimeout = 10 * time.Second

// SendMailFunc delivers msg like smtp.SendMail, giving up when ctx is done.
type SendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender mails links through an SMTP relay using PLAIN auth.
type SMTPSender struct {
	host     string
	port     string
	account  string
	password string
	from     string
	appName  string
	baseURL  string
	timeout  time.Duration
	sendMail SendMailFunc
	nowFunc  func() time.Time
}

type SMTPOption func(*SMTPSender)

func WithSendMailFunc(f SendMailFunc) SMTPOption {
	return func(s *SMTPSender) {
		s.sendMail = f
	}
}

// WithSMTPTimeout caps how long a single delivery may take, dial included.
func WithSMTPTimeout(timeout time.Duration) SMTPOption {
	return func(s *SMTPSender) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithSMTPNowFunc(now func() time.Time) SMTPOption {
	return func(s *SMTPSender) {
		s.nowFunc = now
	}
}

func NewSMTPSender(host, port, account, password, from, appName, baseURL string, options ...SMTPOption) (*SMTPSender, error) {
	if host == "" {
		return nil, errors.New("[NewSMTPSender] host is required")
	}
	if from == "" {
		from = account
	}
	if from == "" {
		return nil, errors.New("[NewSMTPSender] from address or account is required")
	}

	s := &SMTPSender{
		host:     host,
		port:     port,
		account:  account,
		password: password,
		from:     from,
		appName:  appName,
		baseURL:  baseURL,
		timeout:  DefaultSMTPTimeout,
		nowFunc:  time.Now,
	}
	s.sendMail = s.sendMailContext
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *SMTPSender) SendActivationLink(ctx context.Context, user *users.User, tokenValue string) error {
	body := fmt.Sprintf("Welcome to %s.\r\n\r\nActivate your account by opening this link:\r\n\r\n%s\r\n",
		s.appName, Link(s.baseURL, ActivationPath, tokenValue))
	return errors.Wrap(s.send(ctx, user.Email, "Activate your "+s.appName+" account", body), "[SMTPSender.SendActivationLink]")
}

func (s *SMTPSender) SendResetLink(ctx context.Context, user *users.User, tokenValue string) error {
	body := fmt.Sprintf("A password reset was requested for your %s account.\r\n\r\nChoose a new password here:\r\n\r\n%s\r\n\r\nIf you did not ask for this you can ignore this email.\r\n",
		s.appName, Link(s.baseURL, ResetPasswordPath, tokenValue))
	return errors.Wrap(s.send(ctx, user.Email, "Reset your "+s.appName+" password", body), "[SMTPSender.SendResetLink]")
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", s.nowFunc().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.account != "" {
		auth = smtp.PlainAuth("", s.account, s.password, s.host)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.sendMail(ctx, net.JoinHostPort(s.host, s.port), auth, s.from, []string{to}, msg.Bytes()); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrapf(ctxErr, "send to %s: %v", s.host, err)
		}
		return err
	}
	return nil
}

// sendMailContext is smtp.SendMail with the dial and every exchange bound to ctx.
func (s *SMTPSender) sendMailContext(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	defer conn.Close()

	// Unblocks any pending read or write once ctx is done.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return errors.Wrap(err, "greeting")
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return errors.Wrap(err, "starttls")
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return errors.Wrap(err, "auth")
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return errors.Wrap(err, "mail from")
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return errors.Wrap(err, "rcpt to")
		}
	}
	w, err := c.Data()
	if err != nil {
		return errors.Wrap(err, "data")
	}
	if _, err := w.Write(msg); err != nil {
		return errors.Wrap(err, "write message")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "end message")
	}
	return c.Quit()
}
