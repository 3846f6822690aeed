// Package mail delivers verification codes and lockout notices over SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
)

const (
	verificationSubject = "[ParkMate] Your e-mail verification code"
	verificationBody    = "Hello,\r\n\r\nYour verification code is:\r\n\r\n[ %s ]\r\n\r\nThe code is valid for %d minutes.\r\n"

	lockoutSubject = "[ParkMate] Your account has been locked"
	lockoutBody    = "Hello %s,\r\n\r\nYour account was locked after repeated failed sign-in attempts.\r\nIf this was not you, contact customer support immediately.\r\n"

	// DefaultTimeout bounds one delivery when the caller's context has no
	// deadline.
	DefaultTimeout = 10 * time.Second
)

var _ authcore.Notifier = (*Sender)(nil)

// SendFunc matches smtp.SendMail. It replaces the built-in transport in
// tests; the context is only checked before it is called.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Config configures the SMTP relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// CodeTTL is quoted in the verification e-mail.
	CodeTTL time.Duration
	// Timeout bounds a delivery whose context carries no deadline. Zero
	// uses [DefaultTimeout].
	Timeout time.Duration
}

// Sender implements authcore.Notifier with PLAIN-auth SMTP.
type Sender struct {
	addr    string
	host    string
	from    string
	auth    smtp.Auth
	codeTTL time.Duration
	timeout time.Duration
	dialer  net.Dialer
	send    SendFunc
	now     func() time.Time
}

// NewSender returns a Sender for cfg. Auth is skipped when Username is
// empty.
func NewSender(cfg Config) *Sender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	ttl := cfg.CodeTTL
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sender{
		addr:    net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		host:    cfg.Host,
		from:    cfg.From,
		auth:    auth,
		codeTTL: ttl,
		timeout: timeout,
		now:     time.Now,
	}
}

// WithSendFunc replaces the SMTP transport.
func (s *Sender) WithSendFunc(fn SendFunc) *Sender {
	s.send = fn
	return s
}

func (s *Sender) SendVerificationCode(ctx context.Context, email, code string) error {
	body := fmt.Sprintf(verificationBody, code, int(s.codeTTL/time.Minute))
	return s.deliver(ctx, email, verificationSubject, body)
}

func (s *Sender) SendLockoutNotice(ctx context.Context, email, name string) error {
	if strings.TrimSpace(name) == "" {
		name = "customer"
	}
	return s.deliver(ctx, email, lockoutSubject, fmt.Sprintf(lockoutBody, name))
}

func (s *Sender) deliver(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("mail: invalid recipient")
	}
	msg := s.message(to, subject, body)

	var err error
	if s.send != nil {
		err = s.send(s.addr, s.auth, s.from, []string{to}, msg)
	} else {
		err = s.transmit(ctx, to, msg)
	}
	if err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	return nil
}

// transmit runs one SMTP session. Every network operation is bounded by the
// context deadline, or by s.timeout when ctx has none, and cancellation
// interrupts a session in progress.
func (s *Sender) transmit(ctx context.Context, to string, msg []byte) (err error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	deadline, _ := ctx.Deadline()
	defer func() {
		if err == nil {
			return
		}
		switch {
		case ctx.Err() != nil:
			err = errors.Join(ctx.Err(), err)
		case !time.Now().Before(deadline):
			err = errors.Join(context.DeadlineExceeded, err)
		}
	}()

	conn, err := s.dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	if s.auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := c.Auth(s.auth); err != nil {
			return err
		}
	}
	if err := c.Mail(s.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
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

func (s *Sender) message(to, subject, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(body)
	return b.Bytes()
}
