package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/oohrelay/internal/model"
	"github.com/nhle/oohrelay/internal/source"
)

const dialTimeout = 30 * time.Second

// SMTPSender relays rendered calls over a single SMTP session.
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	logger   *slog.Logger

	// now stamps the Date header; replaced in tests.
	now func() time.Time
}

// NewSMTPSender creates a sender for the given relay.
func NewSMTPSender(
	cfg model.SMTPConfig, username, password string, logger *slog.Logger,
) *SMTPSender {
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: username,
		password: password,
		tls:      cfg.TLS,
		logger:   logger,
		now:      time.Now,
	}
}

// Compose builds the RFC 5322 form of one relayed call.
func Compose(
	from, to model.Address, msg model.RenderedMessage, date time.Time,
) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Name: from.Name, Address: from.Address}})
	h.SetAddressList("To", []*mail.Address{{Name: to.Name, Address: to.Address}})
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message body: %w", err)
	}
	return buf.Bytes(), nil
}

// SendMessages opens one session, upgrades it with STARTTLS when the
// server offers it (or uses implicit TLS when configured), authenticates
// and sends msgs in order. A failure part way through leaves the earlier
// messages sent; the returned count and TransportError.Sent say how many.
func (s *SMTPSender) SendMessages(
	ctx context.Context,
	from, to model.Address,
	msgs []model.RenderedMessage,
) (int, error) {
	wrap := func(op string, sent int, err error) error {
		return &source.TransportError{Op: op, Sent: sent, Err: ctxCause(ctx, err)}
	}

	client, err := s.dial(ctx)
	if err != nil {
		return 0, wrap("smtp connect", 0, err)
	}
	defer client.Close()

	s.logger.Info("connected to mail server", "server", s.host)

	sent := 0
	for i, msg := range msgs {
		s.logger.Debug("sending message",
			"n", i+1, "of", len(msgs), "callref", msg.Reference)

		raw, err := Compose(from, to, msg, s.now())
		if err != nil {
			return sent, wrap("compose", sent, err)
		}
		if err := sendMailViaSMTPClient(client, from.Address, to.Address, raw); err != nil {
			return sent, wrap("smtp send", sent, err)
		}
		sent++
	}

	s.logger.Info("disconnecting from the server")
	if err := client.Quit(); err != nil {
		s.logger.Warn("SMTP QUIT", "error", err)
	}
	return sent, nil
}

// dial connects, negotiates TLS and authenticates. The connection's
// deadline follows ctx.
func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.host, s.port)
	tlsConfig := &tls.Config{ServerName: s.host}

	dialer := &net.Dialer{Timeout: dialTimeout}
	var conn net.Conn
	var err error
	if s.tls {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}

	if !s.tls {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("SMTP STARTTLS: %w", err)
			}
		}
	}

	if ok, _ := client.Extension("AUTH"); ok && s.username != "" {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, &source.AuthError{
				Server:  addr,
				Message: fmt.Sprintf("SMTP auth for %s: %v", s.username, err),
			}
		}
	}

	return client, nil
}

// sendMailViaSMTPClient sends one message using an already-authenticated
// SMTP client.
func sendMailViaSMTPClient(
	client *smtp.Client, from, to string, body []byte,
) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(body); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return nil
}
