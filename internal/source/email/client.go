package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/oohrelay/internal/model"
	"github.com/nhle/oohrelay/internal/source"
)

// IMAPClient wraps go-imap v2 for reading the out-of-hours mailbox.
type IMAPClient struct {
	host      string
	port      string
	username  string
	password  string
	tls       bool
	mailbox   string
	sinceDays int
	logger    *slog.Logger
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	cfg model.IMAPConfig, username, password string, logger *slog.Logger,
) *IMAPClient {
	mailbox := cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPClient{
		host:      cfg.Host,
		port:      cfg.Port,
		username:  username,
		password:  password,
		tls:       cfg.TLS,
		mailbox:   mailbox,
		sinceDays: cfg.SinceDays,
		logger:    logger,
	}
}

// dial opens the TCP (or implicit TLS) connection to the server. The
// dial and TLS handshake honour ctx.
func (c *IMAPClient) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(c.host, c.port)
	dialer := &net.Dialer{Timeout: dialTimeout}

	var conn net.Conn
	var err error
	if c.tls {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: c.host, NextProtos: []string{"imap"}},
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, &source.TransportError{
			Op:  "imap connect",
			Err: fmt.Errorf("connecting to IMAP %s: %w", addr, ctxCause(ctx, err)),
		}
	}
	return conn, nil
}

// login waits for the greeting on conn, upgrades plain connections with
// STARTTLS and authenticates. The caller must close conn when ctx ends so
// a silent server cannot block these steps.
func (c *IMAPClient) login(
	ctx context.Context, conn net.Conn,
) (*imapclient.Client, error) {
	addr := net.JoinHostPort(c.host, c.port)

	var client *imapclient.Client
	if c.tls {
		client = imapclient.New(conn, nil)
	} else {
		var err error
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: c.host},
		})
		if err != nil {
			return nil, &source.TransportError{
				Op:  "imap connect",
				Err: fmt.Errorf("starting TLS with %s: %w", addr, ctxCause(ctx, err)),
			}
		}
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Close()
		if ctx.Err() != nil {
			return nil, &source.TransportError{
				Op:  "imap login",
				Err: fmt.Errorf("logging in to %s: %w", addr, ctxCause(ctx, err)),
			}
		}
		return nil, &source.AuthError{
			Server: addr,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, nil
}

// ctxCause wraps err with ctx's error once ctx has ended.
func ctxCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return err
}

// FetchAllMessages selects the configured mailbox, searches for messages
// received in the last sinceDays days (all messages when sinceDays is 0)
// and returns them parsed. Messages that cannot be parsed are skipped.
// Cancelling ctx closes the connection at any stage, including before the
// server greets.
func (c *IMAPClient) FetchAllMessages(
	ctx context.Context,
) ([]model.RetrievedMessage, error) {
	c.logger.Info("retrieving mail", "server", c.host, "mailbox", c.mailbox)

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client, err := c.login(ctx, conn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	msgs, err := c.fetch(client)
	if err != nil {
		return nil, &source.TransportError{Op: "imap fetch", Err: ctxCause(ctx, err)}
	}

	c.logger.Debug("retrieved emails", "count", len(msgs))
	return msgs, nil
}

func (c *IMAPClient) fetch(
	client *imapclient.Client,
) ([]model.RetrievedMessage, error) {
	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}

	criteria := &imap.SearchCriteria{}
	if c.sinceDays > 0 {
		criteria.Since = time.Now().AddDate(0, 0, -c.sinceDays)
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var messages []model.RetrievedMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			c.logger.Warn("collecting message", "error", err)
			continue
		}

		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			continue
		}

		parsed, err := ParseMessage(raw)
		if err != nil {
			c.logger.Warn("skipping unparseable message",
				"uid", uint32(buf.UID), "error", err)
			continue
		}
		parsed.UID = uint32(buf.UID)
		if parsed.Subject == "" && buf.Envelope != nil {
			parsed.Subject = buf.Envelope.Subject
		}

		messages = append(messages, parsed)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching messages: %w", err)
	}

	return messages, nil
}
