package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/oohrelay/internal/model"
)

// AuthError indicates that the mail server rejected the account
// credentials.
type AuthError struct {
	Server  string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Server, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// TransportError wraps a failure talking to a mail server. Sent counts the
// messages delivered before a send failed.
type TransportError struct {
	Op   string
	Sent int
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err (or any error in its chain) is a
// TransportError.
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// Fetcher retrieves inbound messages with their parts decoded.
type Fetcher interface {
	FetchAllMessages(ctx context.Context) ([]model.RetrievedMessage, error)
}

// Sender relays rendered messages one by one, in order, and returns how
// many were accepted by the server.
type Sender interface {
	SendMessages(
		ctx context.Context,
		from, to model.Address,
		msgs []model.RenderedMessage,
	) (int, error)
}
