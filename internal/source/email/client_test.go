package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nhle/oohrelay/internal/model"
	"github.com/nhle/oohrelay/internal/source"
)

// startSilentServer accepts connections and never writes to them, like a
// server that hangs before its greeting.
func startSilentServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	var mu sync.Mutex
	var conns []net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		<-done
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestFetchAllMessagesHonoursDeadlineBeforeGreeting(t *testing.T) {
	for _, implicitTLS := range []bool{false, true} {
		name := "starttls"
		if implicitTLS {
			name = "implicit tls"
		}
		t.Run(name, func(t *testing.T) {
			host, port, err := net.SplitHostPort(startSilentServer(t))
			if err != nil {
				t.Fatal(err)
			}
			client := NewIMAPClient(
				model.IMAPConfig{Host: host, Port: port, TLS: implicitTLS},
				"watchman", "secret", slog.New(slog.NewTextHandler(io.Discard, nil)),
			)

			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()

			errc := make(chan error, 1)
			go func() {
				_, err := client.FetchAllMessages(ctx)
				errc <- err
			}()

			select {
			case err := <-errc:
				if !source.IsTransportError(err) {
					t.Errorf("FetchAllMessages error = %v, want TransportError", err)
				}
				if !errors.Is(err, context.DeadlineExceeded) {
					t.Errorf("FetchAllMessages error = %v, want deadline exceeded", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("FetchAllMessages still blocked 5s after a 300ms deadline")
			}
		})
	}
}

func TestFetchAllMessagesConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	client := NewIMAPClient(
		model.IMAPConfig{Host: host, Port: port},
		"watchman", "secret", slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	_, err = client.FetchAllMessages(context.Background())
	if !source.IsTransportError(err) {
		t.Errorf("FetchAllMessages error = %v, want TransportError", err)
	}
}
