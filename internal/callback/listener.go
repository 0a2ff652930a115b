// Package callback runs the loopback HTTP listener that receives the
// provider's redirect when the client is driven from a terminal.
package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

const (
	DefaultAddress = "127.0.0.1:8976"
	DefaultPath    = "/callback"
	DefaultTimeout = 5 * time.Minute

	readHeaderTimeout = 10 * time.Second
)

var ErrTimeout = errors.New("timed out waiting for the authorization callback")

const donePage = `<html><body><h1>Authorization received</h1><p>You can close this window.</p></body></html>`

// bouncePage re-requests the page with the fragment as query so that results
// of the implicit flow reach the listener.
const bouncePage = `<html><body><script>
if (window.location.hash.length > 1) {
  window.location.replace(window.location.pathname + "?" + window.location.hash.substring(1));
} else {
  document.body.innerText = "Nothing to process.";
}
</script></body></html>`

type Listener struct {
	listener net.Listener
	server   *http.Server
	path     string
	results  chan string
}

// Listen starts serving path on address.
func Listen(ctx context.Context, address, path string) (*Listener, error) {
	if path == "" {
		path = DefaultPath
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}

	l := &Listener{
		listener: listener,
		path:     path,
		results:  make(chan string, 1),
	}
	l.server = &http.Server{
		ReadHeaderTimeout: readHeaderTimeout,
		Handler:           http.HandlerFunc(l.handle),
	}

	go func() {
		if err := l.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Callback server stopped", "error", err)
		}
	}()

	slogctx.Debug(ctx, "Callback server listening", "address", listener.Addr().String())

	return l, nil
}

// URL is the redirect URI served by the listener.
func (l *Listener) URL() string {
	return "http://" + l.listener.Addr().String() + l.path
}

func (l *Listener) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != l.path {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if r.URL.RawQuery == "" {
		_, _ = fmt.Fprint(w, bouncePage)
		return
	}

	select {
	case l.results <- "http://" + r.Host + r.URL.RequestURI():
	default:
		// only the first callback counts
	}

	_, _ = fmt.Fprint(w, donePage)
}

// Wait returns the full URL of the first callback received.
func (l *Listener) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case u := <-l.results:
		return u, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", ErrTimeout
	}
}

func (l *Listener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	return l.server.Shutdown(ctx)
}
