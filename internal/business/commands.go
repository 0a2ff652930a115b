package business

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/goccy/go-yaml"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/api-client/internal/callback"
	"github.com/openkcm/api-client/internal/config"
	"github.com/openkcm/api-client/pkg/api"
	"github.com/openkcm/api-client/pkg/resource"
)

var ErrUnknownCollection = errors.New("unknown collection")

const (
	OutputJSON = "json"
	OutputYAML = "yaml"
)

type ConfigureOptions struct {
	ClientID    string
	RedirectURI string
}

// ConfigureMain stores the client registration. Without a redirect URI the
// loopback callback address is registered.
func ConfigureMain(ctx context.Context, cfg *config.Config, opts ConfigureOptions, out io.Writer) error {
	client, closeFn, err := initClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	redirectURI := opts.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://" + cfg.Callback.Address + cfg.Callback.Path
	}

	err = client.Configure(ctx, api.ClientConfig{ClientID: opts.ClientID, RedirectURI: redirectURI})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "Configured client %s with redirect URI %s\n", opts.ClientID, redirectURI)
	return err
}

type LoginOptions struct {
	// NoListen only prints the authorization URL. The redirect is then
	// handed over with the callback command.
	NoListen bool
}

func LoginMain(ctx context.Context, cfg *config.Config, opts LoginOptions, out io.Writer) error {
	client, closeFn, err := initClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if opts.NoListen {
		directive, err := client.AttemptLogin(ctx)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(out, "Open the following URL to log in:\n\n  %s\n\nThen pass the redirect URL to the callback command.\n", directive.URL)
		return err
	}

	listener, err := callback.Listen(ctx, cfg.Callback.Address, cfg.Callback.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := listener.Close(); err != nil {
			slogctx.Warn(ctx, "Failed to close the callback server", "error", err)
		}
	}()

	clientCfg, err := client.Config(ctx)
	if err != nil {
		return err
	}
	if clientCfg != nil && clientCfg.RedirectURI != listener.URL() {
		slogctx.Warn(ctx, "Registered redirect URI differs from the callback server",
			"redirectURI", clientCfg.RedirectURI, "callback", listener.URL())
	}

	directive, err := client.AttemptLogin(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "Open the following URL to log in:\n\n  %s\n\nWaiting for the authorization callback...\n", directive.URL)
	if err != nil {
		return err
	}

	callbackURL, err := listener.Wait(ctx, cfg.Callback.Timeout)
	if err != nil {
		return fmt.Errorf("waiting for the callback: %w", err)
	}

	s, err := client.ProcessCallbackURL(ctx, callbackURL)
	if err != nil {
		return err
	}

	return printLoggedIn(out, s)
}

// CallbackMain completes a login with a redirect URL captured elsewhere.
func CallbackMain(ctx context.Context, cfg *config.Config, callbackURL string, out io.Writer) error {
	client, closeFn, err := initClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	s, err := client.ProcessCallbackURL(ctx, callbackURL)
	if err != nil {
		return err
	}

	return printLoggedIn(out, s)
}

func LogoutMain(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client, closeFn, err := initClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	err = client.Logout(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, "Logged out")
	return err
}

func StatusMain(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client, closeFn, err := initClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	status, err := client.Status(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, status)
	return err
}

type sessionView struct {
	Status       api.Status   `yaml:"status"`
	ResponseType string       `yaml:"responseType"`
	ClientID     string       `yaml:"clientID,omitempty"`
	RedirectURI  string       `yaml:"redirectURI,omitempty"`
	Session      *api.Session `yaml:"session,omitempty"`
}

type SessionOptions struct {
	ShowCredentials bool
}

// SessionMain prints the configuration and the current session as YAML.
// Tokens are masked unless requested.
func SessionMain(ctx context.Context, cfg *config.Config, opts SessionOptions, out io.Writer) error {
	client, closeFn, err := initClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	view, err := loadSessionView(ctx, client)
	if err != nil {
		return err
	}

	if view.Session != nil && !opts.ShowCredentials {
		view.Session.Credential = mask(view.Session.Credential)
		view.Session.RefreshToken = mask(view.Session.RefreshToken)
		view.Session.IDToken = mask(view.Session.IDToken)
	}

	bs, err := yaml.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshalling session: %w", err)
	}

	_, err = out.Write(bs)
	return err
}

func loadSessionView(ctx context.Context, client *api.Client) (sessionView, error) {
	view := sessionView{ResponseType: client.ResponseType()}

	clientCfg, err := client.Config(ctx)
	if err != nil {
		return view, err
	}
	if clientCfg != nil {
		view.ClientID = clientCfg.ClientID
		view.RedirectURI = clientCfg.RedirectURI
	}

	view.Session, err = client.Session(ctx)
	if err != nil {
		return view, err
	}

	view.Status, err = client.Status(ctx)
	if err != nil {
		return view, err
	}

	return view, nil
}

func mask(s string) string {
	const visible = 4
	if len(s) <= visible*2 {
		if s == "" {
			return ""
		}
		return "****"
	}

	return s[:visible] + "****" + s[len(s)-visible:]
}

func RefreshMain(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client, closeFn, err := initClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	s, err := client.Refresh(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		_, err = fmt.Fprintln(out, "Not logged in")
		return err
	}

	return printLoggedIn(out, *s)
}

type GetOptions struct {
	Collection string
	ID         string
	Query      map[string]string
	Output     string
}

// GetMain reads one item or lists a collection of the data API.
func GetMain(ctx context.Context, cfg *config.Config, opts GetOptions, out io.Writer) error {
	client, closeFn, err := initClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	collection, err := collectionOf(client, opts.Collection)
	if err != nil {
		return err
	}

	var raw json.RawMessage
	if opts.ID != "" {
		raw, err = collection.Get(ctx, opts.ID)
	} else {
		query := url.Values{}
		for k, v := range opts.Query {
			query.Set(k, v)
		}
		raw, err = collection.List(ctx, query)
	}
	if err != nil {
		return err
	}

	return printDocument(out, raw, opts.Output)
}

func collectionOf(client *api.Client, name string) (*resource.Client, error) {
	switch name {
	case resource.Actions:
		return client.Actions, nil
	case resource.Datasets:
		return client.Datasets, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
}

func printDocument(out io.Writer, raw json.RawMessage, output string) error {
	switch output {
	case OutputYAML:
		bs, err := yaml.JSONToYAML(raw)
		if err != nil {
			return fmt.Errorf("converting response to yaml: %w", err)
		}
		_, err = out.Write(bs)
		return err
	case OutputJSON, "":
		_, err := fmt.Fprintln(out, string(bytes.TrimSpace(raw)))
		return err
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func printLoggedIn(out io.Writer, s api.Session) error {
	if s.ExpiresAt.IsZero() {
		_, err := fmt.Fprintln(out, "Logged in")
		return err
	}

	_, err := fmt.Fprintf(out, "Logged in until %s\n", s.ExpiresAt.Local().Format(time.RFC3339))
	return err
}
