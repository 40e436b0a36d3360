// Package auth builds OAuth2-authorized HTTP clients for the reporting API.
//
// Two modes are supported. "installed" runs the installed-application flow
// against a client secrets file, asks the operator to paste the
// authorization code and caches the resulting token on disk so later runs
// skip the prompt. "default" uses Application Default Credentials.
package auth

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Modes accepted by NewHTTPClient.
const (
	ModeInstalled = "installed"
	ModeDefault   = "default"
)

// Config describes where credentials come from.
type Config struct {
	Mode        string
	SecretsFile string
	TokenFile   string
	Scopes      []string
}

// Prompter obtains an authorization code after the operator visits url.
type Prompter interface {
	AuthCode(ctx context.Context, url string) (string, error)
}

// StdioPrompter prints the consent URL and reads one line from In.
type StdioPrompter struct {
	In  io.Reader
	Out io.Writer
}

// AuthCode implements Prompter.
func (p StdioPrompter) AuthCode(_ context.Context, url string) (string, error) {
	if _, err := fmt.Fprintf(p.Out, "Go to the following link in your browser:\n\n    %s\n\nEnter verification code: ", url); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read verification code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return "", errors.New("empty verification code")
	}
	return code, nil
}

// NewHTTPClient returns a client that attaches OAuth2 credentials to every
// request. Any *http.Client stored in ctx under oauth2.HTTPClient is used for
// token exchange and as the base transport.
func NewHTTPClient(ctx context.Context, cfg Config, prompt Prompter, logger *zap.Logger) (*http.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Mode {
	case ModeDefault:
		client, err := google.DefaultClient(ctx, cfg.Scopes...)
		if err != nil {
			return nil, fmt.Errorf("application default credentials: %w", err)
		}
		logger.Info("using application default credentials")
		return client, nil
	case ModeInstalled, "":
		return installedClient(ctx, cfg, prompt, logger)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

func installedClient(ctx context.Context, cfg Config, prompt Prompter, logger *zap.Logger) (*http.Client, error) {
	// #nosec G304 -- the secrets path is operator supplied.
	secrets, err := os.ReadFile(cfg.SecretsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	conf, err := google.ConfigFromJSON(secrets, cfg.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}

	tok, err := LoadToken(cfg.TokenFile)
	switch {
	case err == nil:
		logger.Debug("using cached token", zap.String("token_file", cfg.TokenFile))
	case errors.Is(err, os.ErrNotExist):
		if prompt == nil {
			return nil, errors.New("no cached token and no prompter for the consent flow")
		}
		url := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
		code, perr := prompt.AuthCode(ctx, url)
		if perr != nil {
			return nil, perr
		}
		tok, err = conf.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchange verification code: %w", err)
		}
		if err := SaveToken(cfg.TokenFile, tok); err != nil {
			return nil, err
		}
		logger.Info("stored new token", zap.String("token_file", cfg.TokenFile))
	default:
		return nil, err
	}

	src := &cachingSource{
		base:   conf.TokenSource(ctx, tok),
		path:   cfg.TokenFile,
		last:   tok.AccessToken,
		logger: logger,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// cachingSource writes refreshed tokens back to the cache file.
type cachingSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	path   string
	last   string
	logger *zap.Logger
}

func (c *cachingSource) Token() (*oauth2.Token, error) {
	tok, err := c.base.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if tok.AccessToken != c.last {
		c.last = tok.AccessToken
		if err := SaveToken(c.path, tok); err != nil {
			c.logger.Warn("failed to cache refreshed token", zap.Error(err))
		}
	}
	return tok, nil
}

// LoadToken reads a cached token. A missing file yields an error wrapping os.ErrNotExist.
func LoadToken(path string) (*oauth2.Token, error) {
	// #nosec G304 -- the token path is operator supplied.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token cache: %w", err)
	}
	defer func() { _ = f.Close() }()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token cache %s: %w", path, err)
	}
	return tok, nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}
