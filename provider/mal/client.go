package mal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kurabu/authflow"
	"golang.org/x/oauth2"
)

const (
	DefaultTokenURL = "https://myanimelist.net/v1/oauth2/token"
	defaultTimeout  = 15 * time.Second
)

// ErrExchangeTransport wraps exchange failures that carry no structured
// provider error: network errors, non-JSON error pages and malformed
// success bodies.
var ErrExchangeTransport = errors.New("mal: token exchange failed")

// Config configures a [Client].
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	// HTTPClient overrides the client used for token requests. Its timeout
	// is left alone; otherwise a client with Timeout is used.
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client exchanges authorization codes with MyAnimeList. The authorize URL
// is built by the engine from Config.Upstream.
type Client struct {
	oauth      oauth2.Config
	httpClient *http.Client
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("mal client id required")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}, nil
}

// ExchangeCode trades code and its PKCE verifier for a token pair. An error
// body from the token endpoint becomes *authflow.ProviderError; anything
// else is wrapped in [ErrExchangeTransport].
func (c *Client) ExchangeCode(ctx context.Context, code, verifier, redirectURI string) (authflow.TokenPair, error) {
	cfg := c.oauth
	cfg.RedirectURL = redirectURI

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return authflow.TokenPair{}, classify(err)
	}
	if token.RefreshToken == "" {
		return authflow.TokenPair{}, fmt.Errorf("%w: response missing refresh_token", ErrExchangeTransport)
	}

	return authflow.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}, nil
}

// errorBody covers both the RFC 6749 error shape and the message/hint pair
// MyAnimeList adds.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
	Hint             string `json:"hint"`
}

func classify(err error) error {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return fmt.Errorf("%w: %v", ErrExchangeTransport, err)
	}

	var body errorBody
	_ = json.Unmarshal(rerr.Body, &body)
	if body.Error == "" {
		body.Error = rerr.ErrorCode
	}
	if body.ErrorDescription == "" {
		body.ErrorDescription = rerr.ErrorDescription
	}
	if body.Error == "" && body.Message == "" {
		return fmt.Errorf("%w: %v", ErrExchangeTransport, err)
	}

	perr := &authflow.ProviderError{
		Code:    body.Error,
		Message: body.ErrorDescription,
	}
	if perr.Message == "" {
		perr.Message = body.Message
	}
	if rerr.Response != nil {
		perr.StatusCode = rerr.Response.StatusCode
	}
	return perr
}
