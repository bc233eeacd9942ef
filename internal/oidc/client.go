package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/middleware"
)

var ErrNotConfigured = errors.New("identity provider not configured")

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

// Client performs password and authorization-code grants against a
// Keycloak realm and verifies the returned ID token.
type Client struct {
	tokenURL     string
	clientID     string
	clientSecret string
	verifier     middleware.Verifier
	http         *http.Client
}

func NewClient(baseURL, realm, clientID, clientSecret string, verifier middleware.Verifier) *Client {
	return &Client{
		tokenURL:     IssuerURL(baseURL, realm) + "/protocol/openid-connect/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		verifier:     verifier,
		http:         &http.Client{Timeout: 15 * time.Second},
	}
}

// PasswordLogin runs the resource owner password grant.
func (c *Client) PasswordLogin(ctx context.Context, username, password string) (Identity, error) {
	tr, err := c.exchange(ctx, url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
		"scope":      {"openid"},
	})
	if err != nil {
		return Identity{}, err
	}
	return c.identity(ctx, tr)
}

// ExchangeCode redeems a single sign-on authorization code. A "Code not
// valid" answer is retried once.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (Identity, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	logger.Debugf("auth code exchange: code length=%d redirect_uri=%s", len(code), redirectURI)
	tr, err := c.exchange(ctx, form)
	if err != nil && strings.Contains(err.Error(), "Code not valid") {
		time.Sleep(150 * time.Millisecond)
		tr, err = c.exchange(ctx, form)
	}
	if err != nil {
		return Identity{}, err
	}
	return c.identity(ctx, tr)
}

func (c *Client) identity(ctx context.Context, tr *tokenResponse) (Identity, error) {
	if tr.IDToken == "" {
		return Identity{}, errors.New("token response has no id_token")
	}
	if c.verifier == nil {
		return Identity{}, ErrNotConfigured
	}
	tok, err := c.verifier.Verify(ctx, tr.IDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("verify id token: %w", err)
	}
	return IdentityFromToken(tok)
}

// exchange posts form with client_secret_post and falls back to HTTP Basic
// client authentication when the provider answers 401.
func (c *Client) exchange(ctx context.Context, form url.Values) (*tokenResponse, error) {
	form.Set("client_id", c.clientID)
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}
	resp, err := c.post(ctx, form, false)
	if err == nil && resp.StatusCode == http.StatusUnauthorized && c.clientSecret != "" {
		_ = resp.Body.Close()
		logger.Warnf("token endpoint returned 401, retrying with HTTP Basic client auth")
		resp, err = c.post(ctx, form, true)
	}
	if err != nil {
		return nil, fmt.Errorf("token endpoint: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &tr, nil
}

func (c *Client) post(ctx context.Context, form url.Values, basic bool) (*http.Response, error) {
	body := form
	if basic {
		body = url.Values{}
		for k, v := range form {
			if k != "client_secret" {
				body[k] = v
			}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basic {
		req.SetBasicAuth(c.clientID, c.clientSecret)
	}
	return c.http.Do(req)
}
