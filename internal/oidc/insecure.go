package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gracefellowship/churchsite/backend/go-services/pkg/middleware"
)

// unverifiedToken carries the claims of an ID token whose signature was not
// checked.
type unverifiedToken jwt.MapClaims

func (t unverifiedToken) Claims(v interface{}) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// InsecureVerifier accepts ID tokens without checking their signature. It
// still rejects expired tokens and, when issuer is set, tokens minted by a
// different realm. Enabled only with ALLOW_INSECURE_TOKEN=true for local
// Keycloak containers whose keys are not reachable from the API.
type InsecureVerifier struct {
	issuer string
	now    func() time.Time
}

func NewInsecureVerifier(issuer string) *InsecureVerifier {
	return &InsecureVerifier{issuer: issuer, now: time.Now}
}

func (v *InsecureVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}
	if exp, err := claims.GetExpirationTime(); err != nil {
		return nil, fmt.Errorf("id token exp: %w", err)
	} else if exp != nil && !v.now().Before(exp.Time) {
		return nil, fmt.Errorf("id token expired at %s", exp.Time.UTC().Format(time.RFC3339))
	}
	if v.issuer != "" {
		if iss, _ := claims.GetIssuer(); iss != v.issuer {
			return nil, fmt.Errorf("id token issued by %q, want %q", iss, v.issuer)
		}
	}
	return unverifiedToken(claims), nil
}
