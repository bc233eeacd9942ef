package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gracefellowship/churchsite/backend/go-services/pkg/middleware"
)

// AnonymousPrefix marks subjects of anonymous principals.
const AnonymousPrefix = "anon-"

// Principal is the authenticated party an access token is issued for.
type Principal struct {
	Sub       string `json:"sub"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

// NewAnonymous returns a fresh anonymous principal.
func NewAnonymous() Principal {
	return Principal{Sub: AnonymousPrefix + uuid.NewString(), Anonymous: true}
}

// Issuer signs and verifies the service's HS256 access tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

// GenerateAccessToken creates a signed JWT access token for p
func (i *Issuer) GenerateAccessToken(p Principal) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := i.now()
	claims := jwt.MapClaims{
		"sub":  p.Sub,
		"anon": p.Anonymous,
		"iat":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
	}
	if p.Name != "" {
		claims["name"] = p.Name
	}
	if p.Email != "" {
		claims["email"] = p.Email
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString(i.secret)
}

type claimsToken struct {
	claims jwt.MapClaims
}

func (t *claimsToken) Claims(v interface{}) error {
	mm, ok := v.(*map[string]interface{})
	if !ok {
		return fmt.Errorf("unsupported claims type %T", v)
	}
	*mm = map[string]interface{}(t.claims)
	return nil
}

// Verify implements middleware.Verifier. Only HS256 tokens signed with the
// issuer's secret and carrying exp are accepted.
func (i *Issuer) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, err
	}
	return &claimsToken{claims: claims}, nil
}

// PrincipalFromClaims rebuilds a principal from verified claims.
func PrincipalFromClaims(claims map[string]interface{}) (Principal, bool) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Principal{}, false
	}
	p := Principal{Sub: sub}
	p.Name, _ = claims["name"].(string)
	p.Email, _ = claims["email"].(string)
	p.Anonymous, _ = claims["anon"].(bool)
	if strings.HasPrefix(sub, AnonymousPrefix) {
		p.Anonymous = true
	}
	return p, true
}
