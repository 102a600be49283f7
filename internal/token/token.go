// Package token issues and verifies the short-lived URI-signing tokens that
// gate playback of packaged assets. A token is a capability for one asset's
// path prefix over a bounded time window; there is no revocation, only
// natural expiry.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoSigningSecret is returned when no signing secret is configured.
	// This is a hard failure; an unsigned or default-secret token is never
	// produced.
	ErrNoSigningSecret = errors.New("signing secret not configured")

	// ErrInvalidToken is returned for malformed tokens, forged signatures,
	// and issuer/audience mismatches.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a structurally valid, correctly
	// signed token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrKeyMismatch is returned when the key id embedded in the token
	// header is not the configured primary key. It is detected before any
	// cryptographic verification.
	ErrKeyMismatch = errors.New("token signed with unexpected key id")
)

// DefaultHostPattern is the hostname portion of the path constraint when no
// hostname is supplied: any host.
const DefaultHostPattern = "[^/]*"

// cdniVersion is the CDN interface version marker; relying parties reject
// anything other than 1 (or absent).
const cdniVersion = 1

// signedTokenTransport enables cookie-based token renewal at the edge.
const signedTokenTransport = 1

// Claims is the signed claim set. Alongside the registered JWT claims it
// carries the Apache Traffic Server URI Signing fields: cdniuc constrains
// which request paths the token authorizes, cdnistt/cdniets control silent
// renewal before expiry.
type Claims struct {
	jwt.RegisteredClaims
	Version        int    `json:"cdniv"`
	URIConstraint  string `json:"cdniuc"`
	TokenTransport int    `json:"cdnistt"`
	RenewalSeconds int64  `json:"cdniets"`
}

// Config carries the read-only signing configuration. Secret is required;
// everything else has a sensible default applied by NewAuthority.
type Config struct {
	Issuer        string
	Audience      string
	KeyID         string
	Secret        string
	Algorithm     string
	Lifetime      time.Duration
	RenewalWindow time.Duration
}

// Options overrides per-issuance parameters. Zero values fall back to the
// authority's configured defaults.
type Options struct {
	ExpiresIn       time.Duration
	RenewalDuration time.Duration
	Hostname        string
	KeyID           string
	Issuer          string
	Audience        string
}

// Authority issues and verifies tokens with a shared signing secret.
// Issuance and verification are pure computations over the immutable config;
// an Authority is safe for concurrent use.
type Authority struct {
	issuer        string
	audience      string
	keyID         string
	secret        []byte
	method        jwt.SigningMethod
	lifetime      time.Duration
	renewalWindow time.Duration

	now func() time.Time
}

// NewAuthority validates cfg and returns an Authority. A missing secret
// fails here, at construction time, so no caller ever holds an authority
// that cannot sign.
func NewAuthority(cfg Config) (*Authority, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSigningSecret
	}

	alg := cfg.Algorithm
	if alg == "" {
		alg = "HS256"
	}
	method := jwt.GetSigningMethod(alg)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}

	a := &Authority{
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		keyID:         cfg.KeyID,
		secret:        []byte(cfg.Secret),
		method:        method,
		lifetime:      cfg.Lifetime,
		renewalWindow: cfg.RenewalWindow,
		now:           time.Now,
	}
	if a.issuer == "" {
		a.issuer = "CDN URI Authority"
	}
	if a.audience == "" {
		a.audience = "mycdn"
	}
	if a.keyID == "" {
		a.keyID = "primary-key-2024"
	}
	if a.lifetime <= 0 {
		a.lifetime = time.Hour
	}
	if a.renewalWindow <= 0 {
		a.renewalWindow = 5 * time.Minute
	}
	return a, nil
}

// Issue signs a token authorizing fetches under the asset's path prefix.
// The constraint pattern must agree character-for-character with the
// directory layout the packaging step produces for assetID.
func (a *Authority) Issue(assetID string, opts Options) (string, error) {
	issuer := opts.Issuer
	if issuer == "" {
		issuer = a.issuer
	}
	audience := opts.Audience
	if audience == "" {
		audience = a.audience
	}
	keyID := opts.KeyID
	if keyID == "" {
		keyID = a.keyID
	}
	expiresIn := opts.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = a.lifetime
	}
	renewal := opts.RenewalDuration
	if renewal <= 0 {
		renewal = a.renewalWindow
	}
	hostname := opts.Hostname
	if hostname == "" {
		hostname = DefaultHostPattern
	}

	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "manifest:" + assetID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
		Version:        cdniVersion,
		URIConstraint:  PathConstraint(hostname, assetID),
		TokenTransport: signedTokenTransport,
		RenewalSeconds: int64(renewal.Seconds()),
	}

	tok := jwt.NewWithClaims(a.method, claims)
	tok.Header["kid"] = keyID

	signed, err := tok.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify decodes and validates a previously issued token, returning the
// claims on success. Failure modes are distinguishable through errors.Is:
// ErrKeyMismatch (wrong key id, rejected before any signature check),
// ErrTokenExpired (correctly signed but past exp), and ErrInvalidToken
// (everything else: malformed, forged, wrong issuer or audience).
func (a *Authority) Verify(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{a.method.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(a.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)

	claims := &Claims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid != a.keyID {
			return nil, fmt.Errorf("%w: got %q, want %q", ErrKeyMismatch, kid, a.keyID)
		}
		return a.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrKeyMismatch):
			return nil, err
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %s", ErrTokenExpired, err)
		default:
			return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
		}
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// PathConstraint builds the cdniuc pattern anchoring a token to one asset's
// directory: any scheme, the given hostname pattern, and only streaming file
// types under /videos/<assetID>/.
func PathConstraint(hostname, assetID string) string {
	if strings.TrimSpace(hostname) == "" {
		hostname = DefaultHostPattern
	}
	return fmt.Sprintf(`regex:https?://%s/videos/%s/.*\.(ts|m3u8|mpd|m4s)`, hostname, assetID)
}
