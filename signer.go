package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenPurpose names the four independent signing domains. A token signed for
// one purpose never validates under another because each purpose has its own
// secret.
type TokenPurpose string

const (
	PurposeAccess  TokenPurpose = "access"
	PurposeRefresh TokenPurpose = "refresh"
	PurposeConfirm TokenPurpose = "confirm"
	PurposeReset   TokenPurpose = "reset"
)

// Signer signs and validates HS256 tokens for a single purpose.
type Signer struct {
	purpose TokenPurpose
	secret  []byte
	ttl     time.Duration
	issuer  string
	logger  Logger
}

// NewSigner creates a Signer for the given purpose.
func NewSigner(purpose TokenPurpose, secret string, ttl time.Duration, issuer string, logger Logger) *Signer {
	if logger == nil {
		logger = defLogger{}
	}
	return &Signer{
		purpose: purpose,
		secret:  []byte(secret),
		ttl:     ttl,
		issuer:  issuer,
		logger:  logger,
	}
}

// TTL returns the configured token lifetime.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Stamp fills the registered claims with issuer, issue time, and expiry,
// returning the expiry so callers can report it.
func (s *Signer) Stamp(rc *jwt.RegisteredClaims) time.Time {
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	rc.Issuer = s.issuer
	rc.IssuedAt = jwt.NewNumericDate(now)
	rc.ExpiresAt = jwt.NewNumericDate(expiresAt)
	return expiresAt
}

// SignClaims signs arbitrary JWT claims using the purpose's secret.
func (s *Signer) SignClaims(claims jwt.Claims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(s.secret)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses tokenString into claims and verifies signature, issuer, and
// expiry. Expired tokens return ErrTokenExpired; everything else that fails
// returns ErrTokenMalformed.
func (s *Signer) Validate(tokenString string, claims jwt.Claims) error {
	parserOptions := make([]jwt.ParserOption, 0, 1)
	if s.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			s.logger.Error("signer %s encountered unexpected signing method: %v", s.purpose, t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if !token.Valid {
		s.logger.Error("signer %s could not validate claims", s.purpose)
		return ErrUnableToDecodeSession
	}

	return nil
}

// SignerSet bundles one Signer per purpose, built from a TokenConfig.
type SignerSet struct {
	Access  *Signer
	Refresh *Signer
	Confirm *Signer
	Reset   *Signer
}

// NewSignerSet validates cfg and builds the four purpose signers.
func NewSignerSet(cfg TokenConfig, logger Logger) (*SignerSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &SignerSet{
		Access:  NewSigner(PurposeAccess, cfg.AccessSecret, cfg.AccessTTL, cfg.Issuer, logger),
		Refresh: NewSigner(PurposeRefresh, cfg.RefreshSecret, cfg.RefreshTTL, cfg.Issuer, logger),
		Confirm: NewSigner(PurposeConfirm, cfg.ConfirmSecret, cfg.ConfirmTTL, cfg.Issuer, logger),
		Reset:   NewSigner(PurposeReset, cfg.ResetSecret, cfg.ResetTTL, cfg.Issuer, logger),
	}, nil
}
