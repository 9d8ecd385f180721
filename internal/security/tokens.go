package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMalformed is returned when a token cannot be decoded.
	ErrMalformed = errors.New("token malformed")
	// ErrInvalidSignature is returned when a token was tampered with or signed by another key.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired is returned when the exp claim is not after now.
	ErrExpired = errors.New("token expired")
	// ErrMissingSecret is returned by NewTokenProvider when no signing key is configured.
	ErrMissingSecret = errors.New("token signing secret is empty")
)

// Claims are the JWT claims carried by a login token. UserID is serialized as
// a string under "userId" so tokens minted by older clients still decode.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64             `json:"userId,string"`
	Extra  map[string]string `json:"ext,omitempty"`
}

// TokenProvider issues and verifies HS256 login tokens.
type TokenProvider struct {
	secret     []byte
	issuer     string
	defaultTTL time.Duration
	nowF       func() time.Time
}

// NewTokenProvider returns a TokenProvider signing with secret. defaultTTL is
// used when Issue is called with ttl <= 0.
func NewTokenProvider(secret []byte, issuer string, defaultTTL time.Duration) (*TokenProvider, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &TokenProvider{
		secret:     secret,
		issuer:     issuer,
		defaultTTL: defaultTTL,
		nowF:       time.Now,
	}, nil
}

// DefaultTTL returns the lifetime applied when Issue is given no ttl.
func (p *TokenProvider) DefaultTTL() time.Duration {
	return p.defaultTTL
}

// Issue signs a token for userID. Extra claims are copied verbatim.
// Returns the token and its expiration time.
func (p *TokenProvider) Issue(userID int64, extra map[string]string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = p.defaultTTL
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.nowF().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
		Extra:  extra,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify checks signature and expiry and returns the claims.
// Errors are ErrMalformed, ErrInvalidSignature or ErrExpired.
func (p *TokenProvider) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMalformed
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.nowF),
	)
	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if p.issuer != "" && claims.Issuer != p.issuer {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

// IsExpired reports whether tokenString is unusable for any reason.
func (p *TokenProvider) IsExpired(tokenString string) bool {
	_, err := p.Verify(tokenString)
	return err != nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, ErrInvalidSignature):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}

func generateJTI() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
