package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	devIssuer   = "hairguard-dev"
	devTokenTTL = time.Hour
)

// devNamespace derives stable dev user ids from email addresses.
var devNamespace = uuid.MustParse("3f5b1f0e-6c1a-4f38-9a53-6a1d2c1e7b42")

type devClaims struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// DevVerifier accepts HS256 tokens minted by DevProvider with the same secret.
type DevVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewDevVerifier returns a verifier for secret.
func NewDevVerifier(secret string) *DevVerifier {
	return &DevVerifier{secret: []byte(secret), now: time.Now}
}

// Verify implements Verifier.
func (v *DevVerifier) Verify(_ context.Context, token string) (string, error) {
	var claims devClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(devIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.Subject, nil
}

// DevUID is the user id DevProvider assigns to an email address.
func DevUID(email string) string {
	return uuid.NewSHA1(devNamespace, []byte(strings.ToLower(strings.TrimSpace(email)))).String()
}

// DevProvider signs users in locally, without a password check, and mints
// tokens DevVerifier accepts. It is meant for local development only.
type DevProvider struct {
	secret      []byte
	sessionPath string
	now         func() time.Time

	mu   sync.RWMutex
	user *User

	listeners listeners
	tokens    *TokenSource
}

// NewDevProvider restores any session saved at sessionPath.
func NewDevProvider(secret, sessionPath string) (*DevProvider, error) {
	p := &DevProvider{secret: []byte(secret), sessionPath: sessionPath, now: time.Now}
	p.tokens = NewTokenSource(p.mint)

	s, err := loadSession(sessionPath)
	if err != nil {
		return nil, err
	}
	if s != nil {
		u := s.User
		p.user = &u
	}
	return p, nil
}

func (p *DevProvider) mint(context.Context) (string, time.Time, error) {
	u := p.CurrentUser()
	if u == nil {
		return "", time.Time{}, ErrNoUser
	}
	now := p.now()
	expiry := now.Add(devTokenTTL)
	claims := devClaims{
		Email:       u.Email,
		DisplayName: u.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.UID,
			Issuer:    devIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign dev token: %w", err)
	}
	return signed, expiry, nil
}

// Subscribe implements Provider.
func (p *DevProvider) Subscribe(fn func(*User)) func() {
	return p.listeners.subscribe(p.CurrentUser(), fn)
}

// CurrentUser implements Provider.
func (p *DevProvider) CurrentUser() *User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return nil
	}
	u := *p.user
	return &u
}

// IDToken implements Provider.
func (p *DevProvider) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	if p.CurrentUser() == nil {
		return "", ErrNoUser
	}
	return p.tokens.Token(ctx, forceRefresh)
}

// SignIn implements Provider. The password is ignored.
func (p *DevProvider) SignIn(_ context.Context, creds Credentials) (*User, error) {
	if strings.TrimSpace(creds.Email) == "" {
		return nil, fmt.Errorf("email is required")
	}
	u := &User{UID: DevUID(creds.Email), Email: creds.Email, DisplayName: creds.DisplayName}

	p.mu.Lock()
	p.user = u
	p.mu.Unlock()
	p.tokens.Reset()

	if err := saveSession(p.sessionPath, &sessionFile{User: *u}); err != nil {
		return nil, err
	}
	p.listeners.notify(p.CurrentUser())
	return p.CurrentUser(), nil
}

// SignOut implements Provider.
func (p *DevProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.user = nil
	p.mu.Unlock()
	p.tokens.Reset()

	if err := saveSession(p.sessionPath, nil); err != nil {
		return err
	}
	p.listeners.notify(nil)
	return nil
}
