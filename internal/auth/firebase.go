package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// FirebaseVerifier checks Firebase ID tokens with the Admin SDK.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier initialises a Firebase app for projectID. Credentials
// come from the environment (GOOGLE_APPLICATION_CREDENTIALS or metadata).
func NewFirebaseVerifier(ctx context.Context, projectID string, opts ...option.ClientOption) (*FirebaseVerifier, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify implements Verifier.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (string, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return tok.UID, nil
}

const (
	identityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	secureTokenURL     = "https://securetoken.googleapis.com/v1"
)

// FirebaseProvider signs in with email and password against the Firebase
// Auth REST API and refreshes ID tokens with the stored refresh token.
type FirebaseProvider struct {
	apiKey      string
	sessionPath string
	httpClient  *http.Client
	now         func() time.Time

	// overridable for tests
	identityURL string
	tokenURL    string

	mu           sync.RWMutex
	user         *User
	refreshToken string

	listeners listeners
	tokens    *TokenSource
}

// FirebaseOption configures a FirebaseProvider.
type FirebaseOption func(*FirebaseProvider)

// WithHTTPClient sets the client used for REST calls.
func WithHTTPClient(c *http.Client) FirebaseOption {
	return func(p *FirebaseProvider) { p.httpClient = c }
}

// WithEndpoints points the provider at other identity and token endpoints.
func WithEndpoints(identityURL, tokenURL string) FirebaseOption {
	return func(p *FirebaseProvider) {
		p.identityURL = strings.TrimRight(identityURL, "/")
		p.tokenURL = strings.TrimRight(tokenURL, "/")
	}
}

// NewFirebaseProvider restores any session saved at sessionPath.
func NewFirebaseProvider(apiKey, sessionPath string, opts ...FirebaseOption) (*FirebaseProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("firebase API key is required")
	}
	p := &FirebaseProvider{
		apiKey:      apiKey,
		sessionPath: sessionPath,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
		identityURL: identityToolkitURL,
		tokenURL:    secureTokenURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.tokens = NewTokenSource(p.refresh)

	s, err := loadSession(sessionPath)
	if err != nil {
		return nil, err
	}
	if s != nil {
		u := s.User
		p.user = &u
		p.refreshToken = s.RefreshToken
		p.tokens.Seed(s.IDToken, s.Expiry)
	}
	return p, nil
}

// Subscribe implements Provider.
func (p *FirebaseProvider) Subscribe(fn func(*User)) func() {
	return p.listeners.subscribe(p.CurrentUser(), fn)
}

// CurrentUser implements Provider.
func (p *FirebaseProvider) CurrentUser() *User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return nil
	}
	u := *p.user
	return &u
}

// IDToken implements Provider.
func (p *FirebaseProvider) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	if p.CurrentUser() == nil {
		return "", ErrNoUser
	}
	return p.tokens.Token(ctx, forceRefresh)
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// SignIn implements Provider.
func (p *FirebaseProvider) SignIn(ctx context.Context, creds Credentials) (*User, error) {
	body, err := json.Marshal(map[string]any{
		"email":             creds.Email,
		"password":          creds.Password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	endpoint := p.identityURL + "/accounts:signInWithPassword?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp signInResponse
	if err := p.do(req, &resp); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	u := &User{UID: resp.LocalID, Email: resp.Email, DisplayName: resp.DisplayName}
	expiry := p.now().Add(expiresIn(resp.ExpiresIn))

	p.mu.Lock()
	p.user = u
	p.refreshToken = resp.RefreshToken
	p.mu.Unlock()
	p.tokens.Seed(resp.IDToken, expiry)

	if err := p.persist(resp.IDToken, expiry); err != nil {
		return nil, err
	}
	p.listeners.notify(p.CurrentUser())
	return p.CurrentUser(), nil
}

// SignOut implements Provider.
func (p *FirebaseProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.user = nil
	p.refreshToken = ""
	p.mu.Unlock()
	p.tokens.Reset()

	if err := saveSession(p.sessionPath, nil); err != nil {
		return err
	}
	p.listeners.notify(nil)
	return nil
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

func (p *FirebaseProvider) refresh(ctx context.Context) (string, time.Time, error) {
	p.mu.RLock()
	refreshToken := p.refreshToken
	p.mu.RUnlock()
	if refreshToken == "" {
		return "", time.Time{}, ErrNoUser
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	endpoint := p.tokenURL + "/token?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp refreshResponse
	if err := p.do(req, &resp); err != nil {
		return "", time.Time{}, fmt.Errorf("refresh token: %w", err)
	}
	expiry := p.now().Add(expiresIn(resp.ExpiresIn))

	p.mu.Lock()
	if resp.RefreshToken != "" {
		p.refreshToken = resp.RefreshToken
	}
	p.mu.Unlock()

	if err := p.persist(resp.IDToken, expiry); err != nil {
		return "", time.Time{}, err
	}
	return resp.IDToken, expiry, nil
}

func (p *FirebaseProvider) persist(idToken string, expiry time.Time) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return nil
	}
	return saveSession(p.sessionPath, &sessionFile{
		User:         *p.user,
		IDToken:      idToken,
		RefreshToken: p.refreshToken,
		Expiry:       expiry,
	})
}

// do sends req and decodes a JSON response. Firebase reports failures as
// {"error": {"message": "..."}}.
func (p *FirebaseProvider) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("API error: %d - %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("API error: %d - %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

func expiresIn(s string) time.Duration {
	secs, err := strconv.Atoi(s)
	if err != nil || secs <= 0 {
		return time.Hour
	}
	return time.Duration(secs) * time.Second
}
