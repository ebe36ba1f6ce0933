package drive

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/seoulfie/drivegallery/internal/models"
)

const (
	scopeReadonly  = "https://www.googleapis.com/auth/drive.readonly"
	grantTypeJWT   = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionLife  = time.Hour
	expiryHeadroom = time.Minute
)

// credentials is the subset of a service-account JSON key file we need.
type credentials struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

// tokenSource exchanges a self-signed service-account assertion for an
// access token and caches it until shortly before expiry.
type tokenSource struct {
	creds      credentials
	key        *rsa.PrivateKey
	httpClient *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func newTokenSource(credentialsFile string, httpClient *http.Client) (*tokenSource, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, &models.AuthError{Err: fmt.Errorf("read credentials: %w", err)}
	}

	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, &models.AuthError{Err: fmt.Errorf("parse credentials: %w", err)}
	}
	if creds.Type != "service_account" {
		return nil, &models.AuthError{Err: fmt.Errorf("unsupported credential type %q", creds.Type)}
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, &models.AuthError{Err: fmt.Errorf("credentials missing client_email or private_key")}
	}
	if creds.TokenURI == "" {
		creds.TokenURI = "https://oauth2.googleapis.com/token"
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey))
	if err != nil {
		return nil, &models.AuthError{Err: fmt.Errorf("parse private key: %w", err)}
	}

	return &tokenSource{
		creds:      creds,
		key:        key,
		httpClient: httpClient,
	}, nil
}

// Token returns a valid access token, refreshing if the cached one is
// within the headroom window of expiring.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expiry.Add(-expiryHeadroom)) {
		return ts.token, nil
	}

	assertion, err := ts.signAssertion()
	if err != nil {
		return "", &models.AuthError{Err: fmt.Errorf("sign assertion: %w", err)}
	}

	form := url.Values{
		"grant_type": {grantTypeJWT},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.creds.TokenURI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &models.AuthError{
			Err: fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", &models.AuthError{Err: fmt.Errorf("token endpoint returned no access_token")}
	}

	ts.token = tok.AccessToken
	ts.expiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return ts.token, nil
}

func (ts *tokenSource) signAssertion() (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   ts.creds.ClientEmail,
		"scope": scopeReadonly,
		"aud":   ts.creds.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLife).Unix(),
	})
	if ts.creds.PrivateKeyID != "" {
		tok.Header["kid"] = ts.creds.PrivateKeyID
	}
	return tok.SignedString(ts.key)
}

// invalidate drops the cached token so the next call re-authenticates.
func (ts *tokenSource) invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = ""
	ts.expiry = time.Time{}
}
