package drive

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/seoulfie/drivegallery/internal/models"
)

// writeCredentials generates a throwaway service-account key file pointed
// at the given token endpoint.
func writeCredentials(t *testing.T, tokenURL string) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	creds := map[string]string{
		"type":           "service_account",
		"client_email":   "gallery@example.iam.gserviceaccount.com",
		"private_key":    string(keyPEM),
		"private_key_id": "test-key-id",
		"token_uri":      tokenURL,
	}
	data, err := json.Marshal(creds)
	if err != nil {
		t.Fatalf("marshal credentials: %v", err)
	}

	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	return path
}

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if g := r.Form.Get("grant_type"); g != grantTypeJWT {
			t.Errorf("grant_type = %q", g)
		}
		if r.Form.Get("assertion") == "" {
			t.Error("missing assertion")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	}))
}

func newTestClient(t *testing.T, api http.Handler) *Client {
	t.Helper()

	tokenSrv := newTokenServer(t)
	t.Cleanup(tokenSrv.Close)
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	client, err := New(Config{
		CredentialsFile: writeCredentials(t, tokenSrv.URL),
		BaseURL:         apiSrv.URL,
		TokenURL:        tokenSrv.URL,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestFolderName(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/root-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("authorization = %q", auth)
		}
		json.NewEncoder(w).Encode(map[string]string{"name": "Seoulfie Studio"})
	}))

	name, err := client.FolderName(context.Background(), "root-1")
	if err != nil {
		t.Fatalf("FolderName: %v", err)
	}
	if name != "Seoulfie Studio" {
		t.Errorf("name = %q", name)
	}
}

func TestListFolders(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		wantQ := "'parent-1' in parents and mimeType='application/vnd.google-apps.folder' and trashed=false"
		if got := q.Get("q"); got != wantQ {
			t.Errorf("q = %q, want %q", got, wantQ)
		}
		if got := q.Get("orderBy"); got != "name" {
			t.Errorf("orderBy = %q", got)
		}
		if got := q.Get("pageSize"); got != "1000" {
			t.Errorf("pageSize = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]string{
				{"id": "f1", "name": "2024-01-10 Kim Family"},
				{"id": "f2", "name": "2024-02-14 Lee Wedding"},
			},
		})
	}))

	folders, err := client.ListFolders(context.Background(), "parent-1")
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("len = %d", len(folders))
	}
	if folders[0].ID != "f1" || folders[0].Name != "2024-01-10 Kim Family" {
		t.Errorf("folders[0] = %+v", folders[0])
	}
}

func TestListImages(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		wantQ := "'sess-1' in parents and (mimeType contains 'image/') and trashed=false"
		if got := q.Get("q"); got != wantQ {
			t.Errorf("q = %q, want %q", got, wantQ)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]string{
				{"id": "i1", "name": "IMG_0001.jpg", "mimeType": "image/jpeg"},
			},
		})
	}))

	images, err := client.ListImages(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("len = %d", len(images))
	}
	if images[0].MIMEType != "image/jpeg" {
		t.Errorf("images[0] = %+v", images[0])
	}
}

func TestDownloadBytes(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/img-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("alt"); got != "media" {
			t.Errorf("alt = %q", got)
		}
		w.Write(payload)
	}))

	data, err := client.DownloadBytes(context.Background(), "img-1")
	if err != nil {
		t.Fatalf("DownloadBytes: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("data = %v", data)
	}
}

func TestNotFoundMapsToErrNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 404}}`, http.StatusNotFound)
	}))

	_, err := client.FolderName(context.Background(), "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestForbiddenMapsToErrNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient permissions", http.StatusForbidden)
	}))

	_, err := client.FolderName(context.Background(), "locked")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUnauthorizedMapsToAuthError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))

	_, err := client.FolderName(context.Background(), "root-1")
	var authErr *models.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	// The cached token must be dropped so the next call re-authenticates.
	if client.tokens.token != "" {
		t.Error("token not invalidated after 401")
	}
}

func TestNewRejectsBadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"type": "authorized_user"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := New(Config{CredentialsFile: path})
	var authErr *models.AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("err = %v, want AuthError", err)
	}
}

func TestTokenCachedAcrossCalls(t *testing.T) {
	tokenCalls := 0
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	}))
	defer tokenSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"name": "x"})
	}))
	defer apiSrv.Close()

	client, err := New(Config{
		CredentialsFile: writeCredentials(t, tokenSrv.URL),
		BaseURL:         apiSrv.URL,
		TokenURL:        tokenSrv.URL,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := client.FolderName(context.Background(), "r"); err != nil {
			t.Fatalf("FolderName: %v", err)
		}
	}
	if tokenCalls != 1 {
		t.Errorf("token exchanges = %d, want 1", tokenCalls)
	}
}

func TestEscapeQuery(t *testing.T) {
	if got := escapeQuery(`it's\here`); got != `it\'s\\here` {
		t.Errorf("escapeQuery = %q", got)
	}
}
