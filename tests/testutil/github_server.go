package testutil

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/nacl/box"
)

// GitHubServer emulates the Actions secrets endpoints of the GitHub REST
// API. Secrets are stored sealed; tests open them with OpenSecret.
//
// Example usage:
//
//	srv := NewGitHubServer(t, "ghp_...")
//	srv.AddRepository("acme", "api")
//	// point the client at srv.URL
//	value, ok := srv.OpenSecret("acme", "api", "DB_PASSWORD")
type GitHubServer struct {
	*httptest.Server

	Token string

	mu        sync.Mutex
	repos     map[string]*serverRepo
	limit     int
	remaining int
	reset     time.Time
	requests  []string
}

type serverRepo struct {
	keyID   string
	public  *[32]byte
	private *[32]byte
	secrets map[string]storedSecret
}

type storedSecret struct {
	sealed  []byte
	keyID   string
	created time.Time
	updated time.Time
}

// NewGitHubServer starts a server accepting token. It is closed when the
// test ends.
func NewGitHubServer(t *testing.T, token string) *GitHubServer {
	t.Helper()

	s := &GitHubServer{
		Token:     token,
		repos:     make(map[string]*serverRepo),
		limit:     5000,
		remaining: 5000,
		reset:     time.Now().Add(time.Hour),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// AddRepository creates a repository with a fresh key pair.
func (s *GitHubServer) AddRepository(owner, name string) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[owner+"/"+name] = &serverRepo{
		keyID:   fmt.Sprintf("%d", len(s.repos)+1000),
		public:  pub,
		private: priv,
		secrets: make(map[string]storedSecret),
	}
}

// SetSecret stores an existing secret with the given update time.
func (s *GitHubServer) SetSecret(owner, name, key string, updated time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo := s.repos[owner+"/"+name]
	repo.secrets[key] = storedSecret{keyID: repo.keyID, created: updated, updated: updated}
}

// SetRateLimit sets the budget advertised in response headers.
func (s *GitHubServer) SetRateLimit(limit, remaining int, reset time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit, s.remaining, s.reset = limit, remaining, reset
}

// OpenSecret decrypts a stored secret with the repository private key.
func (s *GitHubServer) OpenSecret(owner, name, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[owner+"/"+name]
	if !ok {
		return nil, false
	}
	secret, ok := repo.secrets[key]
	if !ok || secret.sealed == nil {
		return nil, false
	}
	return box.OpenAnonymous(nil, secret.sealed, repo.public, repo.private)
}

// Requests returns "METHOD path" for every request received.
func (s *GitHubServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *GitHubServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	if r.Header.Get("Authorization") != "Bearer "+s.Token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}

	if r.URL.Path == "/rate_limit" {
		core := map[string]int64{
			"limit":     int64(s.limit),
			"remaining": int64(s.remaining),
			"used":      int64(s.limit - s.remaining),
			"reset":     s.reset.Unix(),
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"resources": map[string]interface{}{"core": core}})
		return
	}

	if s.remaining <= 0 {
		s.rateHeaders(w)
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "API rate limit exceeded"})
		return
	}
	s.remaining--
	s.rateHeaders(w)

	// /repos/{owner}/{repo}/actions/secrets/{leaf}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) != 6 || parts[0] != "repos" || parts[3] != "actions" || parts[4] != "secrets" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	repo, ok := s.repos[parts[1]+"/"+parts[2]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	leaf := parts[5]

	switch {
	case leaf == "public-key" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{
			"key_id": repo.keyID,
			"key":    base64.StdEncoding.EncodeToString(repo.public[:]),
		})
	case r.Method == http.MethodGet:
		secret, ok := repo.secrets[leaf]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"name":       leaf,
			"created_at": secret.created.UTC().Format(time.RFC3339),
			"updated_at": secret.updated.UTC().Format(time.RFC3339),
		})
	case r.Method == http.MethodPut:
		s.putSecret(w, r, repo, leaf)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	}
}

func (s *GitHubServer) putSecret(w http.ResponseWriter, r *http.Request, repo *serverRepo, name string) {
	var body struct {
		EncryptedValue string `json:"encrypted_value"`
		KeyID          string `json:"key_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}
	if body.KeyID != repo.keyID {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid key_id"})
		return
	}
	sealed, err := base64.StdEncoding.DecodeString(body.EncryptedValue)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid encrypted_value"})
		return
	}
	if _, ok := box.OpenAnonymous(nil, sealed, repo.public, repo.private); !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Bad encryption"})
		return
	}

	now := time.Now()
	existing, existed := repo.secrets[name]
	created := now
	if existed {
		created = existing.created
	}
	repo.secrets[name] = storedSecret{sealed: sealed, keyID: body.KeyID, created: created, updated: now}

	if existed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *GitHubServer) rateHeaders(w http.ResponseWriter) {
	remaining := s.remaining
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(s.reset.Unix(), 10))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
