// Package github is a minimal client for the GitHub Actions secrets API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/systmms/ghsecrets/internal/github/contracts"
	"github.com/systmms/ghsecrets/internal/logging"
	"github.com/systmms/ghsecrets/internal/ratelimit"
)

const (
	DefaultBaseURL   = "https://api.github.com"
	DefaultTimeout   = 30 * time.Second
	APIVersion       = "2022-11-28"
	mediaType        = "application/vnd.github+json"
	maxMessageLength = 200
	maxBodyBytes     = 1 << 20
	defaultRLRetries = 3
)

// Config holds client settings
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	UserAgent string

	// Limiter is shared by every request of one batch. Required.
	Limiter *ratelimit.Limiter
	Logger  *logging.Logger

	// RateLimitRetries bounds how often a request rejected for rate
	// limiting is retried after waiting for the advertised reset.
	RateLimitRetries int

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// Client implements contracts.SecretsClient over net/http
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
	limiter    *ratelimit.Limiter
	logger     *logging.Logger
	rlRetries  int
	now        func() time.Time
}

// NewClient creates a client for the given API base URL
func NewClient(cfg Config) (*Client, error) {
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("github client requires a rate limiter")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("github client requires a token")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid GitHub API URL %q", baseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger.RedactValues(cfg.Token)

	retries := cfg.RateLimitRetries
	if retries <= 0 {
		retries = defaultRLRetries
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "ghsecrets"
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      cfg.Token,
		userAgent:  userAgent,
		limiter:    cfg.Limiter,
		logger:     logger,
		rlRetries:  retries,
		now:        time.Now,
	}, nil
}

// Host returns the API host, used as the keyring account name
func Host(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}

// GetPublicKey retrieves the repository public key
func (c *Client) GetPublicKey(ctx context.Context, owner, repo string) (*contracts.PublicKey, error) {
	var key contracts.PublicKey
	if _, err := c.do(ctx, "public key", http.MethodGet, secretsPath(owner, repo, "public-key"), nil, &key); err != nil {
		return nil, err
	}
	if key.KeyID == "" || key.Key == "" {
		return nil, &APIError{Op: "public key", Message: "response is missing key_id or key"}
	}
	return &key, nil
}

// GetSecret retrieves metadata for one secret
func (c *Client) GetSecret(ctx context.Context, owner, repo, name string) (*contracts.SecretMetadata, error) {
	var meta contracts.SecretMetadata
	if _, err := c.do(ctx, "probe", http.MethodGet, secretsPath(owner, repo, name), nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// PutSecret creates or updates a secret
func (c *Client) PutSecret(ctx context.Context, owner, repo, name string, secret contracts.EncryptedSecret) (bool, error) {
	body, err := json.Marshal(secret)
	if err != nil {
		return false, fmt.Errorf("failed to marshal update request: %w", err)
	}

	status, err := c.do(ctx, "update", http.MethodPut, secretsPath(owner, repo, name), body, nil)
	if err != nil {
		return false, err
	}
	return status == http.StatusCreated, nil
}

// RateLimit fetches the current core budget. GitHub does not count this
// call against the budget, so no permit is taken.
func (c *Client) RateLimit(ctx context.Context) (*contracts.RateLimitStatus, error) {
	var out struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Used      int   `json:"used"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}

	resp, err := c.send(ctx, http.MethodGet, "/rate_limit", nil)
	if err != nil {
		return nil, &APIError{Op: "rate limit", Err: err}
	}
	defer resp.Body.Close()
	c.limiter.Observe(resp.Header)

	if resp.StatusCode != http.StatusOK {
		return nil, c.responseError("rate limit", resp, readMessage(resp.Body))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode rate limit response: %w", err)
	}

	core := out.Resources.Core
	return &contracts.RateLimitStatus{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Used:      core.Used,
		Reset:     time.Unix(core.Reset, 0),
	}, nil
}

// do acquires a permit, performs the request and decodes a 2xx body into
// out. Rate-limit rejections update the limiter and are retried.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out interface{}) (int, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			if errors.Is(err, ratelimit.ErrBudgetExhausted) {
				return 0, &APIError{Op: op, Message: err.Error(), Err: fmt.Errorf("%w: %w", ErrRateLimited, err)}
			}
			return 0, err
		}

		resp, err := c.send(ctx, method, path, body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			return 0, &APIError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
		}

		c.limiter.Observe(resp.Header)
		c.logger.Debug("%s %s -> %d", method, path, resp.StatusCode)

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			status := resp.StatusCode
			err := decodeBody(resp.Body, out)
			resp.Body.Close()
			if err != nil {
				return status, fmt.Errorf("failed to decode %s response: %w", op, err)
			}
			return status, nil
		}

		message := readMessage(resp.Body)
		resp.Body.Close()

		if isRateLimitRejection(resp, message) {
			reset := ratelimit.RejectionReset(resp.Header, c.now())
			c.limiter.Throttle(0, reset)
			if attempt < c.rlRetries {
				c.logger.Warn("GitHub rate limit hit during %s, retrying after %s", op, reset.Format(time.Kitchen))
				continue
			}
			apiErr := c.responseError(op, resp, message)
			apiErr.Err = ErrRateLimited
			return resp.StatusCode, apiErr
		}

		return resp.StatusCode, c.responseError(op, resp, message)
	}
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", mediaType)
	req.Header.Set("X-GitHub-Api-Version", APIVersion)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) responseError(op string, resp *http.Response, message string) *APIError {
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    logging.Redact(message, []string{c.token}),
		Err:        sentinelFor(resp.StatusCode),
	}
}

// readMessage extracts the "message" field of a GitHub error body. Other
// fields are dropped so provider output is never echoed wholesale.
func readMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}

	msg := strings.TrimSpace(body.Message)
	if len(msg) > maxMessageLength {
		msg = msg[:maxMessageLength] + "..."
	}
	return msg
}

func decodeBody(r io.Reader, out interface{}) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(r, maxBodyBytes))
		return nil
	}
	return json.NewDecoder(io.LimitReader(r, maxBodyBytes)).Decode(out)
}

func secretsPath(owner, repo, leaf string) string {
	return fmt.Sprintf("/repos/%s/%s/actions/secrets/%s",
		url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(leaf))
}

// Ensure Client implements contracts.SecretsClient
var _ contracts.SecretsClient = (*Client)(nil)
