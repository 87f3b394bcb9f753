package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// jsonrpcPath is Odoo's JSON-RPC endpoint, serving the same common/object
// services as /xmlrpc/2 with JSON framing.
const jsonrpcPath = "/jsonrpc"

// ErrAuthFailed is returned when the backend rejects the credentials
// (authenticate answered false).
var ErrAuthFailed = errors.New("odoo: authentication failed")

// reconnectMarkers are substrings of backend errors that indicate a stale
// authentication; one reconnect is attempted before the error surfaces.
var reconnectMarkers = []string{"session expired", "not logged"}

// Config carries the connection settings for one Odoo instance.
type Config struct {
	URL      string
	Database string
	Username string
	Password string
	APIKey   string // preferred over Password when set
}

// Client talks to an Odoo server over its JSON-RPC endpoint. It implements
// usecase.OdooGateway. Safe for concurrent use: the only mutable state is
// the cached uid.
type Client struct {
	endpoint string
	db       string
	username string
	password string
	apiKey   string

	client *http.Client
	logger *slog.Logger

	mu  sync.RWMutex
	uid int

	reqID atomic.Int64
}

// New creates a Client. A nil httpClient falls back to http.DefaultClient.
// The URL may omit the scheme; https is assumed then.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint: normalizeURL(cfg.URL) + jsonrpcPath,
		db:       cfg.Database,
		username: cfg.Username,
		password: cfg.Password,
		apiKey:   cfg.APIKey,
		client:   httpClient,
		logger:   logger.With("component", "odoo_client"),
	}
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

// secret returns the credential used for RPC calls: the API key when
// configured, the login password otherwise.
func (c *Client) secret() string {
	if c.apiKey != "" {
		return c.apiKey
	}
	return c.password
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string        `json:"service"`
	Method  string        `json:"method"`
	Args    []interface{} `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcFault       `json:"error"`
}

// rpcFault is Odoo's JSON-RPC error envelope. The useful message usually
// lives in data.message; the top-level message is a generic banner.
type rpcFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
		Debug   string `json:"debug"`
	} `json:"data"`
}

func (f *rpcFault) Error() string {
	if f.Data.Message != "" {
		return f.Data.Message
	}
	return f.Message
}

// call performs one JSON-RPC round trip against the given service.
func (c *Client) call(ctx context.Context, service, method string, args []interface{}) (json.RawMessage, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.reqID.Add(1),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("odoo: marshal %s.%s request: %w", service, method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("odoo: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("odoo: %s.%s request failed: %w", service, method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("odoo: read %s.%s response: %w", service, method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("odoo: %s.%s: HTTP %d: %s", service, method, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded rpcResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("odoo: decode %s.%s response: %w", service, method, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("odoo: %s.%s: %w", service, method, decoded.Error)
	}
	return decoded.Result, nil
}

// Connect authenticates and caches the uid. Calling it again re-authenticates.
func (c *Client) Connect(ctx context.Context) error {
	raw, err := c.call(ctx, "common", "authenticate", []interface{}{c.db, c.username, c.secret(), map[string]interface{}{}})
	if err != nil {
		return err
	}

	// authenticate answers the uid on success and false on bad credentials.
	var uid int
	if err := json.Unmarshal(raw, &uid); err != nil || uid <= 0 {
		c.logger.Error("Authentication rejected.", slog.String("database", c.db), slog.String("username", c.username))
		return ErrAuthFailed
	}

	c.mu.Lock()
	c.uid = uid
	c.mu.Unlock()
	c.logger.Info("Connected to Odoo.", slog.String("database", c.db), slog.Int("uid", uid))
	return nil
}

// IsConnected reports whether a uid is cached from a successful Connect.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uid != 0
}

func (c *Client) currentUID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uid
}

func (c *Client) reset() {
	c.mu.Lock()
	c.uid = 0
	c.mu.Unlock()
}

// ServerVersion returns the backend's version descriptor. Works without
// authentication.
func (c *Client) ServerVersion(ctx context.Context) (map[string]interface{}, error) {
	raw, err := c.call(ctx, "common", "version", []interface{}{})
	if err != nil {
		return nil, err
	}
	var version map[string]interface{}
	if err := json.Unmarshal(raw, &version); err != nil {
		return nil, fmt.Errorf("odoo: decode version: %w", err)
	}
	return version, nil
}

func isSessionExpired(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range reconnectMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ExecuteKw performs a generic model method call, connecting lazily on
// first use and reconnecting once when the backend reports a stale session.
func (c *Client) ExecuteKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (json.RawMessage, error) {
	if !c.IsConnected() {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}
	if args == nil {
		args = []interface{}{}
	}
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}

	do := func() (json.RawMessage, error) {
		return c.call(ctx, "object", "execute_kw",
			[]interface{}{c.db, c.currentUID(), c.secret(), model, method, args, kwargs})
	}

	raw, err := do()
	if err != nil && isSessionExpired(err) {
		c.logger.Warn("Backend rejected session, reconnecting.", slog.String("model", model), slog.Any("error", err))
		c.reset()
		if cerr := c.Connect(ctx); cerr != nil {
			return nil, fmt.Errorf("odoo: reconnect failed: %w", cerr)
		}
		raw, err = do()
	}
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", model, method, err)
	}
	return raw, nil
}

// SearchRead queries records matching domain. Zero limit/offset and empty
// order are omitted from the call, matching the backend's defaults.
func (c *Client) SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, limit, offset int, order string) ([]map[string]interface{}, error) {
	if domain == nil {
		domain = []interface{}{}
	}
	kwargs := map[string]interface{}{}
	if len(fields) > 0 {
		kwargs["fields"] = fields
	}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	if offset > 0 {
		kwargs["offset"] = offset
	}
	if order != "" {
		kwargs["order"] = order
	}

	raw, err := c.ExecuteKw(ctx, model, "search_read", []interface{}{domain}, kwargs)
	if err != nil {
		return nil, err
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("odoo: decode %s search_read result: %w", model, err)
	}
	return records, nil
}

// SearchCount counts records matching domain.
func (c *Client) SearchCount(ctx context.Context, model string, domain []interface{}) (int, error) {
	if domain == nil {
		domain = []interface{}{}
	}
	raw, err := c.ExecuteKw(ctx, model, "search_count", []interface{}{domain}, nil)
	if err != nil {
		return 0, err
	}
	var count int
	if err := json.Unmarshal(raw, &count); err != nil {
		return 0, fmt.Errorf("odoo: decode %s search_count result: %w", model, err)
	}
	return count, nil
}
