package hostrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dusk-indust/esimctl/internal/capability"
	"github.com/dusk-indust/esimctl/internal/telephony"
)

// Compile-time interface checks. The client claims every optional
// primitive; the server answers unsupported for those its host lacks.
var (
	_ telephony.Host                      = (*Client)(nil)
	_ telephony.PermissionChecker         = (*Client)(nil)
	_ telephony.AvailableEnumerator       = (*Client)(nil)
	_ telephony.AccessibleEnumerator      = (*Client)(nil)
	_ telephony.AllEnumerator             = (*Client)(nil)
	_ telephony.PreferredDataSetter       = (*Client)(nil)
	_ telephony.Switcher                  = (*Client)(nil)
	_ telephony.DefaultSubscriptionSetter = (*Client)(nil)
	_ telephony.Enabler                   = (*Client)(nil)
)

// Client is a telephony host reached over HTTP/JSON-RPC.
type Client struct {
	endpoint  string
	http      *http.Client
	requestID atomic.Int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a Client for the JSON-RPC endpoint at url.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: url,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Level implements telephony.Host.
func (c *Client) Level(ctx context.Context) (capability.Level, error) {
	var res levelResult
	if err := c.call(ctx, telephony.OpLevel, nil, &res); err != nil {
		return capability.LevelNone, err
	}
	level, err := capability.ParseLevel(res.Level)
	if err != nil {
		return capability.LevelNone, fmt.Errorf("hostrpc: %s: %w", telephony.OpLevel, err)
	}
	return level, nil
}

// CheckPermission implements telephony.PermissionChecker.
func (c *Client) CheckPermission(ctx context.Context) error {
	return c.call(ctx, telephony.OpCheckPermission, nil, nil)
}

// ActiveSubscriptions implements telephony.Host.
func (c *Client) ActiveSubscriptions(ctx context.Context) ([]telephony.SubscriptionInfo, error) {
	return c.list(ctx, telephony.OpActiveSubscriptions)
}

// AvailableSubscriptions implements telephony.AvailableEnumerator.
func (c *Client) AvailableSubscriptions(ctx context.Context) ([]telephony.SubscriptionInfo, error) {
	return c.list(ctx, telephony.OpAvailableSubscriptions)
}

// AccessibleSubscriptions implements telephony.AccessibleEnumerator.
func (c *Client) AccessibleSubscriptions(ctx context.Context) ([]telephony.SubscriptionInfo, error) {
	return c.list(ctx, telephony.OpAccessibleSubscriptions)
}

// AllSubscriptions implements telephony.AllEnumerator.
func (c *Client) AllSubscriptions(ctx context.Context) ([]telephony.SubscriptionInfo, error) {
	return c.list(ctx, telephony.OpAllSubscriptions)
}

// SetPreferredDataSubscription implements telephony.PreferredDataSetter. The
// server holds the call open until the host's callback arrives or its wait
// expires; done runs on its own goroutine only in the first case.
func (c *Client) SetPreferredDataSubscription(ctx context.Context, id int, needValidation bool, done func(code int)) error {
	var res callbackResult
	if err := c.call(ctx, telephony.OpSetPreferredData, commandParams{ID: id, NeedValidation: needValidation}, &res); err != nil {
		return err
	}
	if res.Delivered && done != nil {
		go done(res.Code)
	}
	return nil
}

// SwitchToSubscription implements telephony.Switcher.
func (c *Client) SwitchToSubscription(ctx context.Context, id int, confirm func(code int)) error {
	var res callbackResult
	if err := c.call(ctx, telephony.OpSwitchTo, commandParams{ID: id}, &res); err != nil {
		return err
	}
	if res.Delivered && confirm != nil {
		go confirm(res.Code)
	}
	return nil
}

// SetDefaultDataSubscription implements telephony.DefaultSubscriptionSetter.
func (c *Client) SetDefaultDataSubscription(ctx context.Context, id int) error {
	return c.call(ctx, telephony.OpSetDefaultData, commandParams{ID: id}, nil)
}

// SetDefaultSMSSubscription implements telephony.DefaultSubscriptionSetter.
func (c *Client) SetDefaultSMSSubscription(ctx context.Context, id int) error {
	return c.call(ctx, telephony.OpSetDefaultSMS, commandParams{ID: id}, nil)
}

// SetDefaultVoiceSubscription implements telephony.DefaultSubscriptionSetter.
func (c *Client) SetDefaultVoiceSubscription(ctx context.Context, id int) error {
	return c.call(ctx, telephony.OpSetDefaultVoice, commandParams{ID: id}, nil)
}

// SetSubscriptionEnabled implements telephony.Enabler.
func (c *Client) SetSubscriptionEnabled(ctx context.Context, id int, enabled bool) error {
	return c.call(ctx, telephony.OpSetEnabled, commandParams{ID: id, Enabled: enabled}, nil)
}

func (c *Client) list(ctx context.Context, method string) ([]telephony.SubscriptionInfo, error) {
	var infos []telephony.SubscriptionInfo
	if err := c.call(ctx, method, nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// nextID returns a monotonically increasing request ID for JSON-RPC calls.
func (c *Client) nextID() int64 {
	return c.requestID.Add(1)
}

// call performs a JSON-RPC 2.0 call over HTTP POST.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	var paramsJSON json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("hostrpc: marshal params: %w", err)
		}
		paramsJSON = data
	}

	body, err := json.Marshal(Request{
		JSONRPC: JSONRPCVersion,
		ID:      c.nextID(),
		Method:  method,
		Params:  paramsJSON,
	})
	if err != nil {
		return fmt.Errorf("hostrpc: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("hostrpc: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("hostrpc: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("hostrpc: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hostrpc: %s: HTTP %d: %s", method, resp.StatusCode, string(respBody))
	}

	var rpcResp Response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("hostrpc: decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Method:  method,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    rpcResp.Error.Data,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("hostrpc: decode result: %w", err)
		}
	}
	return nil
}
