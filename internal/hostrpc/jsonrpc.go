// Package hostrpc exposes a telephony host over JSON-RPC 2.0 on HTTP and
// provides the matching remote binding, so the engines can drive a
// subsystem that lives in another process.
package hostrpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dusk-indust/esimctl/internal/telephony"
)

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is a JSON-RPC 2.0 error object.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC error codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603

	// Telephony error codes.
	ErrCodeUnsupported      = -32001
	ErrCodePermissionDenied = -32002
	ErrCodeNoService        = -32003
	ErrCodeRateLimited      = -32005
)

// ErrRateLimited is reported when the server refuses a command because too
// many arrived in a short window.
var ErrRateLimited = errors.New("hostrpc: rate limited")

// Method names are the telephony operation names. Commands that change
// host state are subject to the server rate limit.
var mutatingMethods = map[string]bool{
	telephony.OpSetPreferredData: true,
	telephony.OpSwitchTo:         true,
	telephony.OpSetDefaultData:   true,
	telephony.OpSetDefaultSMS:    true,
	telephony.OpSetDefaultVoice:  true,
	telephony.OpSetEnabled:       true,
}

type levelResult struct {
	Level string `json:"level"`
}

type commandParams struct {
	ID             int  `json:"id"`
	NeedValidation bool `json:"need_validation,omitempty"`
	Enabled        bool `json:"enabled,omitempty"`
}

// callbackResult carries the host's asynchronous callback, when it arrived
// before the server stopped waiting.
type callbackResult struct {
	Delivered bool `json:"delivered"`
	Code      int  `json:"code"`
}

// RPCError is a JSON-RPC error returned by a remote host. It unwraps to the
// telephony sentinel matching its code.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("hostrpc: %s: rpc error %d: %s (data: %s)", e.Method, e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("hostrpc: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// Unwrap maps the error code back to a sentinel. A method the server does
// not know is as good as an unsupported one.
func (e *RPCError) Unwrap() error {
	switch e.Code {
	case ErrCodeUnsupported, ErrCodeMethodNotFound:
		return telephony.ErrUnsupported
	case ErrCodePermissionDenied:
		return telephony.ErrPermissionDenied
	case ErrCodeNoService:
		return telephony.ErrNoSubscriptionService
	case ErrCodeRateLimited:
		return ErrRateLimited
	}
	return nil
}

// errorCode classifies a host error for the wire.
func errorCode(err error) int {
	switch {
	case errors.Is(err, telephony.ErrUnsupported):
		return ErrCodeUnsupported
	case errors.Is(err, telephony.ErrPermissionDenied):
		return ErrCodePermissionDenied
	case errors.Is(err, telephony.ErrNoSubscriptionService):
		return ErrCodeNoService
	case errors.Is(err, ErrRateLimited):
		return ErrCodeRateLimited
	}
	return ErrCodeInternal
}
