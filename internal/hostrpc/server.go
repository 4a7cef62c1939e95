package hostrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/dusk-indust/esimctl/internal/telephony"
)

// DefaultCallbackWait bounds how long a command call stays open waiting for
// the host's asynchronous callback.
const DefaultCallbackWait = 5 * time.Second

type methodFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Server serves a local telephony host to remote Clients.
type Server struct {
	host         telephony.Host
	logger       *slog.Logger
	limiter      *rate.Limiter
	callbackWait time.Duration
	methods      map[string]methodFunc
	http         *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit limits state-changing commands to r per second with the
// given burst. Queries are never limited. A zero r disables limiting.
func WithRateLimit(r float64, burst int) ServerOption {
	return func(s *Server) {
		if r <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithCallbackWait sets how long command calls wait for host callbacks.
func WithCallbackWait(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.callbackWait = d
		}
	}
}

// NewServer creates a Server for host.
func NewServer(host telephony.Host, opts ...ServerOption) *Server {
	s := &Server{
		host:         host,
		logger:       slog.Default(),
		callbackWait: DefaultCallbackWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "hostrpc")
	s.methods = map[string]methodFunc{
		telephony.OpLevel:                   s.level,
		telephony.OpCheckPermission:         s.checkPermission,
		telephony.OpActiveSubscriptions:     s.activeSubscriptions,
		telephony.OpAvailableSubscriptions:  s.availableSubscriptions,
		telephony.OpAccessibleSubscriptions: s.accessibleSubscriptions,
		telephony.OpAllSubscriptions:        s.allSubscriptions,
		telephony.OpSetPreferredData:        s.setPreferredData,
		telephony.OpSwitchTo:                s.switchTo,
		telephony.OpSetDefaultData:          s.setDefault(telephony.OpSetDefaultData),
		telephony.OpSetDefaultSMS:           s.setDefault(telephony.OpSetDefaultSMS),
		telephony.OpSetDefaultVoice:         s.setDefault(telephony.OpSetDefaultVoice),
		telephony.OpSetEnabled:              s.setEnabled,
	}
	return s
}

// Handler returns the HTTP handler serving JSON-RPC on POST / and a
// liveness probe on GET /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /", s.handleJSONRPC)
	return mux
}

// Start listens on addr and serves in a background goroutine. It returns
// the bound address, which differs from addr when addr has port 0.
func (s *Server) Start(ctx context.Context, addr string) (string, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("hostrpc: listen %s: %w", addr, err)
	}

	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	s.logger.Info("serving host", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// handleJSONRPC decodes one JSON-RPC 2.0 request and dispatches it.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}
	if req.JSONRPC != JSONRPCVersion {
		writeError(w, req.ID, ErrCodeInvalidRequest, "Invalid request: jsonrpc must be "+JSONRPCVersion)
		return
	}

	method, ok := s.methods[req.Method]
	if !ok {
		writeError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
		return
	}
	if mutatingMethods[req.Method] && s.limiter != nil && !s.limiter.Allow() {
		s.logger.Warn("command rate limited", "method", req.Method)
		writeError(w, req.ID, ErrCodeRateLimited, ErrRateLimited.Error())
		return
	}

	s.logger.Debug("rpc", "method", req.Method)
	result, err := method(r.Context(), req.Params)
	if err != nil {
		var perr paramsError
		if errors.As(err, &perr) {
			writeError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+perr.Error())
			return
		}
		code := errorCode(err)
		if code == ErrCodeInternal {
			s.logger.Warn("host call failed", "method", req.Method, "error", err)
		}
		writeError(w, req.ID, code, err.Error())
		return
	}
	writeResult(w, req.ID, result)
}

type paramsError struct{ err error }

func (e paramsError) Error() string { return e.err.Error() }

func decodeCommand(params json.RawMessage) (commandParams, error) {
	var p commandParams
	if len(params) == 0 {
		return p, paramsError{errors.New("missing params")}
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return p, paramsError{err}
	}
	return p, nil
}

func (s *Server) level(ctx context.Context, _ json.RawMessage) (any, error) {
	level, err := s.host.Level(ctx)
	if err != nil {
		return nil, err
	}
	return levelResult{Level: level.String()}, nil
}

func (s *Server) checkPermission(ctx context.Context, _ json.RawMessage) (any, error) {
	pc, ok := s.host.(telephony.PermissionChecker)
	if !ok {
		return struct{}{}, nil
	}
	if err := pc.CheckPermission(ctx); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (s *Server) activeSubscriptions(ctx context.Context, _ json.RawMessage) (any, error) {
	return nonNil(s.host.ActiveSubscriptions(ctx))
}

func (s *Server) availableSubscriptions(ctx context.Context, _ json.RawMessage) (any, error) {
	e, ok := s.host.(telephony.AvailableEnumerator)
	if !ok {
		return nil, telephony.ErrUnsupported
	}
	return nonNil(e.AvailableSubscriptions(ctx))
}

func (s *Server) accessibleSubscriptions(ctx context.Context, _ json.RawMessage) (any, error) {
	e, ok := s.host.(telephony.AccessibleEnumerator)
	if !ok {
		return nil, telephony.ErrUnsupported
	}
	return nonNil(e.AccessibleSubscriptions(ctx))
}

func (s *Server) allSubscriptions(ctx context.Context, _ json.RawMessage) (any, error) {
	e, ok := s.host.(telephony.AllEnumerator)
	if !ok {
		return nil, telephony.ErrUnsupported
	}
	return nonNil(e.AllSubscriptions(ctx))
}

func (s *Server) setPreferredData(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decodeCommand(params)
	if err != nil {
		return nil, err
	}
	setter, ok := s.host.(telephony.PreferredDataSetter)
	if !ok {
		return nil, telephony.ErrUnsupported
	}
	codes := make(chan int, 1)
	if err := setter.SetPreferredDataSubscription(ctx, p.ID, p.NeedValidation, deliver(codes)); err != nil {
		return nil, err
	}
	return s.awaitCallback(ctx, codes), nil
}

func (s *Server) switchTo(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decodeCommand(params)
	if err != nil {
		return nil, err
	}
	sw, ok := s.host.(telephony.Switcher)
	if !ok {
		return nil, telephony.ErrUnsupported
	}
	codes := make(chan int, 1)
	if err := sw.SwitchToSubscription(ctx, p.ID, deliver(codes)); err != nil {
		return nil, err
	}
	return s.awaitCallback(ctx, codes), nil
}

func (s *Server) setDefault(op string) methodFunc {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		p, err := decodeCommand(params)
		if err != nil {
			return nil, err
		}
		ds, ok := s.host.(telephony.DefaultSubscriptionSetter)
		if !ok {
			return nil, telephony.ErrUnsupported
		}
		switch op {
		case telephony.OpSetDefaultData:
			err = ds.SetDefaultDataSubscription(ctx, p.ID)
		case telephony.OpSetDefaultSMS:
			err = ds.SetDefaultSMSSubscription(ctx, p.ID)
		default:
			err = ds.SetDefaultVoiceSubscription(ctx, p.ID)
		}
		if err != nil {
			return nil, err
		}
		return struct{}{}, nil
	}
}

func (s *Server) setEnabled(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decodeCommand(params)
	if err != nil {
		return nil, err
	}
	en, ok := s.host.(telephony.Enabler)
	if !ok {
		return nil, telephony.ErrUnsupported
	}
	if err := en.SetSubscriptionEnabled(ctx, p.ID, p.Enabled); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

// awaitCallback waits for the first callback code, bounded by the server's
// callback wait and the request context.
func (s *Server) awaitCallback(ctx context.Context, codes <-chan int) callbackResult {
	timer := time.NewTimer(s.callbackWait)
	defer timer.Stop()
	select {
	case code := <-codes:
		return callbackResult{Delivered: true, Code: code}
	case <-timer.C:
		s.logger.Debug("host callback not delivered", "wait", s.callbackWait)
	case <-ctx.Done():
	}
	return callbackResult{}
}

// deliver returns a callback that forwards only the first code it receives.
func deliver(codes chan<- int) func(int) {
	return func(code int) {
		select {
		case codes <- code:
		default:
		}
	}
}

func nonNil(infos []telephony.SubscriptionInfo, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []telephony.SubscriptionInfo{}
	}
	return infos, nil
}

// writeResult writes a successful JSON-RPC response.
func writeResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeError(w, id, ErrCodeInternal, "Failed to marshal result: "+err.Error())
		return
	}
	json.NewEncoder(w).Encode(Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  data,
	})
}

// writeError writes a JSON-RPC error response.
func writeError(w http.ResponseWriter, id any, code int, message string) {
	json.NewEncoder(w).Encode(Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
		},
	})
}
