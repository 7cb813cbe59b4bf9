package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bollar/observability"
	"bollar/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Server exposes the protocol over JSON-RPC 2.0 with health and metrics
// endpoints alongside.
type Server struct {
	cdp    *modules.CDPModule
	logger *slog.Logger
}

// NewServer constructs a server over the CDP module.
func NewServer(cdpModule *modules.CDPModule, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cdp: cdpModule, logger: logger}
}

// Router builds the HTTP handler: /rpc for the typed surface, /healthz, and
// /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handle)
	return r
}

// Start serves until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request too large", nil)
			return
		}
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON", err.Error())
		return
	}
	if req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}

	started := time.Now()
	defer func() {
		observability.Metrics().Latency.WithLabelValues(req.Method).Observe(time.Since(started).Seconds())
	}()

	switch req.Method {
	case "cdp_create":
		s.handleCreate(w, &req)
	case "cdp_mint":
		s.handleMint(w, &req)
	case "cdp_liquidate":
		s.handleLiquidate(w, &req)
	case "cdp_close":
		s.handleClose(w, &req)
	case "cdp_get":
		s.handleGet(w, &req)
	case "cdp_list":
		s.handleList(w, &req)
	case "cdp_previewMint":
		s.handlePreviewMint(w, &req)
	case "cdp_previewClosure":
		s.handlePreviewClosure(w, &req)
	case "cdp_scan":
		s.handleScan(w, &req)
	case "psbt_validate":
		s.handlePSBTValidate(w, &req)
	case "oracle_update":
		s.handleOracleUpdate(w, &req)
	case "oracle_get":
		s.handleOracleGet(w, &req)
	case "system_pause":
		s.handleSystemPause(w, &req)
	case "system_resume":
		s.handleSystemResume(w, &req)
	case "statetx_history":
		s.handleHistory(w, &req)
	case "protocol_fees":
		s.handleFees(w, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeModuleError(w http.ResponseWriter, id interface{}, moduleErr *modules.ModuleError) {
	writeError(w, moduleErr.HTTPStatus, id, moduleErr.Code, moduleErr.Message, moduleErr.Data)
}
