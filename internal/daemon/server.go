package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rememex/rememex/internal/core"
)

// RequestHandler handles incoming RPC requests. CoreHandler, defined in
// this file, adapts a *core.Core to it.
type RequestHandler interface {
	HandleSearch(ctx context.Context, params SearchParams) ([]SearchResult, error)
	GetStatus() StatusResult
}

// CoreHandler adapts a *core.Core to RequestHandler.
type CoreHandler struct {
	Core          *core.Core
	EmbedderModel string
	Compaction    *CompactionManager
}

// HandleSearch runs params.Query against the requested container (or
// the active one) and translates results to the wire shape.
func (h *CoreHandler) HandleSearch(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	var results []SearchResult

	searchParams := core.SearchParams{
		Query:        params.Query,
		TopK:         params.TopK,
		ContextBytes: params.ContextBytes,
		PathPrefix:   params.PathPrefix,
		Extensions:   params.Extensions,
		MinScore:     params.MinScore,
	}

	if params.Container != "" {
		if err := h.Core.SetActiveContainer(ctx, params.Container); err != nil {
			return nil, err
		}
	}

	hits, err := h.Core.Search(ctx, searchParams)
	if err != nil {
		return nil, err
	}
	if h.Compaction != nil {
		h.Compaction.NoteSearch(containerOrActive(h.Core, params.Container))
	}

	for _, r := range hits {
		results = append(results, SearchResult{
			Path:      r.Row.Path,
			Content:   r.Row.Content,
			Ext:       r.Row.Ext,
			Score:     r.Score,
			BM25Score: r.BM25Score,
			VecScore:  r.VecScore,
		})
	}
	return results, nil
}

// containerOrActive resolves params.Container ("" means whichever
// container is currently active) to a concrete name for compaction
// bookkeeping.
func containerOrActive(c *core.Core, requested string) string {
	if requested != "" {
		return requested
	}
	for _, info := range c.ListContainers() {
		if info.Active {
			return info.Name
		}
	}
	return ""
}

// GetStatus reports the daemon's embedder and active-container state.
func (h *CoreHandler) GetStatus() StatusResult {
	active := ""
	for _, c := range h.Core.ListContainers() {
		if c.Active {
			active = c.Name
			break
		}
	}
	return StatusResult{
		EmbedderModel:   h.EmbedderModel,
		ActiveContainer: active,
	}
}

// Server listens on a Unix socket and handles RPC requests.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string) (*Server, error) {
	return &Server{socketPath: socketPath}, nil
}

// SetHandler sets the request handler for search operations.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe starts the server and blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener
	s.started = time.Now()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("daemon listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("accept error", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

// handleConnection processes a single client connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		slog.Warn("failed to set connection deadline", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		resp := NewErrorResponse("", ErrCodeParseError, "failed to parse request")
		_ = encoder.Encode(resp)
		return
	}

	resp := s.handleRequest(ctx, req)
	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())

	case MethodSearch:
		return s.handleSearch(ctx, req)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no search handler configured")
	}

	paramsData, err := json.Marshal(req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params")
	}

	var params SearchParams
	if err := json.Unmarshal(paramsData, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}

	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	results, err := s.handler.HandleSearch(ctx, params)
	if err != nil {
		code := ErrCodeSearchFailed
		if kind, ok := core.KindOf(err); ok && kind == core.KindNotIndexed {
			code = ErrCodeNotIndexed
		}
		return NewErrorResponse(req.ID, code, err.Error())
	}

	return NewSuccessResponse(req.ID, results)
}

// getStatus returns the current server status.
func (s *Server) getStatus() StatusResult {
	status := StatusResult{
		Running: true,
		PID:     os.Getpid(),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}

	if s.handler != nil {
		handlerStatus := s.handler.GetStatus()
		status.EmbedderModel = handlerStatus.EmbedderModel
		status.ActiveContainer = handlerStatus.ActiveContainer
	}

	return status
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
