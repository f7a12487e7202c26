package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/jpalmerr/watchboard/internal/jsoncodec"
	"github.com/jpalmerr/watchboard/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// wsWriteTimeout bounds a single WebSocket write.
	wsWriteTimeout = 10 * time.Second

	// wsPingInterval keeps idle WebSocket connections alive.
	wsPingInterval = 30 * time.Second

	// wsReadTimeout is extended on every pong.
	wsReadTimeout = 60 * time.Second

	// maxBodyBytes limits control request bodies.
	maxBodyBytes = 1 << 12

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Watchboard"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// ErrUnknownHandle is returned by a [Controller] for ids it does not know.
var ErrUnknownHandle = errors.New("unknown handle")

// Controller applies dashboard actions to the engine. Implementations must
// be safe for concurrent use; the engine posts the actions to its loop.
type Controller interface {
	SetEnabled(id string, enabled bool) error
	SetVisible(visible bool)
}

// Option configures optional [Server] features.
type Option func(*Server)

// WithController enables the control endpoints.
func WithController(c Controller) Option {
	return func(s *Server) { s.controller = c }
}

// WithGatherer serves Prometheus metrics from g at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// Server handles HTTP requests for the dashboard and API.
//
// Server provides these endpoints:
//   - GET /: Serves the embedded dashboard HTML
//   - GET /api/handles: Returns all current Handle states as JSON
//   - GET /api/sse: Server-Sent Events stream of changes
//   - GET /api/ws: WebSocket stream of changes
//   - GET /metrics: Prometheus metrics, when a gatherer is configured
//   - POST /api/handles/{id}/enable: Enables or disables a Handle
//   - POST /api/visibility: Shows or hides the display
//
// The handler accepts cleartext HTTP/2 as well as HTTP/1.1. The server is
// designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger
	controller Controller
	gatherer   prometheus.Gatherer
	upgrader   websocket.Upgrader

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store holding Handle state
//   - port: TCP port to listen on; 0 picks a free port
//   - assets: Embedded filesystem containing dashboard assets (may be nil)
//   - title: Dashboard title (defaults to "Watchboard" if empty)
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, port int, assets fs.FS, title string, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		store:  st,
		port:   port,
		assets: assets,
		title:  title,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkOrigin allows requests without an Origin header and same-host
// origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/handles", s.handleHandles)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/handles/{id}/enable", s.handleEnable)
	mux.HandleFunc("POST /api/visibility", s.handleVisibility)

	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// serve dashboard assets
	if s.assets != nil {
		mux.HandleFunc("/", s.handleDashboard)
	}

	return h2c.NewHandler(mux, &http2.Server{})
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the listening address once [Server.Start] has succeeded.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// read index.html from embedded assets
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	safeTitle := html.EscapeString(title)
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, safeTitle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleHandles returns all current Handle states as JSON.
func (s *Server) handleHandles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	states := s.store.GetAll()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := jsoncodec.Encode(w, states); err != nil {
		s.logger.Error("failed to encode handles response", "error", err)
	}
}

type enableRequest struct {
	Enabled bool `json:"enabled"`
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

// handleEnable enables or disables one Handle.
func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	if s.controller == nil {
		http.Error(w, "Control not available", http.StatusNotImplemented)
		return
	}

	id := r.PathValue("id")
	if _, ok := s.store.Get(id); !ok {
		http.Error(w, "Handle not found", http.StatusNotFound)
		return
	}

	var req enableRequest
	if err := jsoncodec.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.controller.SetEnabled(id, req.Enabled); err != nil {
		if errors.Is(err, ErrUnknownHandle) {
			http.Error(w, "Handle not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to update handle", "error", err, "handle", id)
		http.Error(w, "Update failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleVisibility shows or hides the display.
func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	if s.controller == nil {
		http.Error(w, "Control not available", http.StatusNotImplemented)
		return
	}

	var req visibilityRequest
	if err := jsoncodec.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.controller.SetVisible(req.Visible)
	w.WriteHeader(http.StatusAccepted)
}

// initialChanges returns the current states as update changes, sent to
// stream clients before live changes.
func (s *Server) initialChanges() []store.Change {
	states := s.store.GetAll()
	changes := make([]store.Change, len(states))
	for i, state := range states {
		changes[i] = store.Change{Type: store.ChangeUpdated, Handle: state}
	}
	return changes
}

// handleSSE streams Handle changes via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// ResponseController provides deadline-aware write and flush operations.
	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	// writeAndFlush writes SSE data with a deadline to prevent blocking forever.
	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	// set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe to store changes
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// send initial states (also protected by write deadline)
	for _, change := range s.initialChanges() {
		data, err := jsoncodec.Marshal(change)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	// stream changes
	for {
		select {
		case change, ok := <-ch:
			if !ok {
				return
			}
			data, err := jsoncodec.Marshal(change)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}

// handleWebSocket streams the same changes as SSE over a WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	// reading is required to process pongs and detect disconnects
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	write := func(change store.Change) error {
		data, err := jsoncodec.Marshal(change)
		if err != nil {
			return nil
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	for _, change := range s.initialChanges() {
		if err := write(change); err != nil {
			return
		}
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case change, ok := <-ch:
			if !ok {
				return
			}
			if err := write(change); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-r.Context().Done():
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
			return
		}
	}
}
