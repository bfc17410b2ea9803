// Package server is the live preview server. It keeps one live template for
// the configured page document, re-runs a pass whenever the document or the
// component registry changes, and pushes the new container HTML to browsers
// over a WebSocket.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/slotter/internal/config"
	"github.com/conneroisu/slotter/internal/document"
	"github.com/conneroisu/slotter/internal/errors"
	"github.com/conneroisu/slotter/internal/logging"
	"github.com/conneroisu/slotter/internal/registry"
	"github.com/conneroisu/slotter/internal/watcher"
	"github.com/conneroisu/slotter/internal/websocket"
	"github.com/conneroisu/slotter/pkg/template"
)

// PreviewServer serves one page document with live updates.
type PreviewServer struct {
	config   *config.Config
	registry *registry.ComponentRegistry
	logger   logging.Logger
	errs     *errors.ErrorHandler
	ws       *websocket.Manager

	// mu serializes passes, dispatches and reads of the live tree.
	mu       sync.Mutex
	doc      *document.Document
	body     *html.Node
	tmpl     *template.Template
	lastErr  error
	passes   int
	lastPass time.Time

	serverMutex sync.Mutex
	httpServer  *http.Server
	watcher     *watcher.FileWatcher

	shutdownOnce sync.Once
}

// New creates a preview server for cfg.Document. Components are resolved
// through reg.
func New(cfg *config.Config, reg *registry.ComponentRegistry, logger logging.Logger) (*PreviewServer, error) {
	if cfg == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "server requires a configuration")
	}
	if cfg.Document == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "no document configured")
	}
	if reg == nil {
		reg = registry.NewDefaultRegistry()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	validator := websocket.NewOriginValidator(cfg.Server.Host, cfg.Server.Port, cfg.Server.AllowedOrigins)
	s := &PreviewServer{
		config:   cfg,
		registry: reg,
		logger:   logger,
		errs:     errors.NewErrorHandler(logger),
		ws:       websocket.NewManager(validator, logger),
		body:     &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body},
	}
	s.tmpl = template.New(template.EnvLive,
		template.WithLogger(logger),
		template.WithParent(s.body),
	)
	s.ws.OnEvent(func(ctx context.Context, msg websocket.ClientMessage) error {
		return s.Dispatch(ctx, msg.Target, msg.Event)
	})

	return s, nil
}

// Handler returns the HTTP routes of the server.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ws", s.ws.HandleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/mounts", s.handleMounts)
	mux.HandleFunc("POST /api/mounts/{key}/{event}", s.handleDispatch)

	return s.logRequests(mux)
}

func (s *PreviewServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// Reload loads the document and runs a live pass. The result is broadcast
// to connected browsers. A failed reload keeps the previous tree and is
// broadcast as an error message.
func (s *PreviewServer) Reload(ctx context.Context) error {
	s.mu.Lock()
	msg, err := s.reloadLocked(ctx)
	s.mu.Unlock()

	s.ws.Broadcast(msg)
	return err
}

func (s *PreviewServer) reloadLocked(ctx context.Context) (websocket.UpdateMessage, error) {
	doc, props, err := s.load()
	if err != nil {
		s.lastErr = err
		s.errs.Handle(ctx, err)
		return websocket.UpdateMessage{Type: websocket.TypeError, Error: err.Error()}, err
	}

	if _, err := s.tmpl.Update(ctx, props); err != nil {
		s.lastErr = err
		s.errs.Handle(ctx, err)
		return websocket.UpdateMessage{Type: websocket.TypeError, Error: err.Error()}, err
	}
	s.doc = doc
	s.lastErr = nil
	s.passes++
	s.lastPass = time.Now()

	changes := s.tmpl.LastChanges()
	content, err := s.tmpl.HTML()
	if err != nil {
		return websocket.UpdateMessage{Type: websocket.TypeError, Error: err.Error()}, err
	}
	s.logger.Info(ctx, "Document rendered",
		"document", doc.Path(),
		"reused", len(changes.Reused),
		"fresh", len(changes.Fresh),
		"dropped", len(changes.Dropped),
	)

	return websocket.UpdateMessage{
		Type:    websocket.TypeUpdate,
		Content: content,
		Reused:  changes.Reused,
		Fresh:   changes.Fresh,
		Dropped: changes.Dropped,
	}, nil
}

func (s *PreviewServer) load() (*document.Document, template.Props, error) {
	doc, err := document.Load(s.config.Document)
	if err != nil {
		return nil, template.Props{}, err
	}
	props, err := doc.PropsWith(s.registry, s.config.Template)
	if err != nil {
		return nil, template.Props{}, err
	}
	return doc, props, nil
}

// Dispatch delivers event to the stateful content mounted under key and
// broadcasts the re-rendered container.
func (s *PreviewServer) Dispatch(ctx context.Context, key, event string) error {
	s.mu.Lock()
	err := s.tmpl.Dispatch(ctx, key, event)
	var content string
	if err == nil {
		content, err = s.tmpl.HTML()
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.ws.Broadcast(websocket.UpdateMessage{
		Type:    websocket.TypeUpdate,
		Target:  key,
		Content: content,
	})
	return nil
}

// Start runs the initial pass, the watchers and the HTTP server. It blocks
// until ctx is cancelled or the listener fails.
func (s *PreviewServer) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		s.logger.Warn(ctx, err, "Initial render failed, serving the error page")
	}

	if s.config.Watch.Enabled {
		if err := s.startWatcher(ctx); err != nil {
			return err
		}
	}
	go s.watchRegistry(ctx)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.serverMutex.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Preview server listening", "addr", srv.Addr, "document", s.config.Document)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *PreviewServer) startWatcher(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(s.config.Watch.Debounce, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw.AddFilter(watcher.NoEditorFilter)
	fw.AddFilter(watcher.NoGitFilter)
	if len(s.config.Watch.Extensions) > 0 {
		fw.AddFilter(watcher.ExtensionFilter(s.config.Watch.Extensions...))
	}
	fw.AddHandler(s.handleFileChange)

	files := []string{s.config.Document}
	s.mu.Lock()
	if s.doc != nil {
		files = s.doc.Files()
	}
	s.mu.Unlock()
	if err := fw.WatchFiles(files...); err != nil {
		return fmt.Errorf("failed to watch document: %w", err)
	}
	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.serverMutex.Lock()
	s.watcher = fw
	s.serverMutex.Unlock()
	return nil
}

func (s *PreviewServer) handleFileChange(ctx context.Context, events []watcher.ChangeEvent) error {
	for _, e := range events {
		s.logger.Debug(ctx, "File changed", "path", e.Path, "type", e.Type.String())
	}
	return s.Reload(ctx)
}

func (s *PreviewServer) watchRegistry(ctx context.Context) {
	events := s.registry.Watch()
	defer s.registry.UnWatch(events)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.logger.Debug(ctx, "Component changed", "component", e.Component.Name, "event", e.Type.String())
			if err := s.Reload(ctx); err != nil {
				s.logger.Warn(ctx, err, "Reload after component change failed")
			}
		}
	}
}

// Shutdown stops the watcher, closes WebSocket clients and the HTTP server,
// and tears the live template down.
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.serverMutex.Lock()
		fw, srv := s.watcher, s.httpServer
		s.serverMutex.Unlock()

		if fw != nil {
			if err := fw.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Failed to stop file watcher")
			}
		}
		_ = s.ws.Shutdown(ctx)
		if srv != nil {
			shutdownErr = srv.Shutdown(ctx)
		}

		s.mu.Lock()
		s.tmpl.Close(ctx)
		s.mu.Unlock()

		s.logger.Info(ctx, "Preview server stopped")
	})

	return shutdownErr
}
