// Package server serves the demo viewer over HTTP: the rendered page, a
// small JSON API, the project files and a websocket that keeps tab
// selection and reloads in sync across open pages.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/web-padawan/demosnippet/internal/config"
	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/logging"
	"github.com/web-padawan/demosnippet/internal/server/middleware"
	"github.com/web-padawan/demosnippet/internal/watcher"
	"github.com/web-padawan/demosnippet/internal/websocket"
)

// WebSocketPath is the route of the live update socket.
const WebSocketPath = "/ws"

// PreviewServer serves one demo project with live reload
type PreviewServer struct {
	config     *config.Config
	components *Components
	wsManager  *websocket.Manager
	watcher    *watcher.FileWatcher
	logger     logging.Logger
	startedAt  time.Time

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New creates a preview server for cfg.
func New(cfg *config.Config, logger logging.Logger) (*PreviewServer, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	components, err := NewComponents(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &PreviewServer{
		config:     cfg,
		components: components,
		logger:     logger.WithComponent("server"),
		startedAt:  time.Now(),
	}

	s.wsManager = websocket.NewManager(
		NewOriginValidator(cfg.Server),
		logger,
		websocket.WithMessageHandler(s.handleClientMessage),
	)

	if cfg.Watch.Enabled && components.Local != nil {
		fw, err := watcher.NewFileWatcher(cfg.Project.Root, cfg.Watch.Debounce, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		if err := fw.Ignore(cfg.Watch.Ignore...); err != nil {
			_ = fw.Stop()
			return nil, err
		}
		fw.AddFilter(watcher.ProjectFilter)
		fw.AddHandler(s.handleFileChange)
		s.watcher = fw
	}

	return s, nil
}

// Components returns the wired collaborators.
func (s *PreviewServer) Components() *Components {
	return s.components
}

// Handler returns the HTTP handler with middleware applied.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/project", s.handleProject)
	mux.HandleFunc("GET /api/selection", s.handleSelection)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("GET /project/{file...}", s.handleProjectFile)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc(WebSocketPath, s.wsManager.HandleWebSocket)

	limiter := middleware.NewRateLimiter(middleware.RateLimit{RequestsPerMinute: 600, BurstLimit: 60})
	return s.withMiddleware(limiter.RateLimit()(mux))
}

// Start begins loading the project, starts the watcher and serves HTTP until
// the server is shut down.
func (s *PreviewServer) Start(ctx context.Context) error {
	s.components.Viewer.Render(ctx)

	if s.watcher != nil {
		if err := s.watcher.AddRecursive("."); err != nil {
			s.logger.Warn(ctx, err, "Failed to watch project root", "root", s.config.Project.Root)
		} else if err := s.watcher.Start(ctx); err != nil {
			s.logger.Warn(ctx, err, "Failed to start file watcher")
		}
	}

	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Preview server listening",
		"addr", "http://"+addr,
		"project", s.config.Project.Path,
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// handleFileChange reloads the viewer when a file of the current project,
// its template or its script changed.
func (s *PreviewServer) handleFileChange(events []watcher.ChangeEvent) error {
	props := s.components.Viewer.Properties()

	var changed []string
	for _, event := range events {
		if affects(props.ProjectPath, props.TemplatePath, props.ScriptPath, event.Rel) {
			changed = append(changed, event.Rel)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	ctx := context.Background()
	s.logger.Info(ctx, "Project files changed, reloading", "files", changed)

	s.components.Viewer.Invalidate()
	view := s.components.Viewer.Render(ctx)

	s.wsManager.BroadcastMessage(websocket.UpdateMessage{
		Type:       websocket.MessageReload,
		Generation: view.Generation,
	})

	return nil
}

func affects(projectPath, templatePath, scriptPath, rel string) bool {
	rel = path.Clean(rel)
	for _, p := range []string{templatePath, scriptPath} {
		if p != "" && path.Clean(strings.TrimPrefix(p, "/")) == rel {
			return true
		}
	}
	dir := strings.Trim(path.Clean("/"+projectPath), "/")
	if dir == "" {
		return true
	}
	return strings.HasPrefix(rel, dir+"/")
}

// Shutdown gracefully shuts down the server and cleans up resources. Every
// step runs even if an earlier one fails; the failures are joined.
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		var watcherErr, wsErr, httpErr error
		if s.watcher != nil {
			if watcherErr = s.watcher.Stop(); watcherErr != nil {
				s.logger.Warn(ctx, watcherErr, "Failed to stop file watcher")
			}
		}

		if wsErr = s.wsManager.Shutdown(ctx); wsErr != nil {
			s.logger.Warn(ctx, wsErr, "Failed to shut down websocket manager")
		}

		s.components.Viewer.Close()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			httpErr = server.Shutdown(ctx)
		}

		shutdownErr = terrors.CombineErrors(watcherErr, wsErr, httpErr)
	})

	return shutdownErr
}
