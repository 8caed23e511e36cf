package server

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"path"
	"time"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/layout"
	"github.com/web-padawan/demosnippet/internal/render"
	"github.com/web-padawan/demosnippet/internal/types"
	"github.com/web-padawan/demosnippet/internal/version"
	"github.com/web-padawan/demosnippet/internal/viewer"
	"github.com/web-padawan/demosnippet/internal/websocket"
)

// projectResponse is the body of GET /api/project.
type projectResponse struct {
	Generation  uint64                 `json:"generation"`
	Project     string                 `json:"project"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Files       []types.FileDescriptor `json:"files"`
}

// selectionResponse is the body of GET /api/selection and POST /api/select.
type selectionResponse struct {
	Generation uint64       `json:"generation"`
	Selected   string       `json:"selected"`
	Index      int          `json:"index"`
	Tabs       []layout.Tab `json:"tabs"`
}

func (s *PreviewServer) loadTimeout() time.Duration {
	if s.config.Project.Timeout > 0 {
		return s.config.Project.Timeout
	}
	return 10 * time.Second
}

// settledView renders the viewer and waits for the view to settle. A view
// that does not settle in time is returned with its pending sections.
func (s *PreviewServer) settledView(ctx context.Context) *viewer.View {
	s.components.Viewer.Render(ctx)

	ctx, cancel := context.WithTimeout(ctx, s.loadTimeout())
	defer cancel()

	view, err := s.components.Viewer.Wait(ctx)
	if err != nil {
		s.logger.Warn(ctx, err, "View did not settle, serving pending sections", "generation", view.Generation)
	}
	return view
}

// snippets waits for the snippet section of the current view.
func (s *PreviewServer) snippets(ctx context.Context) (*viewer.View, *viewer.Snippets, error) {
	view := s.components.Viewer.Render(ctx)

	ctx, cancel := context.WithTimeout(ctx, s.loadTimeout())
	defer cancel()

	snippets, err := view.Snippets.Await(ctx)
	return view, snippets, err
}

func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	view := s.settledView(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	opts := render.PageOptions{WebSocketPath: WebSocketPath}
	if err := s.components.Renderer.Render(r.Context(), w, view, opts); err != nil {
		s.logger.Error(r.Context(), err, "Failed to render page")
	}
}

func (s *PreviewServer) handleProject(w http.ResponseWriter, r *http.Request) {
	view, snippets, err := s.snippets(r.Context())
	if err != nil {
		http.Error(w, "Project is still loading", http.StatusServiceUnavailable)
		return
	}

	resp := projectResponse{
		Generation: view.Generation,
		Project:    view.Props.ProjectPath,
		Files:      []types.FileDescriptor{},
	}
	if p := snippets.Project; p != nil {
		resp.Files = p.Files
		if p.Dir != "" {
			resp.Project = p.Dir
		}
		resp.Title = render.Title(p.Title, resp.Project)
		resp.Description = p.Description
		if p.Err != nil {
			resp.Error = p.Err.Error()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *PreviewServer) selection(view *viewer.View, sel *layout.Selector) selectionResponse {
	key, _ := sel.Selected()
	tabs, _ := sel.Snapshot()
	return selectionResponse{
		Generation: view.Generation,
		Selected:   key,
		Index:      sel.SelectedIndex(),
		Tabs:       tabs,
	}
}

func (s *PreviewServer) handleSelection(w http.ResponseWriter, r *http.Request) {
	view, snippets, err := s.snippets(r.Context())
	if err != nil {
		http.Error(w, "Project is still loading", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, s.selection(view, snippets.Selector))
}

func (s *PreviewServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "Missing key parameter", http.StatusBadRequest)
		return
	}

	view, snippets, err := s.snippets(r.Context())
	if err != nil {
		http.Error(w, "Project is still loading", http.StatusServiceUnavailable)
		return
	}

	if !snippets.Selector.Select(key) {
		http.Error(w, "Unknown tab", http.StatusNotFound)
		return
	}
	s.broadcastSelection(view, key)

	writeJSON(w, http.StatusOK, s.selection(view, snippets.Selector))
}

func (s *PreviewServer) handleProjectFile(w http.ResponseWriter, r *http.Request) {
	if s.components.Local == nil {
		http.Error(w, "Project files are served from "+s.config.Project.BaseURL, http.StatusNotFound)
		return
	}

	file := r.PathValue("file")
	resp, err := s.components.Local.Fetch(r.Context(), file)
	switch {
	case terrors.IsSecurityError(err):
		s.logger.Warn(r.Context(), err, "Rejected project file request", "file", file)
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	case err != nil:
		s.logger.Error(r.Context(), err, "Failed to read project file", "file", file)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	case resp.StatusCode == http.StatusNotFound:
		http.NotFound(w, r)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(file))
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// handleHealth returns the server health status for health checks
func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	view := s.components.Viewer.Current()

	health := map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"checks": map[string]interface{}{
			"viewer": map[string]interface{}{
				"generation": view.Generation,
				"project":    view.Props.ProjectPath,
				"settled":    view.Snippets.Ready() && view.Template.Ready() && view.Script.Ready(),
			},
			"websocket": map[string]interface{}{"clients": s.wsManager.GetConnectedClients()},
			"watcher":   map[string]interface{}{"enabled": s.watcher != nil},
			"cache":     map[string]interface{}{"entries": s.components.Fetcher.Len()},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleClientMessage moves the shared selection when a page reports a tab
// click and tells every page about it.
func (s *PreviewServer) handleClientMessage(ctx context.Context, client *websocket.Client, msg websocket.ClientMessage) {
	if msg.Type != websocket.MessageClick {
		s.logger.Debug(ctx, "Ignoring client message", "client", client.ID, "type", msg.Type)
		return
	}

	view := s.components.Viewer.Current()
	if !view.Snippets.Ready() {
		return
	}
	snippets, err := view.Snippets.Value()
	if err != nil || snippets == nil {
		return
	}

	key, ok := snippets.Selector.HandleClick(layout.ClickEvent{Path: msg.Path})
	if !ok {
		return
	}
	s.broadcastSelection(view, key)
}

func (s *PreviewServer) broadcastSelection(view *viewer.View, key string) {
	s.wsManager.BroadcastMessage(websocket.UpdateMessage{
		Type:       websocket.MessageSelect,
		Target:     key,
		Generation: view.Generation,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
