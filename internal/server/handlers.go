package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/slotter/internal/dom"
	"github.com/conneroisu/slotter/internal/errors"
	"github.com/conneroisu/slotter/internal/portal"
	"github.com/conneroisu/slotter/internal/version"
)

// MountInfo describes one projected mount for /api/mounts.
type MountInfo struct {
	Key         string         `json:"key"`
	Tag         string         `json:"tag"`
	Renders     int            `json:"renders"`
	Interactive bool           `json:"interactive"`
	State       map[string]any `json:"state,omitempty"`
}

func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	title := "slotter"
	if s.doc != nil && s.doc.Title != "" {
		title = s.doc.Title
	}
	content, err := s.tmpl.HTML()
	if err == nil && s.lastErr != nil && content == "" {
		err = s.lastErr
	}
	scope := s.tmpl.ScopeID()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		content = fmt.Sprintf(`<pre class="slotter-error">%s</pre>`, templ.EscapeString(err.Error()))
	}

	if err := page(title, scope, content).Render(r.Context(), w); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to write page")
	}
}

func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, docErr := "healthy", ""
	if s.lastErr != nil {
		status, docErr = "degraded", s.lastErr.Error()
	}
	checks := map[string]any{
		"document": map[string]any{
			"path":   s.config.Document,
			"passes": s.passes,
			"error":  docErr,
		},
		"registry":  map[string]any{"components": s.registry.Count()},
		"websocket": map[string]any{"clients": s.ws.ClientCount()},
		"mounts":    len(s.tmpl.Mounts()),
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   version.Get().Short(),
		"checks":    checks,
	})
}

func (s *PreviewServer) handleMounts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	infos := mountInfos(s.tmpl.Mounts())
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, infos)
}

func (s *PreviewServer) handleDispatch(w http.ResponseWriter, r *http.Request) {
	key, event := r.PathValue("key"), r.PathValue("event")

	if err := s.Dispatch(r.Context(), key, event); err != nil {
		status := http.StatusInternalServerError
		switch errors.Code(err) {
		case errors.ErrCodeMountNotFound:
			status = http.StatusNotFound
		case errors.ErrCodeNotInteractive:
			status = http.StatusConflict
		case errors.ErrCodeTemplateClosed:
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	var info MountInfo
	for _, m := range mountInfos(s.tmpl.Mounts()) {
		if m.Key == key {
			info = m
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, info)
}

func mountInfos(mounts []*portal.Mount) []MountInfo {
	infos := make([]MountInfo, 0, len(mounts))
	for _, m := range mounts {
		_, interactive := m.Content.(portal.Handler)
		state := make(map[string]any, len(m.State))
		for k, v := range m.State {
			state[k] = v
		}
		infos = append(infos, MountInfo{
			Key:         m.Key,
			Tag:         dom.Tag(m.Node),
			Renders:     m.Renders,
			Interactive: interactive,
			State:       state,
		})
	}
	return infos
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// page wraps the live container in a document that applies WebSocket
// updates and forwards clicks on projected content.
func page(title, scope, content string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, pageLayout, templ.EscapeString(title), templ.EscapeString(scope), content)
		return err
	})
}

const pageLayout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body data-slotter-scope="%s">%s<script>
(function () {
  var scope = document.body.dataset.slotterScope;
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var ws = new WebSocket(proto + "//" + location.host + "/ws");
  ws.onmessage = function (e) {
    var msg = JSON.parse(e.data);
    if (msg.type === "update" && msg.content) {
      var script = document.body.lastElementChild;
      document.body.innerHTML = msg.content;
      document.body.appendChild(script);
    } else if (msg.type === "error") {
      console.error("slotter:", msg.error);
    }
  };
  ws.onclose = function () { setTimeout(function () { location.reload(); }, 1000); };
  document.addEventListener("click", function (e) {
    var el = e.target.closest("[data-template-key]");
    while (el && el.getAttribute("data-template-id") !== scope) {
      el = el.parentElement && el.parentElement.closest("[data-template-key]");
    }
    if (el && ws.readyState === WebSocket.OPEN) {
      ws.send(JSON.stringify({type: "event", target: el.getAttribute("data-template-key"), event: "click"}));
    }
  });
})();
</script>
</body>
</html>
`
