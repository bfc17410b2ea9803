package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/slotter/internal/config"
	"github.com/conneroisu/slotter/internal/registry"
	ws "github.com/conneroisu/slotter/internal/websocket"
	"github.com/conneroisu/slotter/pkg/template"
)

const pageDoc = `title: Demo <Page>
template: "<h1>{title}</h1><section>{counter}</section><p>{tag}</p>"
values:
  title: Hello
  counter:
    component: counter
    props: {label: Clicks}
  tag:
    component: badge
    props: {label: new}
`

func testConfig(doc string) *config.Config {
	return &config.Config{
		Document: doc,
		Template: config.TemplateConfig{
			As:              template.DefaultAs,
			DefaultValueTag: template.DefaultValueTag,
			EscapeValues:    true,
		},
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ShutdownTimeout: time.Second,
		},
		Watch: config.WatchConfig{
			Debounce:   20 * time.Millisecond,
			Extensions: []string{".yml", ".yaml"},
		},
	}
}

func writeDoc(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestServer(t *testing.T) (*PreviewServer, string) {
	t.Helper()
	template.Reset()

	path := filepath.Join(t.TempDir(), "page.yml")
	writeDoc(t, path, pageDoc)

	s, err := New(testConfig(path), registry.NewDefaultRegistry(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	require.NoError(t, s.Reload(context.Background()))
	return s, path
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func post(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
	return rec
}

func TestNew_RequiresDocument(t *testing.T) {
	_, err := New(testConfig(""), nil, nil)
	assert.Error(t, err)

	_, err = New(nil, nil, nil)
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s.Handler(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "<title>Demo &lt;Page&gt;</title>")
	assert.Contains(t, body, `data-slotter-scope="1"`)
	assert.Contains(t, body, "<h1>Hello</h1>")
	assert.Contains(t, body, `<button type="button">Clicks: 0</button>`)
	assert.Contains(t, body, `<span class="badge badge-default">New</span>`)

	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/missing").Code)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status string `json:"status"`
		Checks struct {
			Document struct {
				Passes int    `json:"passes"`
				Error  string `json:"error"`
			} `json:"document"`
			Mounts int `json:"mounts"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Checks.Document.Passes)
	assert.Empty(t, health.Checks.Document.Error)
	assert.Equal(t, 2, health.Checks.Mounts)
}

func TestMounts(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s.Handler(), "/api/mounts")
	require.Equal(t, http.StatusOK, rec.Code)

	var mounts []MountInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mounts))
	require.Len(t, mounts, 2)

	assert.Equal(t, "counter:1", mounts[0].Key)
	assert.Equal(t, template.DefaultValueTag, mounts[0].Tag)
	assert.True(t, mounts[0].Interactive)
	assert.Equal(t, "tag:1", mounts[1].Key)
	assert.False(t, mounts[1].Interactive)
}

func TestDispatch(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := post(t, h, "/api/mounts/counter:1/click")
	require.Equal(t, http.StatusOK, rec.Code)

	var info MountInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "counter:1", info.Key)
	assert.EqualValues(t, 1, info.State["count"])

	assert.Contains(t, get(t, h, "/").Body.String(), "Clicks: 1")

	assert.Equal(t, http.StatusNotFound, post(t, h, "/api/mounts/nope:1/click").Code)
	assert.Equal(t, http.StatusConflict, post(t, h, "/api/mounts/tag:1/click").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, get(t, h, "/api/mounts/counter:1/click").Code)
}

func TestReload_KeepsStateOfRecycledMounts(t *testing.T) {
	s, path := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.Dispatch(ctx, "counter:1", "click"))
	require.NoError(t, s.Dispatch(ctx, "counter:1", "click"))

	// The badge goes away, the counter keeps its key and tag.
	writeDoc(t, path, strings.Replace(pageDoc, "<p>{tag}</p>", "<p>changed</p>", 1))
	require.NoError(t, s.Reload(ctx))

	body := get(t, s.Handler(), "/").Body.String()
	assert.Contains(t, body, "Clicks: 2")
	assert.Contains(t, body, "<p>changed</p>")
	assert.NotContains(t, body, "badge")
}

func TestReload_ErrorKeepsPreviousTree(t *testing.T) {
	s, path := newTestServer(t)
	ctx := context.Background()

	writeDoc(t, path, "template: [unterminated")
	assert.Error(t, s.Reload(ctx))

	rec := get(t, s.Handler(), "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Clicks: 0")

	var health map[string]any
	require.NoError(t, json.Unmarshal(get(t, s.Handler(), "/health").Body.Bytes(), &health))
	assert.Equal(t, "degraded", health["status"])
}

func TestIndex_ErrorBeforeFirstPass(t *testing.T) {
	template.Reset()
	path := filepath.Join(t.TempDir(), "missing.yml")

	s, err := New(testConfig(path), nil, nil)
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	require.Error(t, s.Reload(context.Background()))

	rec := get(t, s.Handler(), "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="slotter-error"`)
}

func TestEscapeDefaultFromConfig(t *testing.T) {
	template.Reset()
	path := filepath.Join(t.TempDir(), "page.yml")
	writeDoc(t, path, "template: \"<p>{v}</p>\"\nvalues:\n  v: \"<b>x</b>\"\n")

	cfg := testConfig(path)
	cfg.Template.EscapeValues = false
	s, err := New(cfg, nil, nil)
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	require.NoError(t, s.Reload(context.Background()))
	assert.Contains(t, get(t, s.Handler(), "/").Body.String(), "<p><b>x</b></p>")
}

func TestWebSocketUpdates(t *testing.T) {
	s, _ := newTestServer(t)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()
	require.Eventually(t, func() bool { return s.ws.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	event, err := json.Marshal(ws.ClientMessage{Type: "event", Target: "counter:1", Event: "click"})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, event))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg ws.UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, ws.TypeUpdate, msg.Type)
	assert.Equal(t, "counter:1", msg.Target)
	assert.Contains(t, msg.Content, "Clicks: 1")
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFileWatcherReloads(t *testing.T) {
	s, path := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.startWatcher(ctx))

	writeDoc(t, path, strings.Replace(pageDoc, "title: Hello", "title: Again", 1))

	assert.Eventually(t, func() bool {
		resp := get(t, s.Handler(), "/")
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), "<h1>Again</h1>")
	}, 3*time.Second, 20*time.Millisecond)
}

func TestRegistryChangeReloads(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.watchRegistry(ctx)

	// Give the watcher goroutine time to subscribe.
	require.Eventually(t, func() bool {
		_ = s.registry.Register(&registry.ComponentInfo{
			Name:    "extra",
			Factory: registry.Builtins()[0].Factory,
		})
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.passes > 1
	}, 3*time.Second, 20*time.Millisecond)
}
