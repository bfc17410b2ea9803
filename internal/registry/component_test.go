package registry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/slotter/internal/errors"
)

func stub(props map[string]any) (templ.Component, error) {
	return templ.NopComponent, nil
}

func TestNewComponentRegistry(t *testing.T) {
	registry := NewComponentRegistry()

	assert.NotNil(t, registry)
	assert.Equal(t, 0, registry.Count())
	assert.Empty(t, registry.GetAll())
}

func TestComponentRegistry_Register(t *testing.T) {
	registry := NewComponentRegistry()
	component := &ComponentInfo{Name: "card", Factory: stub}

	require.NoError(t, registry.Register(component))

	retrieved, exists := registry.Get("card")
	assert.True(t, exists)
	assert.Equal(t, component, retrieved)
	assert.False(t, retrieved.LastMod.IsZero())
	assert.Equal(t, 1, registry.Count())
}

func TestComponentRegistry_RegisterInvalid(t *testing.T) {
	registry := NewComponentRegistry()

	tests := []struct {
		name      string
		component *ComponentInfo
	}{
		{"nil", nil},
		{"empty name", &ComponentInfo{Factory: stub}},
		{"bad name", &ComponentInfo{Name: "1card", Factory: stub}},
		{"no factory", &ComponentInfo{Name: "card"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.Register(tt.component)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
		})
	}
	assert.Equal(t, 0, registry.Count())
}

func TestComponentRegistry_GetAllSorted(t *testing.T) {
	registry := NewComponentRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, registry.Register(&ComponentInfo{Name: name, Factory: stub}))
	}

	all := registry.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "zeta", all[2].Name)
}

func TestComponentRegistry_Build(t *testing.T) {
	registry := NewDefaultRegistry()

	c, err := registry.Build("text", map[string]any{"text": "<hi>"})
	require.NoError(t, err)
	var b strings.Builder
	require.NoError(t, c.Render(context.Background(), &b))
	assert.Equal(t, "&lt;hi&gt;", b.String())

	_, err = registry.Build("missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), errors.ErrCodeComponentNotFound)

	_, err = registry.Build("counter", map[string]any{"start": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), errors.ErrCodeDocumentInvalid)
}

func TestComponentRegistry_Watch(t *testing.T) {
	registry := NewComponentRegistry()
	events := registry.Watch()

	require.NoError(t, registry.Register(&ComponentInfo{Name: "a", Factory: stub}))
	require.NoError(t, registry.Register(&ComponentInfo{Name: "a", Factory: stub}))
	registry.Remove("a")
	registry.Remove("a")

	for _, want := range []EventType{EventTypeAdded, EventTypeUpdated, EventTypeRemoved} {
		select {
		case ev := <-events:
			assert.Equal(t, want, ev.Type)
			assert.Equal(t, "a", ev.Component.Name)
		case <-time.After(time.Second):
			t.Fatalf("no %s event", want)
		}
	}

	registry.UnWatch(events)
	_, open := <-events
	assert.False(t, open)
}
