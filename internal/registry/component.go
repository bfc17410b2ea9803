// Package registry holds the named components a page document can place in
// template values.
package registry

import (
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/slotter/internal/errors"
)

// Factory builds a component from document props.
type Factory func(props map[string]any) (templ.Component, error)

// ComponentRegistry manages the available components
type ComponentRegistry struct {
	components map[string]*ComponentInfo
	mutex      sync.RWMutex
	watchers   []chan ComponentEvent
}

// ComponentInfo describes a registered component
type ComponentInfo struct {
	Name        string
	Description string
	Parameters  []ParameterInfo
	// Stateful components keep state in their mount between passes.
	Stateful bool
	Factory  Factory
	LastMod  time.Time
}

// ParameterInfo describes a component parameter
type ParameterInfo struct {
	Name     string      `json:"name" yaml:"name"`
	Type     string      `json:"type" yaml:"type"`
	Optional bool        `json:"optional,omitempty" yaml:"optional,omitempty"`
	Default  interface{} `json:"default,omitempty" yaml:"default,omitempty"`
}

// ComponentEvent represents a change in the component registry
type ComponentEvent struct {
	Type      EventType
	Component *ComponentInfo
	Timestamp time.Time
}

// EventType represents the type of component event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

func (e EventType) String() string {
	switch e {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

var validName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// NewComponentRegistry creates an empty registry
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		components: make(map[string]*ComponentInfo),
		watchers:   make([]chan ComponentEvent, 0),
	}
}

// Register adds or replaces a component
func (r *ComponentRegistry) Register(component *ComponentInfo) error {
	if component == nil || !validName.MatchString(component.Name) {
		name := ""
		if component != nil {
			name = component.Name
		}
		return errors.NewValidationError(errors.ErrCodeInvalidComponent, "invalid component name: "+name)
	}
	if component.Factory == nil {
		return errors.NewValidationError(errors.ErrCodeInvalidComponent, "component has no factory: "+component.Name).
			WithComponent(component.Name)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := EventTypeAdded
	if _, exists := r.components[component.Name]; exists {
		eventType = EventTypeUpdated
	}
	if component.LastMod.IsZero() {
		component.LastMod = time.Now()
	}
	r.components[component.Name] = component
	r.notify(eventType, component)
	return nil
}

// Get retrieves a component by name
func (r *ComponentRegistry) Get(name string) (*ComponentInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	component, exists := r.components[name]
	return component, exists
}

// Build creates an instance of the named component
func (r *ComponentRegistry) Build(name string, props map[string]any) (templ.Component, error) {
	component, ok := r.Get(name)
	if !ok {
		return nil, errors.ErrComponentNotFound(name)
	}
	c, err := component.Factory(props)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeDocumentInvalid, "invalid props").
			WithComponent(name).
			WithContext("cause", err.Error())
	}
	return c, nil
}

// GetAll returns all registered components sorted by name
func (r *ComponentRegistry) GetAll() []*ComponentInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*ComponentInfo, 0, len(r.components))
	for _, component := range r.components {
		result = append(result, component)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Remove removes a component from the registry
func (r *ComponentRegistry) Remove(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	component, exists := r.components[name]
	if !exists {
		return
	}
	delete(r.components, name)
	r.notify(EventTypeRemoved, component)
}

func (r *ComponentRegistry) notify(eventType EventType, component *ComponentInfo) {
	event := ComponentEvent{
		Type:      eventType,
		Component: component,
		Timestamp: time.Now(),
	}

	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// Watch returns a channel that receives component events
func (r *ComponentRegistry) Watch() <-chan ComponentEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan ComponentEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *ComponentRegistry) UnWatch(ch <-chan ComponentEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered components
func (r *ComponentRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.components)
}
