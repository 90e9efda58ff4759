// Package annotations provides a low-overhead event system for tracing
// planning: pattern resolution, catalog growth and extend-plan search.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Planning lifecycle
	PlanInvoked   = "plan/invoked"
	PlanCacheHit  = "plan/cache.hit"
	PlanCompleted = "plan/completed"

	// Fuzzy resolution
	FuzzyResolved = "fuzzy/resolved"

	// Catalog
	CatalogNodeCreated = "catalog/node.created"
	CatalogHit         = "catalog/hit"

	// Extend-plan search
	SearchCompleted = "search/completed"

	// Errors
	ErrorPlanning = "error/planning"
)

// Event represents a single annotation event during planning.
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Event-specific data
}

// Handler processes annotation events as they occur.
// Handlers may be called from several goroutines at once.
type Handler func(event Event)

// Emit sends an event to h if h is set
func (h Handler) Emit(name string, start time.Time, data map[string]interface{}) {
	if h == nil {
		return
	}
	end := time.Now()
	h(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// Collector accumulates events during one planning call.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event
	mu      sync.Mutex
}

// NewCollector creates a new annotation collector.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: handler != nil,
		handler: handler,
		events:  make([]Event, 0, 16),
	}
}

// Enabled reports whether events are recorded at all
func (c *Collector) Enabled() bool {
	return c != nil && c.enabled
}

// Handler returns a handler that records into the collector.
// It is handed to components that emit events on the collector's behalf.
func (c *Collector) Handler() Handler {
	if !c.Enabled() {
		return nil
	}
	return c.Add
}

// Add records a new event.
// Thread-safe for concurrent access.
func (c *Collector) Add(event Event) {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	c.handler(event)
}

// AddTiming records an event with timing information.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if !c.Enabled() {
		return
	}
	Handler(c.Add).Emit(name, start, data)
}

// Events returns all collected events, or nil when none were recorded.
func (c *Collector) Events() []Event {
	if !c.Enabled() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Reset clears the collector for reuse.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
