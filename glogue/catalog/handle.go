package catalog

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/wbrown/glogue/glogue/schema"
)

// Handle owns the current catalog. A statistics refresh builds a new catalog
// and swaps it in; compilations holding the previous one are unaffected.
type Handle struct {
	current atomic.Pointer[Catalog]
}

// NewHandle creates a handle serving c
func NewHandle(c *Catalog) *Handle {
	h := &Handle{}
	h.current.Store(c)
	return h
}

// Load returns the catalog to use for one compilation
func (h *Handle) Load() *Catalog {
	return h.current.Load()
}

// Swap installs c and returns the catalog it replaced
func (h *Handle) Swap(c *Catalog) *Catalog {
	return h.current.Swap(c)
}

// Refresh replaces the catalog with an empty one over s, keeping the options
func (h *Handle) Refresh(s schema.Schema) *Catalog {
	var opts Options
	if old := h.Load(); old != nil {
		opts = old.opts
	}
	next := New(s, opts)
	prev := h.Swap(next)
	if prev != nil {
		log.WithField("nodes", prev.Stats().Nodes).Debug("catalog refreshed")
	}
	return next
}
