package tools

import (
	"sync"

	"github.com/microsoft/playwright-mcp-sub003/pkg/engine"
)

// Context is the shared automation context handed to every tool invocation.
// It carries the browser engine plus a keyed scratch area that callers (the
// batch executor in particular) use to stash execution-scoped state.
type Context struct {
	Engine engine.Engine

	mu      sync.Mutex
	scratch map[string]interface{}
}

// NewContext creates a context around the given engine.
func NewContext(eng engine.Engine) *Context {
	return &Context{
		Engine:  eng,
		scratch: make(map[string]interface{}),
	}
}

// Scratch reads a scratch slot.
func (c *Context) Scratch(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.scratch[key]
	return v, ok
}

// SetScratch writes a scratch slot.
func (c *Context) SetScratch(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scratch[key] = value
}

// SwapScratch writes a slot and returns its previous contents so the caller
// can restore them later, including the case where the slot was absent.
func (c *Context) SwapScratch(key string, value interface{}) (prev interface{}, existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, existed = c.scratch[key]
	c.scratch[key] = value
	return prev, existed
}

// RestoreScratch puts a slot back to a state previously captured by
// SwapScratch.
func (c *Context) RestoreScratch(key string, prev interface{}, existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existed {
		c.scratch[key] = prev
	} else {
		delete(c.scratch, key)
	}
}
