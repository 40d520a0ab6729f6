package remote

import "sync"

// Connectivity tracks the local network-reachability signal. The pipeline
// consults it to abort retries early, and the queue flusher registers a hook
// that fires on every offline-to-online transition.
type Connectivity struct {
	mu     sync.Mutex
	online bool
	hooks  []func()
}

// NewConnectivity starts in the online state.
func NewConnectivity() *Connectivity {
	return &Connectivity{online: true}
}

// Online reports the last known reachability state.
func (c *Connectivity) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// SetOnline records the new state. Restored hooks run synchronously on the
// offline-to-online edge only.
func (c *Connectivity) SetOnline(online bool) {
	c.mu.Lock()
	restored := online && !c.online
	c.online = online
	hooks := c.hooks
	c.mu.Unlock()

	if restored {
		for _, h := range hooks {
			h()
		}
	}
}

// OnRestored registers a hook invoked when connectivity comes back.
func (c *Connectivity) OnRestored(h func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}
