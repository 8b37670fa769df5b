package pluginapi

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/lanplay/slpd/internal/log"
	"github.com/lanplay/slpd/internal/metrics"
)

// Registry holds the server's fixed plugin pipeline in registration
// order. Invocations for a given plugin are serialized: the registry
// never runs two In/Out calls against the same plugin instance
// concurrently, matching the spec's "no concurrent in/out on the same
// plugin instance" requirement.
type Registry struct {
	mu      sync.Mutex
	order   []string
	plugins map[string]Plugin
	locks   map[string]*sync.Mutex
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Register adds a plugin to the end of the pipeline. Duplicate names are
// rejected.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("slpd: plugin %q already registered", name)
	}
	r.plugins[name] = p
	r.locks[name] = &sync.Mutex{}
	r.order = append(r.order, name)
	return nil
}

// Get returns a registered plugin by name, for the typed accessor helpers
// built on top of the registry (GetPlugin[T]).
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plugins[name]
	return p, ok
}

// RunIngress runs the In hook of every registered plugin, in registration
// order, stopping at the first Veto. It returns Veto if any plugin vetoed.
func (r *Registry) RunIngress(ctx context.Context, pkt InPacket) Verdict {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	r.mu.Unlock()

	for _, name := range order {
		if r.invokeIn(ctx, name, pkt) == Veto {
			metrics.PluginVetoTotal.WithLabelValues(name, "in").Inc()
			return Veto
		}
	}
	return Ok
}

// RunEgress runs the Out hook of every registered plugin, observing the
// final fan-out. A Veto from any plugin is advisory: it is logged, but
// the fan-out always proceeds.
func (r *Registry) RunEgress(ctx context.Context, bytes []byte, dests []*net.UDPAddr) {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	r.mu.Unlock()

	for _, name := range order {
		if r.invokeOut(ctx, name, bytes, dests) == Veto {
			metrics.PluginVetoTotal.WithLabelValues(name, "out").Inc()
			log.GetLogger().WithField("plugin", name).
				Warn("slpd: plugin vetoed egress; fan-out proceeds anyway (advisory only)")
		}
	}
}

func (r *Registry) invokeIn(ctx context.Context, name string, pkt InPacket) (v Verdict) {
	r.mu.Lock()
	p := r.plugins[name]
	lock := r.locks[name]
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	defer recoverPluginPanic(name, "in", &v)
	return p.In(ctx, pkt)
}

func (r *Registry) invokeOut(ctx context.Context, name string, bytes []byte, dests []*net.UDPAddr) (v Verdict) {
	r.mu.Lock()
	p := r.plugins[name]
	lock := r.locks[name]
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	defer recoverPluginPanic(name, "out", &v)
	return p.Out(ctx, bytes, dests)
}

// recoverPluginPanic isolates a panicking plugin hook from the rest of the
// server: it is recovered, logged, and counted, and the invocation is
// treated as Ok so the pipeline keeps moving, since a plugin panic must
// never take down the relay. Hooks run without a timeout; only panics are
// isolated.
func recoverPluginPanic(name, hook string, v *Verdict) {
	if r := recover(); r != nil {
		metrics.PluginPanicsTotal.WithLabelValues(name, hook).Inc()
		log.GetLogger().WithField("plugin", name).WithField("hook", hook).
			Errorf("slpd: recovered panic in plugin hook: %v", r)
		*v = Ok
	}
}

// StartAll starts every registered plugin that implements Lifecycle, in
// registration order.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	plugins := make(map[string]Plugin, len(r.plugins))
	for k, v := range r.plugins {
		plugins[k] = v
	}
	r.mu.Unlock()

	for _, name := range order {
		if lc, ok := plugins[name].(Lifecycle); ok {
			if err := lc.Start(ctx); err != nil {
				return fmt.Errorf("slpd: starting plugin %q: %w", name, err)
			}
		}
	}
	return nil
}

// StopAll stops every registered plugin that implements Lifecycle, in
// reverse registration order.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	plugins := make(map[string]Plugin, len(r.plugins))
	for k, v := range r.plugins {
		plugins[k] = v
	}
	r.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		if lc, ok := plugins[name].(Lifecycle); ok {
			if err := lc.Stop(ctx); err != nil {
				log.GetLogger().WithField("plugin", name).WithError(err).
					Error("slpd: error stopping plugin")
			}
		}
	}
}

// GetPlugin fetches a named plugin and, if found and of type T, hands it
// to fn for a typed read. Mirrors the original's get_plugin<T> query
// accessor.
func GetPlugin[T any](r *Registry, name string, fn func(p *T) any) any {
	p, ok := r.Get(name)
	if !ok {
		return fn(nil)
	}
	typed, ok := p.(*T)
	if !ok {
		return fn(nil)
	}
	return fn(typed)
}
