package hooks

import "sync"

// PluginCategory represents the high-level role of a plugin.
type PluginCategory string

const (
	// PluginCategoryInstrumentation covers metrics, tracing, and diagnostics.
	PluginCategoryInstrumentation PluginCategory = "instrumentation"
	// PluginCategoryBackend covers platform mechanism extensions.
	PluginCategoryBackend PluginCategory = "backend"
)

// PluginDescriptor describes a plugin registered with the broker.
type PluginDescriptor struct {
	Name        string
	Category    PluginCategory
	Description string
}

// RaiseContext carries information for IPI raise hooks, fired on the sender
// before the broadcast primitive is invoked.
type RaiseContext struct {
	Targets string
	Message int
	Label   string
}

// DispatchContext carries information for IPI entry/exit hooks, fired on the
// receiving core around the handler body.
type DispatchContext struct {
	CPU     int
	Message int
	Label   string
}

// LifecycleContext carries information for core lifecycle hooks.
type LifecycleContext struct {
	CPU    int
	Online bool
}

// RaiseHook observes an outgoing IPI broadcast.
type RaiseHook func(ctx *RaiseContext)

// DispatchHook observes handler entry or exit on a receiving core. Hooks run
// in interrupt context and must not block.
type DispatchHook func(ctx *DispatchContext)

// LifecycleHook observes a core going online or offline.
type LifecycleHook func(ctx *LifecycleContext)

// HookBundle groups multiple hook handlers that belong to one plugin.
type HookBundle struct {
	IPIRaise  []RaiseHook
	IPIEntry  []DispatchHook
	IPIExit   []DispatchHook
	Lifecycle []LifecycleHook
}

// TraceBroker coordinates trace hook registration and triggering.
type TraceBroker struct {
	mu sync.RWMutex

	raiseHooks     []RaiseHook
	entryHooks     []DispatchHook
	exitHooks      []DispatchHook
	lifecycleHooks []LifecycleHook

	pluginCatalog map[PluginCategory][]PluginDescriptor
	pluginIndex   map[string]PluginDescriptor
}

// NewTraceBroker creates an empty broker instance.
func NewTraceBroker() *TraceBroker {
	return &TraceBroker{
		raiseHooks:     make([]RaiseHook, 0),
		entryHooks:     make([]DispatchHook, 0),
		exitHooks:      make([]DispatchHook, 0),
		lifecycleHooks: make([]LifecycleHook, 0),
		pluginCatalog:  make(map[PluginCategory][]PluginDescriptor),
		pluginIndex:    make(map[string]PluginDescriptor),
	}
}

// RegisterIPIRaise adds a hook executed when an IPI broadcast is raised.
func (p *TraceBroker) RegisterIPIRaise(h RaiseHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raiseHooks = append(p.raiseHooks, h)
}

// RegisterIPIEntry adds a hook executed when a core enters an IPI handler.
func (p *TraceBroker) RegisterIPIEntry(h DispatchHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entryHooks = append(p.entryHooks, h)
}

// RegisterIPIExit adds a hook executed when a core leaves an IPI handler.
func (p *TraceBroker) RegisterIPIExit(h DispatchHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitHooks = append(p.exitHooks, h)
}

// RegisterLifecycle adds a hook executed when a core goes online or offline.
func (p *TraceBroker) RegisterLifecycle(h LifecycleHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lifecycleHooks = append(p.lifecycleHooks, h)
}

// EmitIPIRaise triggers raise hooks.
func (p *TraceBroker) EmitIPIRaise(ctx *RaiseContext) {
	if p == nil || ctx == nil {
		return
	}
	p.mu.RLock()
	handlers := make([]RaiseHook, len(p.raiseHooks))
	copy(handlers, p.raiseHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		handler(ctx)
	}
}

// EmitIPIEntry triggers handler entry hooks.
func (p *TraceBroker) EmitIPIEntry(ctx *DispatchContext) {
	if p == nil || ctx == nil {
		return
	}
	p.mu.RLock()
	handlers := make([]DispatchHook, len(p.entryHooks))
	copy(handlers, p.entryHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		handler(ctx)
	}
}

// EmitIPIExit triggers handler exit hooks.
func (p *TraceBroker) EmitIPIExit(ctx *DispatchContext) {
	if p == nil || ctx == nil {
		return
	}
	p.mu.RLock()
	handlers := make([]DispatchHook, len(p.exitHooks))
	copy(handlers, p.exitHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		handler(ctx)
	}
}

// EmitLifecycle triggers lifecycle hooks.
func (p *TraceBroker) EmitLifecycle(ctx *LifecycleContext) {
	if p == nil || ctx == nil {
		return
	}
	p.mu.RLock()
	handlers := make([]LifecycleHook, len(p.lifecycleHooks))
	copy(handlers, p.lifecycleHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		handler(ctx)
	}
}

// RegisterBundle registers a plugin descriptor together with all hook handlers.
func (p *TraceBroker) RegisterBundle(desc PluginDescriptor, bundle HookBundle) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.registerDescriptorLocked(desc)

	if len(bundle.IPIRaise) > 0 {
		p.raiseHooks = append(p.raiseHooks, bundle.IPIRaise...)
	}
	if len(bundle.IPIEntry) > 0 {
		p.entryHooks = append(p.entryHooks, bundle.IPIEntry...)
	}
	if len(bundle.IPIExit) > 0 {
		p.exitHooks = append(p.exitHooks, bundle.IPIExit...)
	}
	if len(bundle.Lifecycle) > 0 {
		p.lifecycleHooks = append(p.lifecycleHooks, bundle.Lifecycle...)
	}
}

// RegisterPluginMetadata stores plugin metadata without registering hooks.
func (p *TraceBroker) RegisterPluginMetadata(desc PluginDescriptor) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registerDescriptorLocked(desc)
}

// ListPlugins returns descriptors for plugins in the requested category.
func (p *TraceBroker) ListPlugins(category PluginCategory) []PluginDescriptor {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	catalog := p.pluginCatalog[category]
	if len(catalog) == 0 {
		return nil
	}
	out := make([]PluginDescriptor, len(catalog))
	copy(out, catalog)
	return out
}

// ListAllPlugins returns descriptors of every registered plugin.
func (p *TraceBroker) ListAllPlugins() []PluginDescriptor {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]PluginDescriptor, 0, len(p.pluginIndex))
	for _, desc := range p.pluginIndex {
		out = append(out, desc)
	}
	return out
}

func (p *TraceBroker) registerDescriptorLocked(desc PluginDescriptor) {
	if desc.Name == "" {
		return
	}
	if _, exists := p.pluginIndex[desc.Name]; exists {
		return
	}
	p.pluginIndex[desc.Name] = desc
	category := desc.Category
	p.pluginCatalog[category] = append(p.pluginCatalog[category], desc)
}
