package hooks

import "testing"

func TestBrokerEmitsRegisteredHooks(t *testing.T) {
	b := NewTraceBroker()

	var raises, entries, exits, lifecycles int
	b.RegisterIPIRaise(func(ctx *RaiseContext) { raises++ })
	b.RegisterIPIEntry(func(ctx *DispatchContext) { entries++ })
	b.RegisterIPIExit(func(ctx *DispatchContext) { exits++ })
	b.RegisterLifecycle(func(ctx *LifecycleContext) { lifecycles++ })

	b.EmitIPIRaise(&RaiseContext{Targets: "1-2", Message: 0, Label: "x"})
	b.EmitIPIEntry(&DispatchContext{CPU: 1, Message: 0, Label: "x"})
	b.EmitIPIExit(&DispatchContext{CPU: 1, Message: 0, Label: "x"})
	b.EmitLifecycle(&LifecycleContext{CPU: 1, Online: true})

	if raises != 1 || entries != 1 || exits != 1 || lifecycles != 1 {
		t.Fatalf("hook counts = %d/%d/%d/%d, want 1 each", raises, entries, exits, lifecycles)
	}
}

func TestBrokerNilSafety(t *testing.T) {
	var b *TraceBroker
	b.RegisterIPIRaise(func(*RaiseContext) {})
	b.EmitIPIRaise(&RaiseContext{})
	if b.ListAllPlugins() != nil {
		t.Fatalf("nil broker listed plugins")
	}

	b = NewTraceBroker()
	b.RegisterIPIRaise(nil)
	b.EmitIPIRaise(nil)
	b.EmitIPIRaise(&RaiseContext{})
}

func TestBrokerRegisterBundle(t *testing.T) {
	b := NewTraceBroker()

	var fired int
	b.RegisterBundle(PluginDescriptor{
		Name:     "bundle-test",
		Category: PluginCategoryInstrumentation,
	}, HookBundle{
		IPIEntry: []DispatchHook{func(*DispatchContext) { fired++ }},
		IPIExit:  []DispatchHook{func(*DispatchContext) { fired++ }},
	})

	b.EmitIPIEntry(&DispatchContext{})
	b.EmitIPIExit(&DispatchContext{})
	if fired != 2 {
		t.Fatalf("bundle hooks fired %d times, want 2", fired)
	}

	plugins := b.ListPlugins(PluginCategoryInstrumentation)
	if len(plugins) != 1 || plugins[0].Name != "bundle-test" {
		t.Fatalf("catalog = %v", plugins)
	}
}

func TestBrokerPluginCatalog(t *testing.T) {
	b := NewTraceBroker()
	b.RegisterPluginMetadata(PluginDescriptor{Name: "a", Category: PluginCategoryInstrumentation})
	b.RegisterPluginMetadata(PluginDescriptor{Name: "b", Category: PluginCategoryBackend})
	b.RegisterPluginMetadata(PluginDescriptor{Name: "a", Category: PluginCategoryInstrumentation})
	b.RegisterPluginMetadata(PluginDescriptor{Name: ""})

	if got := b.ListPlugins(PluginCategoryInstrumentation); len(got) != 1 {
		t.Fatalf("instrumentation catalog = %v", got)
	}
	if got := b.ListAllPlugins(); len(got) != 2 {
		t.Fatalf("full catalog = %v", got)
	}
	if got := b.ListPlugins("nonexistent"); got != nil {
		t.Fatalf("empty category = %v", got)
	}
}
