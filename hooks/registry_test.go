package hooks

import (
	"fmt"
	"testing"
)

func TestRegistryLoadActivatesFactory(t *testing.T) {
	broker := NewTraceBroker()
	reg := NewRegistry(broker)

	installed := false
	err := reg.Register("probe", PluginDescriptor{
		Name:     "probe",
		Category: PluginCategoryInstrumentation,
	}, func(b *TraceBroker) error {
		if b != broker {
			return fmt.Errorf("factory got a different broker")
		}
		installed = true
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if installed {
		t.Fatalf("factory ran before load")
	}
	if err := reg.Load([]string{"probe"}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !installed {
		t.Fatalf("factory never ran")
	}
	if got := broker.ListAllPlugins(); len(got) != 1 {
		t.Fatalf("plugin metadata missing: %v", got)
	}
}

func TestRegistryLoadUnknownPlugin(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.Load([]string{"ghost"}); err == nil {
		t.Fatalf("unknown plugin loaded")
	}
}

func TestRegistryLoadPropagatesFactoryError(t *testing.T) {
	reg := NewRegistry(nil)
	boom := fmt.Errorf("no backend available")
	reg.Register("broken", PluginDescriptor{Name: "broken"}, func(*TraceBroker) error {
		return boom
	})
	if err := reg.Load([]string{"broken"}); err == nil {
		t.Fatalf("factory failure swallowed")
	}
}

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	reg := NewRegistry(nil)
	ok := func(*TraceBroker) error { return nil }

	if err := reg.Register("", PluginDescriptor{}, ok); err == nil {
		t.Fatalf("empty name accepted")
	}
	if err := reg.Register("x", PluginDescriptor{}, nil); err == nil {
		t.Fatalf("nil factory accepted")
	}
	if err := reg.Register("x", PluginDescriptor{}, ok); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("x", PluginDescriptor{}, ok); err == nil {
		t.Fatalf("duplicate name accepted")
	}

	known := reg.Known()
	if len(known) != 1 || known[0] != "x" {
		t.Fatalf("known = %v", known)
	}
}
