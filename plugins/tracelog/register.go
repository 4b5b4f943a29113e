// Package tracelog provides an instrumentation plugin that logs every IPI
// raise, dispatch, and core lifecycle transition through a caller-supplied
// printer.
package tracelog

import (
	"fmt"

	"github.com/Readm/smp_sim/hooks"
)

// Name is the plugin's registry name.
const Name = "tracelog"

// Options configure trace log plugin registration.
type Options struct {
	// Printf receives one formatted line per traced event.
	Printf func(format string, args ...any)
}

// Register registers the trace log plugin on the registry. The plugin stays
// inert until the registry loads it.
func Register(reg *hooks.Registry, opts Options) error {
	if reg == nil {
		return fmt.Errorf("registry is nil")
	}
	if opts.Printf == nil {
		return fmt.Errorf("Printf callback is required")
	}
	printf := opts.Printf
	desc := hooks.PluginDescriptor{
		Name:        Name,
		Category:    hooks.PluginCategoryInstrumentation,
		Description: "per-event IPI and lifecycle trace logging",
	}
	return reg.Register(Name, desc, func(broker *hooks.TraceBroker) error {
		if broker == nil {
			return fmt.Errorf("trace broker is nil")
		}
		broker.RegisterIPIRaise(func(ctx *hooks.RaiseContext) {
			printf("trace: raise %s -> %s", ctx.Label, ctx.Targets)
		})
		broker.RegisterIPIEntry(func(ctx *hooks.DispatchContext) {
			printf("trace: CPU%d enter %s", ctx.CPU, ctx.Label)
		})
		broker.RegisterIPIExit(func(ctx *hooks.DispatchContext) {
			printf("trace: CPU%d exit %s", ctx.CPU, ctx.Label)
		})
		broker.RegisterLifecycle(func(ctx *hooks.LifecycleContext) {
			state := "offline"
			if ctx.Online {
				state = "online"
			}
			printf("trace: CPU%d %s", ctx.CPU, state)
		})
		return nil
	})
}
