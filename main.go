package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/Readm/smp_sim/backend"
	"github.com/Readm/smp_sim/core"
	"github.com/Readm/smp_sim/hooks"
	"github.com/Readm/smp_sim/plugins/tracelog"
)

func main() {
	var headless = flag.Bool("headless", false, "Run without the interactive control loop")
	var platformName = flag.String("platform", "", "Predefined platform name (e.g. 'quad', 'big-little', 'dual-spin-table')")
	var platformFile = flag.String("platform-file", "", "YAML platform description file (overrides -platform)")
	var withMetrics = flag.Bool("metrics", false, "Activate the IPI throughput plugin")
	var pluginList = flag.String("plugins", "", "Comma-separated trace plugins to activate (e.g. 'tracelog')")
	var verbose = flag.Bool("v", false, "Debug logging")
	flag.Parse()

	if *verbose {
		GetLogger().SetLevel(LogLevelDebug)
	}

	var platform *PlatformConfig
	if *platformFile != "" {
		p, err := LoadPlatformFile(*platformFile)
		if err != nil {
			GetLogger().Errorf("%v", err)
			os.Exit(1)
		}
		platform = p
	} else {
		name := *platformName
		if name == "" {
			name = GetPredefinedPlatforms()[0].Name
		}
		platform = GetPlatformByName(name)
		if platform == nil {
			GetLogger().Errorf("unknown platform %q", name)
			os.Exit(1)
		}
	}

	cfg := &Config{
		Platform: platform,
		Headless: *headless,
	}
	if *pluginList != "" {
		cfg.TracePlugins = strings.Split(*pluginList, ",")
	}
	if *withMetrics {
		cfg.TracePlugins = append(cfg.TracePlugins, "ipi-metrics")
	}
	GetLogger().Infof("platform %s (%s), config %s", platform.Name, platform.EnableMethod, computeConfigHash(cfg))

	be, err := backend.DefaultRegistry.Select(platform.EnableMethod, len(platform.Cores))
	if err != nil {
		GetLogger().Errorf("%v (known methods: %v)", err, backend.DefaultRegistry.Methods())
		os.Exit(1)
	}

	sys := NewSystem(cfg, be)
	sys.SetPanicHandler(func(format string, args ...any) {
		GetLogger().Critf("PANIC: "+format, args...)
		os.Exit(2)
	})
	sys.SetCrossCall(sys.DeliverInterrupts)
	if sb, ok := be.(*backend.SimBackend); ok {
		sb.SetEntry(sys.secondaryStartKernel)
	}

	if len(cfg.TracePlugins) > 0 {
		registry := hooks.NewRegistry(sys.Broker())
		if err := RegisterIPIMetrics(registry, 5*time.Second); err != nil {
			GetLogger().Warnf("metrics plugin unavailable: %v", err)
		}
		if err := tracelog.Register(registry, tracelog.Options{Printf: GetLogger().Debugf}); err != nil {
			GetLogger().Warnf("tracelog plugin unavailable: %v", err)
		}
		if err := registry.Load(cfg.TracePlugins); err != nil {
			GetLogger().Errorf("%v", err)
			os.Exit(1)
		}
	}

	if err := sys.InitCores(); err != nil {
		GetLogger().Errorf("%v", err)
		os.Exit(1)
	}
	sys.ServeBootCore()
	sys.PrepareCores()
	sys.BootSecondaries()
	sys.CoresDone()

	if *headless {
		runDemoTraffic(sys)
		PrintStats(sys, sys.CollectStats())
		sys.Shutdown()
		return
	}

	GetLogger().Infof("interactive control ready (try 'help')")
	sys.RunControlLoop(context.Background(), os.Stdin)
	PrintStats(sys, sys.CollectStats())
	sys.Shutdown()
}

// runDemoTraffic exercises the steady-state notification paths once.
func runDemoTraffic(sys *System) {
	online := sys.OnlineCores()
	online.ForEach(func(cpu int) {
		if cpu == 0 {
			return
		}
		sys.SendReschedule(cpu)
		sys.SendCallFunctionSingle(cpu)
	})

	var others core.CoreSet
	online.ForEach(func(cpu int) {
		if cpu != 0 {
			others.Set(cpu)
		}
	})
	sys.SendWakeup(others)

	sys.EnableTickBroadcast(true)
	sys.TickBroadcast(others)
	sys.RaiseDeferredWork(0)

	// Let the interrupt lines drain before the counters are displayed.
	time.Sleep(50 * time.Millisecond)

	sys.TriggerAllCoreBacktrace(0)
}
