package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/google/shlex"

	"github.com/Readm/smp_sim/core"
	"github.com/Readm/smp_sim/simulator"
)

// messageByName maps the control-loop spelling of each message type.
var messageByName = map[string]IPIMessage{
	"resched":   IPIReschedule,
	"callfunc":  IPICallFunc,
	"stop":      IPICPUStop,
	"tick":      IPITimer,
	"deferred":  IPIDeferredWork,
	"wakeup":    IPIWakeup,
	"backtrace": IPICPUBacktrace,
}

// controlHandler interprets one control line; returning false ends the loop.
func (s *System) controlHandler(line string) bool {
	tokens, err := shlex.Split(line)
	if err != nil {
		GetLogger().Errorf("control: %v", err)
		return true
	}
	if len(tokens) == 0 {
		return true
	}

	switch tokens[0] {
	case "help":
		fmt.Println("commands: status | bringup <cpu> | unplug <cpu> | send <cpu> <type> | stop | backtrace | quit")

	case "status":
		PrintStats(s, s.CollectStats())

	case "bringup":
		cpu, ok := parseCPU(tokens, 1)
		if !ok {
			break
		}
		if err := s.BringUp(cpu, NewIdleTask(cpu)); err != nil {
			GetLogger().Errorf("%v", err)
		}

	case "unplug":
		cpu, ok := parseCPU(tokens, 1)
		if !ok {
			break
		}
		if err := s.Unplug(cpu); err != nil {
			GetLogger().Errorf("%v", err)
		}

	case "send":
		cpu, ok := parseCPU(tokens, 1)
		if !ok || len(tokens) < 3 {
			GetLogger().Errorf("usage: send <cpu> <type>")
			break
		}
		msg, ok := messageByName[tokens[2]]
		if !ok {
			GetLogger().Errorf("unknown message type %q", tokens[2])
			break
		}
		var mask core.CoreSet
		mask.Set(cpu)
		s.smpCrossCallCommon(mask, msg)

	case "stop":
		s.StopAll(0)

	case "backtrace":
		s.TriggerAllCoreBacktrace(0)

	case "quit", "exit":
		return false

	default:
		GetLogger().Errorf("unknown command %q (try help)", tokens[0])
	}
	return true
}

func parseCPU(tokens []string, idx int) (int, bool) {
	if len(tokens) <= idx {
		GetLogger().Errorf("missing cpu argument")
		return 0, false
	}
	cpu, err := strconv.Atoi(tokens[idx])
	if err != nil || cpu < 0 || cpu >= core.MaxCores {
		GetLogger().Errorf("bad cpu argument %q", tokens[idx])
		return 0, false
	}
	return cpu, true
}

// RunControlLoop reads control lines from r and dispatches them until quit,
// EOF, or context cancellation.
func (s *System) RunControlLoop(ctx context.Context, r io.Reader) {
	source := simulator.NewChannelSource[string](16)
	loop := simulator.NewCommandLoop[string](source, simulator.CommandHandlerFunc[string](s.controlHandler))

	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			source.Submit(scanner.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.halt:
			return
		default:
		}
		if !loop.WaitAndHandle(ctx) {
			return
		}
	}
}
