/*
Package sandbox runs playground scripts inside an embedded JavaScript engine.

# Overview

Every run gets a fresh goja VM. The script is compiled into an execution unit,
a function whose parameters are the collaborators the script may use:

	(function(console, React, ReactDOM, mountNode) { ...script... })

The unit is called once. Anything the script throws, including syntax errors,
stack overflows and watchdog interrupts, is captured as a FaultRecord; Go code
calling Execute never sees a panic or an error for user faults.

# Components

  - Console: substitute console that appends OutputRecords to an OutputLog
  - Transformer: decides whether source needs JSX compilation and compiles it with esbuild
  - DOM and Target: a private document per playground with one mount element
  - React runtime: createElement, fragments, hooks and roots rendered into the DOM
  - Event loop: setTimeout/setInterval/queueMicrotask after the synchronous phase
  - Pool: bounds how many synchronous phases run at once

# Threading

A goja VM is not goroutine-safe. The synchronous phase runs on the caller's
goroutine; once it returns, pending timers run on a loop goroutine owned by
the Execution. Callers must Cancel and Wait on an Execution before touching
its Target again (Target.Clear runs effect cleanups on the same VM).

# Limits

  - Config.Timeout bounds the synchronous phase and each later callback
  - Config.AsyncTimeout bounds how long timers may keep firing
  - Config.MaxCallStackSize bounds recursion
  - Config.MaxOutputRecords bounds the output log

The VM is a convenience boundary, not a security boundary: there is no
filesystem or network API to reach, but nothing else is isolated.

# Usage Example

	rt := sandbox.New(sandbox.DefaultConfig())
	target := sandbox.NewTarget()
	out := sandbox.NewOutputLog(1, 1000, nil)

	exec := rt.Execute(ctx, script, target, out)
	exec.Wait()
	if f := exec.Fault(); f != nil {
		log.Println(f.Message)
	}
*/
package sandbox
