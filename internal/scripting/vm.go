package scripting

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// LogEntry represents a single log message from the script.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// VM wraps a goja runtime with sandbox restrictions and global function
// injection. A VM is single-goroutine; run one per worker.
type VM struct {
	runtime *goja.Runtime
	mu      sync.Mutex

	logs    []LogEntry
	logsMu  sync.Mutex
	maxLogs int
}

const (
	scriptInitTimeout = 2 * time.Second
	scriptCallTimeout = 1 * time.Second
)

// NewVM creates a sandboxed goja runtime with global functions injected.
func NewVM() *VM {
	vm := &VM{
		runtime: goja.New(),
		maxLogs: 500,
	}
	vm.injectGlobalFunctions()
	return vm
}

// injectGlobalFunctions registers log and console.log, and blocks globals
// that would let a strategy escape the sandbox.
func (vm *VM) injectGlobalFunctions() {
	vm.runtime.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		vm.logsMu.Lock()
		if len(vm.logs) >= vm.maxLogs {
			vm.logs = vm.logs[1:]
		}
		vm.logs = append(vm.logs, LogEntry{Time: time.Now(), Message: msg})
		vm.logsMu.Unlock()

		return goja.Undefined()
	})

	// console.log — alias for log
	console := vm.runtime.NewObject()
	console.Set("log", vm.runtime.Get("log"))
	vm.runtime.Set("console", console)

	// Math is already available in goja by default.
	// Block dangerous globals.
	vm.runtime.Set("require", goja.Undefined())
	vm.runtime.Set("fetch", goja.Undefined())
	vm.runtime.Set("XMLHttpRequest", goja.Undefined())
	vm.runtime.Set("eval", goja.Undefined())
	vm.runtime.Set("Function", goja.Undefined())
}

// Execute runs strategy source code. Called once per VM to register the
// target() function.
func (vm *VM) Execute(source string) error {
	return vm.runWithTimeout(scriptInitTimeout, func() error {
		vm.mu.Lock()
		defer vm.mu.Unlock()

		_, err := vm.runtime.RunString(source)
		if err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		return nil
	})
}

// Logs returns a copy of the script's log buffer.
func (vm *VM) Logs() []LogEntry {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()

	out := make([]LogEntry, len(vm.logs))
	copy(out, vm.logs)
	return out
}

// runWithTimeout interrupts the runtime if fn does not return in time.
func (vm *VM) runWithTimeout(timeout time.Duration, fn func() error) error {
	timer := time.AfterFunc(timeout, func() {
		vm.runtime.Interrupt("script timeout")
	})
	defer func() {
		timer.Stop()
		vm.runtime.ClearInterrupt()
	}()

	err := fn()

	var interrupted *goja.InterruptedError
	if err != nil {
		if ok := asInterrupted(err, &interrupted); ok {
			return fmt.Errorf("script timed out after %s", timeout)
		}
	}

	return err
}

func asInterrupted(err error, target **goja.InterruptedError) bool {
	for err != nil {
		if ie, ok := err.(*goja.InterruptedError); ok {
			*target = ie
			return true
		}

		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
