package scripting

import (
	"fmt"
	"math"

	"github.com/dop251/goja"
)

// RoundInfo is the per-round context handed to the strategy script.
type RoundInfo struct {
	Index     int     `json:"index"`
	Balance   float64 `json:"balance"`
	Wager     float64 `json:"wager"`
	LastCrash float64 `json:"last_crash"`
	LastWin   bool    `json:"last_win"`
}

// Strategy hosts a user auto-cashout script. The script must define
// target(round) returning the multiplier to cash out at for that round; a
// value of 1 or below means ride the round to the crash.
type Strategy struct {
	vm *VM
}

// DefaultSource is the strategy used when no script is supplied: always
// cash out at 2x.
const DefaultSource = `function target(round) { return 2.0; }`

func NewStrategy(source string) (*Strategy, error) {
	if source == "" {
		source = DefaultSource
	}

	vm := NewVM()
	if err := vm.Execute(source); err != nil {
		return nil, err
	}

	fn := vm.runtime.Get("target")
	if fn == nil || goja.IsUndefined(fn) || goja.IsNull(fn) {
		return nil, fmt.Errorf("target() function is not defined")
	}
	if _, ok := goja.AssertFunction(fn); !ok {
		return nil, fmt.Errorf("target is not a function")
	}

	return &Strategy{vm: vm}, nil
}

// Target calls the script's target() for one round. Non-finite or absurd
// results degrade to "never cash out" rather than failing the run.
func (s *Strategy) Target(round RoundInfo) (float64, error) {
	var result float64

	err := s.vm.runWithTimeout(scriptCallTimeout, func() error {
		s.vm.mu.Lock()
		defer s.vm.mu.Unlock()

		fn := s.vm.runtime.Get("target")
		callable, ok := goja.AssertFunction(fn)
		if !ok {
			return fmt.Errorf("target is not a function")
		}

		arg := s.vm.runtime.ToValue(map[string]interface{}{
			"index":      round.Index,
			"balance":    round.Balance,
			"wager":      round.Wager,
			"last_crash": round.LastCrash,
			"last_win":   round.LastWin,
		})

		v, err := callable(goja.Undefined(), arg)
		if err != nil {
			return fmt.Errorf("target() error: %w", err)
		}

		result = v.ToFloat()
		return nil
	})
	if err != nil {
		return 0, err
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		result = 0
	}

	return result, nil
}

// Logs exposes the script's log buffer.
func (s *Strategy) Logs() []LogEntry {
	return s.vm.Logs()
}
