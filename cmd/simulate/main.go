// Command simulate runs the round outcome engine offline against an
// auto-cashout strategy script and prints aggregate statistics. Useful for
// verifying the realized house edge and for tuning strategies without a
// running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/qubitplay/quantum-crash-go/internal/config"
	"github.com/qubitplay/quantum-crash-go/internal/engine"
	"github.com/qubitplay/quantum-crash-go/internal/entropy"
	"github.com/qubitplay/quantum-crash-go/internal/scripting"
)

type roundResult struct {
	crash  float64
	target float64
	win    bool
	payout decimal.Decimal
}

func main() {
	var (
		scriptPath = flag.String("script", "", "path to a strategy script defining target(round)")
		rounds     = flag.Int("rounds", 100000, "number of rounds to simulate")
		workers    = flag.Int("workers", runtime.NumCPU(), "number of parallel workers")
	)
	flag.Parse()

	source := scripting.DefaultSource
	if *scriptPath != "" {
		raw, err := os.ReadFile(*scriptPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read script: %v\n", err)
			os.Exit(1)
		}
		source = string(raw)
	}

	game := config.DefaultGame()
	wager, _ := game.WagerCost.Float64()
	balance, _ := game.StartingBalance.Float64()
	k := engine.GrowthRate(game.TargetMultiplier, game.TargetTime)

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	draws := entropy.New(config.Entropy{}, log)

	if *workers < 1 {
		*workers = 1
	}

	jobs := make(chan int)
	results := make(chan roundResult, *workers)

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		strategy, err := scripting.NewStrategy(source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load strategy: %v\n", err)
			os.Exit(1)
		}

		wg.Add(1)
		go func(strategy *scripting.Strategy) {
			defer wg.Done()

			lastCrash := 0.0
			lastWin := false

			for idx := range jobs {
				sample := draws.Draw(context.Background())
				crash := engine.CrashPoint(sample.Value, game.HouseEdge, game.MaxMultiplier)

				target, err := strategy.Target(scripting.RoundInfo{
					Index:     idx,
					Balance:   balance,
					Wager:     wager,
					LastCrash: lastCrash,
					LastWin:   lastWin,
				})
				if err != nil {
					fmt.Fprintf(os.Stderr, "strategy error on round %d: %v\n", idx, err)
					os.Exit(1)
				}

				res := roundResult{crash: crash, target: target}

				// A cash-out lands only if the target is reached strictly
				// before the crash threshold; ties go to the crash.
				if target > 1.0 && target < crash {
					res.win = true
					res.payout = game.WagerCost.Mul(decimal.NewFromFloat(target)).Round(2)
				} else {
					res.payout = decimal.Zero
				}

				lastCrash = crash
				lastWin = res.win
				results <- res
			}
		}(strategy)
	}

	go func() {
		for i := 0; i < *rounds; i++ {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var (
		wins        int
		totalWager  = decimal.Zero
		totalPayout = decimal.Zero
		maxCrash    = 0.0
		sumCrash    = 0.0
		buckets     = map[string]int{}
	)

	for res := range results {
		totalWager = totalWager.Add(game.WagerCost)
		totalPayout = totalPayout.Add(res.payout)
		if res.win {
			wins++
		}

		sumCrash += res.crash
		if res.crash > maxCrash {
			maxCrash = res.crash
		}
		buckets[bucketFor(res.crash)]++
	}

	rtp := 0.0
	if !totalWager.IsZero() {
		rtp, _ = totalPayout.Div(totalWager).Float64()
	}

	fmt.Printf("rounds:        %d\n", *rounds)
	fmt.Printf("wins:          %d (%.2f%%)\n", wins, 100*float64(wins)/float64(*rounds))
	fmt.Printf("total wagered: %s\n", totalWager.StringFixed(2))
	fmt.Printf("total paid:    %s\n", totalPayout.StringFixed(2))
	fmt.Printf("realized RTP:  %.4f (house keeps %.4f)\n", rtp, 1-rtp)
	fmt.Printf("mean crash:    %.4f\n", sumCrash/float64(*rounds))
	fmt.Printf("max crash:     %.2f\n", maxCrash)
	fmt.Printf("time to cap:   %.1fs\n", math.Log(game.MaxMultiplier)/k)

	fmt.Println("\ncrash distribution:")
	for _, name := range bucketOrder {
		fmt.Printf("  %-8s %d\n", name, buckets[name])
	}
}

var bucketOrder = []string{"<1.5x", "<2x", "<3x", "<5x", "<10x", "<25x", "=25x"}

func bucketFor(crash float64) string {
	switch {
	case crash < 1.5:
		return "<1.5x"
	case crash < 2:
		return "<2x"
	case crash < 3:
		return "<3x"
	case crash < 5:
		return "<5x"
	case crash < 10:
		return "<10x"
	case crash < 25:
		return "<25x"
	default:
		return "=25x"
	}
}
