package config

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("CFG_TEST_KEY", "value")

	if got := getEnv("CFG_TEST_KEY", "fallback"); got != "value" {
		t.Errorf("want value, got %s", got)
	}
	if got := getEnv("CFG_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("want fallback, got %s", got)
	}
}

func TestGetDuration(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{
			name:  "Valid",
			value: "250ms",
			want:  250 * time.Millisecond,
		},
		{
			name:  "Empty",
			value: "",
			want:  time.Second,
		},
		{
			name:  "Garbage",
			value: "soon",
			want:  time.Second,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("CFG_TEST_DURATION", tc.value)

			got := getDuration("CFG_TEST_DURATION", time.Second)
			if got != tc.want {
				t.Errorf("unexpected result, want: %s, got: %s", tc.want, got)
			}
		})
	}
}

func TestDefaultGameIsPlayable(t *testing.T) {
	game := DefaultGame()

	if game.StartingBalance.LessThan(game.WagerCost) {
		t.Error("starting balance must cover at least one wager")
	}
	if game.HouseEdge <= 0 || game.HouseEdge >= 1 {
		t.Errorf("house edge out of range: %f", game.HouseEdge)
	}
	if game.MaxMultiplier <= game.TargetMultiplier {
		t.Error("cap must sit above the curve's reference point")
	}
	if game.TickInterval <= 0 || game.MinFetchDelay < 0 {
		t.Error("timing tunables must be positive")
	}
}
