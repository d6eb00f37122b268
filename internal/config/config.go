package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config is the process-level configuration, loaded once at startup.
type Config struct {
	Env        string
	HTTPServer HTTPServer
	Entropy    Entropy
	StorePath  string
	Game       Game
}

type HTTPServer struct {
	Address     string
	Timeout     time.Duration
	IdleTimeout time.Duration
}

// Entropy configures the remote quantum random number endpoint. An empty
// Endpoint disables the remote path entirely; draws then come from the
// local fallback generator.
type Entropy struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Game holds the fixed round tunables. These are set at initialization and
// never mutated at runtime.
type Game struct {
	WagerCost        decimal.Decimal
	StartingBalance  decimal.Decimal
	MaxMultiplier    float64
	HouseEdge        float64
	TargetMultiplier float64
	TargetTime       float64 // seconds to reach TargetMultiplier
	MinFetchDelay    time.Duration
	SettleDisplay    time.Duration
	TickInterval     time.Duration
}

// DefaultGame returns the production round tunables.
func DefaultGame() Game {
	return Game{
		WagerCost:        decimal.NewFromInt(10),
		StartingBalance:  decimal.NewFromInt(100),
		MaxMultiplier:    25.0,
		HouseEdge:        0.06,
		TargetMultiplier: 3.4,
		TargetTime:       20.0,
		MinFetchDelay:    900 * time.Millisecond,
		SettleDisplay:    3 * time.Second,
		TickInterval:     50 * time.Millisecond,
	}
}

// devEntropyEndpoint is used in dev when no endpoint is configured
// explicitly; local and prod require an explicit QRNG_ENDPOINT.
const devEntropyEndpoint = "https://api.quantumnumbers.anu.edu.au"

// MustLoad reads configuration from the environment, with an optional .env
// file for local development. It never returns an invalid config.
func MustLoad() *Config {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", EnvLocal)

	endpoint := getEnv("QRNG_ENDPOINT", "")
	if endpoint == "" && env == EnvDev {
		endpoint = devEntropyEndpoint
	}

	return &Config{
		Env: env,
		HTTPServer: HTTPServer{
			Address:     getEnv("HTTP_ADDRESS", ":8080"),
			Timeout:     getDuration("HTTP_TIMEOUT", 5*time.Second),
			IdleTimeout: getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		},
		Entropy: Entropy{
			Endpoint: endpoint,
			APIKey:   getEnv("QRNG_API_KEY", ""),
			Timeout:  getDuration("QRNG_TIMEOUT", 4*time.Second),
		},
		StorePath: getEnv("STORE_PATH", "rounds.db"),
		Game:      DefaultGame(),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
