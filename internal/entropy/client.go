package entropy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/qubitplay/quantum-crash-go/internal/config"
	"github.com/qubitplay/quantum-crash-go/internal/lib/logger/sl"
)

// Sample is one entropy draw. Quantum reports provenance: true when the
// value came from the remote quantum endpoint, false when it came from the
// local fallback generator.
type Sample struct {
	Value   uint16
	Quantum bool
}

// Client draws 16-bit random integers, preferring a remote quantum random
// number service and falling back to local secure randomness on any failure.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      *slog.Logger
}

func New(cfg config.Entropy, log *slog.Logger) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   LoadAPIKey(cfg.APIKey),
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}
}

// Draw resolves one 16-bit sample. It never fails: every remote error path
// degrades to the local generator, observable only through Sample.Quantum.
func (c *Client) Draw(ctx context.Context) Sample {
	const op = "entropy.Draw"

	if c.endpoint == "" {
		return Sample{Value: localUint16()}
	}

	value, err := c.drawRemote(ctx)
	if err != nil {
		c.log.Warn("quantum draw failed, falling back to local generator",
			slog.String("op", op), sl.Err(err))

		return Sample{Value: localUint16()}
	}

	return Sample{Value: value, Quantum: true}
}

type drawRequest struct {
	Encoding       string `json:"encoding"`
	Format         string `json:"format"`
	BitsPerBlock   int    `json:"bits_per_block"`
	NumberOfBlocks int    `json:"number_of_blocks"`
}

type drawResponse struct {
	Encoding      string         `json:"encoding"`
	RandomNumbers []randomNumber `json:"random_numbers"`
}

// randomNumber carries the drawn value in up to four textual radices. The
// service may omit any subset; decoding tries them in priority order.
type randomNumber struct {
	Decimal     string `json:"decimal"`
	Hexadecimal string `json:"hexadecimal"`
	Binary      string `json:"binary"`
	Octal       string `json:"octal"`
}

func (c *Client) drawRemote(ctx context.Context) (uint16, error) {
	body, err := json.Marshal(drawRequest{
		Encoding:       "base64",
		Format:         "decimal",
		BitsPerBlock:   16,
		NumberOfBlocks: 1,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed drawResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.RandomNumbers) == 0 {
		return 0, fmt.Errorf("response carries no random numbers")
	}

	value, err := parseRecord(parsed.RandomNumbers[0], parsed.Encoding)
	if err != nil {
		return 0, err
	}

	return clamp16(value), nil
}

// parseRecord decodes the envelope encoding, then tries the radices in
// priority order: decimal, hexadecimal, binary, octal. The first field that
// decodes to a finite number wins.
func parseRecord(rec randomNumber, encoding string) (float64, error) {
	fields := []struct {
		raw  string
		base int
	}{
		{rec.Decimal, 10},
		{rec.Hexadecimal, 16},
		{rec.Binary, 2},
		{rec.Octal, 8},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}

		text, err := decodeEnvelope(f.raw, encoding)
		if err != nil || text == "" {
			continue
		}

		if f.base == 10 {
			v, err := strconv.ParseFloat(text, 64)
			if err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
				return v, nil
			}
			continue
		}

		v, err := strconv.ParseUint(text, f.base, 64)
		if err == nil {
			return float64(v), nil
		}
	}

	return 0, fmt.Errorf("no parseable field in random number record")
}

func decodeEnvelope(raw, encoding string) (string, error) {
	if encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(decoded)), nil
	}

	return strings.TrimSpace(raw), nil
}

// clamp16 maps an arbitrary parsed number into the 16-bit range: NaN and
// negatives pin to 0, oversize values wrap modulo 65536, anything else
// rounds to the nearest integer.
func clamp16(v float64) uint16 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}

	n := int64(math.Round(v))
	if n < 0 {
		return 0
	}

	return uint16(n % 65536)
}
