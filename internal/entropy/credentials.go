package entropy

import (
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "quantum-crash-go"
	keyringUser    = "qrng-api-key"
)

// LoadAPIKey resolves the QRNG API key from the OS keychain, falling back
// to the value supplied by the environment. Either may be empty; the client
// simply omits the credential header in that case.
func LoadAPIKey(envValue string) string {
	if v, err := keyring.Get(keyringService, keyringUser); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}

	return strings.TrimSpace(envValue)
}

// StoreAPIKey persists the QRNG API key in the OS keychain.
func StoreAPIKey(value string) error {
	return keyring.Set(keyringService, keyringUser, strings.TrimSpace(value))
}
