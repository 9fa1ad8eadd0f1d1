// Package secrets resolves the completion API key from a file, the
// environment or the stored AI configuration.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Source lists the places a secret may come from. The first non-empty one in
// the order File, Env, Value wins.
type Source struct {
	// Name is used in error messages.
	Name string
	// Value is the key stored with the AI configuration.
	Value string
	// Env names an environment variable holding the key.
	Env string
	// File points to a file containing the key.
	File string
}

// Load returns the trimmed secret.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if env := strings.TrimSpace(src.Env); env != "" {
		if secret := strings.TrimSpace(os.Getenv(env)); secret != "" {
			return secret, nil
		}
	}

	secret := strings.TrimSpace(src.Value)
	if secret == "" {
		return "", fmt.Errorf("%s is not configured", name)
	}
	return secret, nil
}

// Mask hides all but the first three and last four characters of a key.
// Keys of eight characters or fewer are fully hidden.
func Mask(secret string) string {
	switch {
	case secret == "":
		return "not set"
	case len(secret) <= 8:
		return strings.Repeat("*", len(secret))
	default:
		return secret[:3] + strings.Repeat("*", 6) + secret[len(secret)-4:]
	}
}
