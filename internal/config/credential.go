package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrAmbiguousCredential is returned when more than one key source is set.
	ErrAmbiguousCredential = errors.New("more than one credential source set")

	// ErrNoCredential is returned when no key source yields a value.
	ErrNoCredential = errors.New("no credential configured")
)

// Credential names where an API key comes from. Exactly one field should be
// set: Value is a literal (with ${ENV_VAR} expansion), Env names an
// environment variable and File names a file whose trimmed content is the key.
type Credential struct {
	Value string
	Env   string
	File  string
}

// IsZero reports whether no source is set.
func (c Credential) IsZero() bool {
	return c.Value == "" && c.Env == "" && c.File == ""
}

func (c Credential) sources() int {
	n := 0
	for _, s := range []string{c.Value, c.Env, c.File} {
		if s != "" {
			n++
		}
	}
	return n
}

// Resolve returns the key.
func (c Credential) Resolve() (string, error) {
	switch set := c.sources(); {
	case set == 0:
		return "", ErrNoCredential
	case set > 1:
		return "", ErrAmbiguousCredential
	}

	var key string
	switch {
	case c.Value != "":
		key = ResolveEnvVars(c.Value)
	case c.Env != "":
		key = os.Getenv(c.Env)
		if key == "" {
			return "", fmt.Errorf("%w: $%s is empty", ErrNoCredential, c.Env)
		}
	case c.File != "":
		data, err := os.ReadFile(c.File)
		if err != nil {
			return "", fmt.Errorf("read credential file: %w", err)
		}
		key = string(data)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrNoCredential
	}
	return key, nil
}
