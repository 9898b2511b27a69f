package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// TokenEnv is the environment variable holding the API token.
const TokenEnv = "COSYNC_TOKEN"

// ErrNoToken is returned when no API token can be resolved.
var ErrNoToken = errors.New("config: no API token (set COSYNC_TOKEN or token_file)")

// ResolveToken returns the API token, resolving in order:
//  1. the COSYNC_TOKEN environment variable
//  2. the contents of tokenFile
//
// The returned token must never be logged.
func ResolveToken(tokenFile string) (string, error) {
	if token := os.Getenv(TokenEnv); token != "" {
		return strings.TrimSpace(token), nil
	}
	if tokenFile == "" {
		return "", ErrNoToken
	}
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}
