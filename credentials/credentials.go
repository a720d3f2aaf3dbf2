// Package credentials stores service API keys in the system keyring:
// macOS Keychain, Windows Credential Manager, or Linux Secret Service.
//
// For CI and headless environments the keyring can be bypassed per service
// with RENA_<SERVICE>_API_KEY environment variables.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const keyringService = "rena"

// Known credential names.
const (
	ServiceSynthesis     = "synthesis"
	ServiceTranscription = "transcription"
	ServiceEmbedding     = "embedding"
)

// Common errors.
var (
	// ErrNoCredentials is returned when no key is stored for a service.
	ErrNoCredentials = errors.New("no credentials stored")
	// ErrKeyringUnavailable indicates the system keyring is not available.
	ErrKeyringUnavailable = errors.New("system keyring unavailable")
)

// Store manages API keys for the external services.
type Store struct{}

// NewStore creates a credential store backed by the system keyring.
func NewStore() *Store {
	return &Store{}
}

// Get returns the API key for a service. The RENA_<SERVICE>_API_KEY
// environment variable takes precedence over the keyring.
func (s *Store) Get(service string) (string, error) {
	if key := os.Getenv(envVar(service)); key != "" {
		return key, nil
	}

	key, err := keyring.Get(keyringService, service)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoCredentials
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return key, nil
}

// Set stores the API key for a service.
func (s *Store) Set(service, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("api key is empty")
	}
	if err := keyring.Set(keyringService, service, key); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Delete removes the API key for a service. Deleting an absent key is not an
// error.
func (s *Store) Delete(service string) error {
	err := keyring.Delete(keyringService, service)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// PromptAPIKey reads an API key from the terminal with echo disabled,
// falling back to plain line input when stdin is not a terminal.
func PromptAPIKey(service string) (string, error) {
	fmt.Printf("API key for %s: ", service)

	keyBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err == nil {
		return strings.TrimSpace(string(keyBytes)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading api key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func envVar(service string) string {
	return "RENA_" + strings.ToUpper(service) + "_API_KEY"
}
