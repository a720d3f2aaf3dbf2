package main

import (
	"testing"
)

func TestRootCommandRegistration(t *testing.T) {
	expected := []string{"dispatch", "watch", "process", "ask", "meeting", "cancel", "auth"}
	for _, name := range expected {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q not registered on root", name)
		}
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "user", "json", "debug"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s flag not found on root command", name)
		}
	}
}

func TestResolveUserID(t *testing.T) {
	origUser := userID
	defer func() { userID = origUser }()

	userID = "flag-user"
	t.Setenv("RENA_USER", "env-user")
	if got := resolveUserID(); got != "flag-user" {
		t.Errorf("flag should win, got %q", got)
	}

	userID = ""
	if got := resolveUserID(); got != "env-user" {
		t.Errorf("RENA_USER should win over USER, got %q", got)
	}

	t.Setenv("RENA_USER", "")
	t.Setenv("USER", "os-user")
	if got := resolveUserID(); got != "os-user" {
		t.Errorf("USER fallback expected, got %q", got)
	}

	t.Setenv("USER", "")
	if got := resolveUserID(); got != "default" {
		t.Errorf("default fallback expected, got %q", got)
	}
}
