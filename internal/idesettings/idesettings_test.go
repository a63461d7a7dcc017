package idesettings_test

import (
	"testing"

	"github.com/cursorcli-mcp/workspace-server/internal/idesettings"
)

func TestResolveEnv_ExpandsFromProcessEnvironment(t *testing.T) {
	t.Setenv("IDESETTINGS_TEST_TOKEN", "secret-value")

	resolved, err := idesettings.ResolveEnv(map[string]string{
		"API_TOKEN": "${IDESETTINGS_TEST_TOKEN}",
	}, idesettings.Strict)
	if err != nil {
		t.Fatalf("ResolveEnv: %v", err)
	}
	if resolved["API_TOKEN"] != "secret-value" {
		t.Errorf("API_TOKEN = %q, want secret-value", resolved["API_TOKEN"])
	}
}

func TestResolveEnv_StrictFailsOnMissingVariable(t *testing.T) {
	_, err := idesettings.ResolveEnv(map[string]string{
		"X": "${IDESETTINGS_DEFINITELY_UNSET}",
	}, idesettings.Strict)
	if err == nil {
		t.Fatal("expected an error for a missing variable in strict mode")
	}
}

func TestResolveEnv_LenientSubstitutesEmptyString(t *testing.T) {
	resolved, err := idesettings.ResolveEnv(map[string]string{
		"X": "prefix-${IDESETTINGS_DEFINITELY_UNSET}-suffix",
	}, idesettings.Lenient)
	if err != nil {
		t.Fatalf("ResolveEnv: %v", err)
	}
	if resolved["X"] != "prefix--suffix" {
		t.Errorf("X = %q, want prefix--suffix", resolved["X"])
	}
}

func TestResolveServerEntry_ResolvesEnvOnly(t *testing.T) {
	t.Setenv("IDESETTINGS_TEST_TOKEN", "secret-value")

	entry := idesettings.ServerEntry{
		Command: "some-tool",
		Args:    []string{"--flag"},
		Env:     map[string]string{"TOKEN": "${IDESETTINGS_TEST_TOKEN}"},
	}
	resolved, err := idesettings.ResolveServerEntry(entry, idesettings.Strict)
	if err != nil {
		t.Fatalf("ResolveServerEntry: %v", err)
	}
	if resolved.Command != "some-tool" || len(resolved.Args) != 1 {
		t.Errorf("non-env fields should be untouched, got %+v", resolved)
	}
	if resolved.Env["TOKEN"] != "secret-value" {
		t.Errorf("TOKEN = %q, want secret-value", resolved.Env["TOKEN"])
	}
}

func TestModeFromConfig(t *testing.T) {
	if idesettings.ModeFromConfig("strict") != idesettings.Strict {
		t.Error("expected \"strict\" to map to Strict")
	}
	if idesettings.ModeFromConfig("lenient") != idesettings.Lenient {
		t.Error("expected \"lenient\" to map to Lenient")
	}
	if idesettings.ModeFromConfig("") != idesettings.Lenient {
		t.Error("expected unrecognised mode to default to Lenient")
	}
}
