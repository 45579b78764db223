package internal

import (
	"strings"
	"testing"
)

func TestUserAgentLocal(t *testing.T) {
	if !IsLocal() {
		t.Skip("linker variables are set")
	}
	if got := UserAgent(); got != "husk/local" {
		t.Fatalf("UserAgent() = %q, want husk/local", got)
	}
	if got := VersionString(); got != defaultLocalBuild {
		t.Fatalf("VersionString() = %q, want %q", got, defaultLocalBuild)
	}
}

func TestVersionStripsPrefix(t *testing.T) {
	saved := version
	defer func() { version = saved }()

	version = " V1.2.3 "
	if got := Version(); got != "1.2.3" {
		t.Fatalf("Version() = %q, want 1.2.3", got)
	}

	version = ""
	if got := Version(); got != defaultUndefined {
		t.Fatalf("Version() = %q, want %q", got, defaultUndefined)
	}
}

func TestVersionString(t *testing.T) {
	savedVersion, savedStage, savedCommit := version, stage, gitCommit
	defer func() { version, stage, gitCommit = savedVersion, savedStage, savedCommit }()

	version, stage, gitCommit = "v0.4.0", "main", "abc123"
	got := VersionString()
	if !strings.HasPrefix(got, "0.4.0 abc123 [") {
		t.Fatalf("VersionString() = %q, want 0.4.0 abc123 [<arch>]", got)
	}

	stage = "staging"
	got = VersionString()
	if !strings.HasPrefix(got, "0.4.0+staging abc123 [") {
		t.Fatalf("VersionString() = %q, want 0.4.0+staging prefix", got)
	}

	if ua := UserAgent(); ua != "husk/0.4.0" {
		t.Fatalf("UserAgent() = %q, want husk/0.4.0", ua)
	}
}
