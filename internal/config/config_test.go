// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWhenNoConfigFile(t *testing.T) {
	SetConfigDirOverride(t.TempDir())
	t.Cleanup(Reset)

	s, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Defaults()
	if s.Updates.FeedURL != want.Updates.FeedURL {
		t.Errorf("FeedURL = %q, want %q", s.Updates.FeedURL, want.Updates.FeedURL)
	}
	if s.Updates.Channel != ChannelStable {
		t.Errorf("Channel = %q, want %q", s.Updates.Channel, ChannelStable)
	}
	if s.Updates.CheckTimeout != 60*time.Second {
		t.Errorf("CheckTimeout = %s, want 60s", s.Updates.CheckTimeout)
	}
	if s.Updates.Disabled {
		t.Error("Disabled should default to false")
	}
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	content := []byte(`updates:
  channel: beta
  disabled: true
  check_timeout: 30s
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	s, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Updates.Channel != ChannelBeta {
		t.Errorf("Channel = %q, want %q", s.Updates.Channel, ChannelBeta)
	}
	if !s.Updates.Disabled {
		t.Error("Disabled should be true")
	}
	if s.Updates.CheckTimeout != 30*time.Second {
		t.Errorf("CheckTimeout = %s, want 30s", s.Updates.CheckTimeout)
	}
	// Unset keys keep their defaults.
	if s.Updates.FeedURL != Defaults().Updates.FeedURL {
		t.Errorf("FeedURL = %q, want default", s.Updates.FeedURL)
	}
}

func TestDataDir_Override(t *testing.T) {
	dir := t.TempDir()
	SetDataDirOverride(dir)
	t.Cleanup(Reset)

	got, err := DataDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != dir {
		t.Errorf("DataDir() = %q, want the override %q", got, dir)
	}
}

func TestLoad_InvalidChannelRejected(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	content := []byte("updates:\n  channel: weekly\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	_, err := Load()
	if !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("Load() error = %v, want ErrInvalidChannel", err)
	}
}

func TestLoad_ExplicitConfigFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("updates:\n  feed_url: https://mirror.example.com/feed\n"), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	SetConfigFilePathOverride(path)
	t.Cleanup(Reset)

	s, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Updates.FeedURL != "https://mirror.example.com/feed" {
		t.Errorf("FeedURL = %q, want mirror URL", s.Updates.FeedURL)
	}
}

func TestLoad_MissingExplicitConfigFileFails(t *testing.T) {
	SetConfigFilePathOverride(filepath.Join(t.TempDir(), "nope.yaml"))
	t.Cleanup(Reset)

	if _, err := Load(); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
