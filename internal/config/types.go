// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	// ChannelStable follows tagged stable releases.
	ChannelStable Channel = "stable"
	// ChannelBeta follows pre-release builds published to the beta feed.
	ChannelBeta Channel = "beta"
)

var (
	// ErrInvalidChannel is returned when a Channel value is not recognized.
	ErrInvalidChannel = errors.New("invalid update channel")
	// ErrInvalidFeedURL is returned when the feed URL cannot be parsed or is
	// not an http(s) URL.
	ErrInvalidFeedURL = errors.New("invalid feed URL")
	// ErrInvalidTimeout is returned when a timeout setting is zero or negative.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

type (
	// Channel selects which release feed the updater follows.
	Channel string

	// InvalidChannelError is returned when a Channel value is not recognized.
	// It wraps ErrInvalidChannel for errors.Is() compatibility.
	InvalidChannelError struct {
		Value Channel
	}

	// Updates holds every knob the update orchestrator reads. The zero value
	// is not usable; obtain one through Load or Defaults.
	Updates struct {
		// FeedURL is the release metadata endpoint.
		FeedURL string `mapstructure:"feed_url"`
		// Channel selects stable or beta releases.
		Channel Channel `mapstructure:"channel"`
		// Disabled turns the updater off entirely.
		Disabled bool `mapstructure:"disabled"`
		// GuideURL is the manual-update page offered when in-app install is
		// unavailable or has failed.
		GuideURL string `mapstructure:"guide_url"`
		// CheckTimeout bounds the metadata fetch.
		CheckTimeout time.Duration `mapstructure:"check_timeout"`
		// DownloadTimeout bounds the artifact download. Installer payloads
		// can be large, so this is far more generous than CheckTimeout.
		DownloadTimeout time.Duration `mapstructure:"download_timeout"`
		// ScratchDir is where downloaded artifacts are persisted before
		// launch. Empty means the platform data directory.
		ScratchDir string `mapstructure:"scratch_dir"`
	}

	// Settings is the root configuration document.
	Settings struct {
		Updates Updates `mapstructure:"updates"`
	}
)

// Error describes the invalid channel value and the accepted ones.
func (e *InvalidChannelError) Error() string {
	return fmt.Sprintf("invalid update channel %q (valid: %s, %s)", e.Value, ChannelStable, ChannelBeta)
}

// Unwrap returns ErrInvalidChannel so callers can use errors.Is.
func (e *InvalidChannelError) Unwrap() error { return ErrInvalidChannel }

// Valid reports whether the channel is one of the known values.
func (c Channel) Valid() bool {
	return c == ChannelStable || c == ChannelBeta
}

// Validate checks the update settings for values the orchestrator cannot
// work with. It returns the first problem found.
func (u Updates) Validate() error {
	if !u.Channel.Valid() {
		return &InvalidChannelError{Value: u.Channel}
	}

	parsed, err := url.Parse(u.FeedURL)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidFeedURL, u.FeedURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidFeedURL, u.FeedURL)
	}

	if u.CheckTimeout <= 0 {
		return fmt.Errorf("%w: check_timeout must be positive, got %s", ErrInvalidTimeout, u.CheckTimeout)
	}
	if u.DownloadTimeout <= 0 {
		return fmt.Errorf("%w: download_timeout must be positive, got %s", ErrInvalidTimeout, u.DownloadTimeout)
	}

	return nil
}
