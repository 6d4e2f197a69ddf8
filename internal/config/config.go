// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/quillchat/quill/pkg/platform"
)

const (
	// AppName is the application name, used for config and data directories.
	AppName = "quill"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"

	// defaultFeedURL is the release metadata endpoint.
	defaultFeedURL = "https://updates.quillchat.dev/api/latest-release"
	// defaultGuideURL is the manual-update page.
	defaultGuideURL = "https://quillchat.dev/update"

	defaultCheckTimeout    = 60 * time.Second
	defaultDownloadTimeout = 10 * time.Minute
)

// ConfigDir returns the quill configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DataDir returns the directory for mutable application data. Downloaded
// update artifacts land in a subdirectory of it.
func DataDir() (string, error) {
	if dataDirOverride != "" {
		return dataDirOverride, nil
	}

	switch runtime.GOOS {
	case platform.Windows:
		if d := os.Getenv("LOCALAPPDATA"); d != "" {
			return filepath.Join(d, AppName), nil
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local", AppName), nil
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", AppName), nil
	default:
		if d := os.Getenv("XDG_DATA_HOME"); d != "" {
			return filepath.Join(d, AppName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share", AppName), nil
	}
}

// Defaults returns the built-in settings used when no config file exists.
func Defaults() Settings {
	return Settings{
		Updates: Updates{
			FeedURL:         defaultFeedURL,
			Channel:         ChannelStable,
			Disabled:        false,
			GuideURL:        defaultGuideURL,
			CheckTimeout:    defaultCheckTimeout,
			DownloadTimeout: defaultDownloadTimeout,
		},
	}
}

// Load reads settings from the config file (if present), environment
// variables, and defaults, then validates the result. A missing config file
// is not an error; an unreadable or invalid one is.
func Load() (*Settings, error) {
	v := viper.New()

	defaults := Defaults()
	v.SetDefault("updates.feed_url", defaults.Updates.FeedURL)
	v.SetDefault("updates.channel", string(defaults.Updates.Channel))
	v.SetDefault("updates.disabled", defaults.Updates.Disabled)
	v.SetDefault("updates.guide_url", defaults.Updates.GuideURL)
	v.SetDefault("updates.check_timeout", defaults.Updates.CheckTimeout)
	v.SetDefault("updates.download_timeout", defaults.Updates.DownloadTimeout)
	v.SetDefault("updates.scratch_dir", defaults.Updates.ScratchDir)

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFilePathOverride != "" {
		v.SetConfigFile(configFilePathOverride)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFilePathOverride, err)
		}
	} else {
		cfgDir, err := ConfigDir()
		if err != nil {
			return nil, err
		}

		v.SetConfigName(ConfigFileName)
		v.SetConfigType(ConfigFileExt)
		v.AddConfigPath(cfgDir)

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
			// No config file found, use defaults.
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := s.Updates.Validate(); err != nil {
		return nil, fmt.Errorf("validating update settings: %w", err)
	}

	return &s, nil
}
