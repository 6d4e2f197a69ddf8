// SPDX-License-Identifier: MPL-2.0

// Package config loads and validates quill's update settings. Settings come
// from a YAML config file in the platform config directory, QUILL_* env
// variables, and built-in defaults, merged in that order of precedence via
// Viper.
package config
