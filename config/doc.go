// Package config loads the timing and queue configuration for the hub core.
//
// Precedence, lowest to highest: built-in baseline, HUBCORE_* environment
// variables, optional hubcore.yaml in the working directory. The merged
// result is validated before use.
package config
