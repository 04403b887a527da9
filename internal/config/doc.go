// Package config defines the format-agnostic pipeline model for the
// engine, along with the Loader interface for reading it from various
// sources.
//
// The config.Model is the single source of truth for the dag and
// executor packages. Concrete implementations of Loader, such as for
// HCL and YAML, are provided in separate packages.
package config
