// Package resolve turns layered user configuration into one immutable
// ResolvedConfig.
//
// Resolution loads the project config file (or evaluates its factory),
// merges the inline configuration over it, locates and validates the main
// file, and derives the bundler tasks, packager settings, renderer settings
// and debug settings the orchestrator runs with. Every failure that should
// stop a run before anything is built is reported as a *ConfigError.
package resolve
