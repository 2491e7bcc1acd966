// Package config defines the format-agnostic configuration model for the
// build orchestrator, along with the interfaces (Loader, Decoder) used to
// read configuration files from disk.
//
// Configuration is handled in two shapes. Raw configuration is a Map, which
// is what file decoders produce and what Merge layers together (inline flags
// over file values over defaults). Once layering is finished, Decode turns a
// Map into the typed UserConfig consumed by the resolver. Concrete decoders
// for JSON and YAML live here; HCL lives in its own package.
package config
