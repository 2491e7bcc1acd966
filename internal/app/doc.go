// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the execution lifecycle of the dev and build
// commands, decoupled from any specific entrypoint like a CLI.
package app
