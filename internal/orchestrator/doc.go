// Package orchestrator runs the production build and the development loop
// for a resolved project.
//
// Build bundles every task once, in order, then stages the renderer and
// runs the packager for desktop applications. Dev bundles every task in
// watch mode, launches the application as a child process and restarts it
// after every successful rebuild. The first success of each task is the
// initial build and never causes a restart.
package orchestrator
