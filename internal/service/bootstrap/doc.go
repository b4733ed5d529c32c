// Package bootstrap starts the playout engine on every container start.
//
// It checks a state-marker file inside the durable storage directory: when
// the marker is absent it performs one-time initialization of the engine's
// persistent state under an exclusive lock, applying the configured profile;
// when the marker is present the initialization is skipped entirely. Either
// way the engine is then exec'd in the foreground bound to the configured
// listen address, and the orchestrator ceases to exist as a process.
package bootstrap
