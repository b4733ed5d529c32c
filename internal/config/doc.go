// Package config defines the bootstrap profile applied on first-run
// initialization of the playout engine and provides helpers to load,
// validate and save it in YAML format.
//
// The Config type enumerates every recognized option: administrator
// identity, contact email, the four content directories, the five
// mail-relay settings, the listen address and the durable-storage layout.
package config
