// Package health implements the container HEALTHCHECK probe against the
// playout engine's management endpoint.
package health
