// Package server implements the local status API of the voice client: health,
// the current capture session, request statistics, the effective
// configuration and Prometheus metrics.
package server
