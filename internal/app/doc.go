// Package app wires configuration, logging, the step registry and the
// workflow loader into a runnable application instance.
package app
