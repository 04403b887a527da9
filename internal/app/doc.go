// Package app wires the pipeline loader, graph builder, executor and
// reporting together into one runnable application with an isolated
// logger and injectable dependencies for testing.
package app
