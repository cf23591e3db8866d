// Package cli handles command-line argument parsing for the flowgridgo
// binary.
package cli
