// Package process terminates the browser process trees started for
// rendering surfaces.
package process
