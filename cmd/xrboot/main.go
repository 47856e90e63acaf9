// Package main is the entry point for xrboot, the XR runtime bootstrap
// sequencer. It probes the configured runtime for immersive session support,
// starts it when supported and reports the outcome.
package main

func main() {
	Execute()
}
