// Package main is the entry point for the eventfinder agent.
package main

import (
	"os"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	// Allow overriding version via environment (e.g., injected by container build/runtime)
	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
