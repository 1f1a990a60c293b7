package main

import (
	"strings"

	"github.com/mlocke/vfr-api-sub009/internal/providers"
	"github.com/mlocke/vfr-api-sub009/internal/providers/sim"
)

// newAdapter maps a configured provider name to an adapter implementation.
// Vendor adapters live in the API service that embeds this engine; the CLI
// binary links only the simulated provider, so any name prefixed "sim" runs
// offline against synthesized data.
func newAdapter(name string) (providers.Provider, bool) {
	if strings.HasPrefix(name, "sim") {
		return sim.New(name), true
	}
	return nil, false
}
