// features.go - Build and machine capability report
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"io"
	"maps"
	"runtime"
	"slices"
)

// compiledFeatures holds the host backends registered by init() in the
// build-tagged backend files.
var compiledFeatures []string

// machineFeatures lists what the emulated machine can be configured with,
// independent of build tags.
func machineFeatures() []string {
	out := []string{"cpu:8086"}
	for f := FeatureInstr186; f != 0 && f <= FeatureInstr186; f <<= 1 {
		out = append(out, "cpu:"+f.String())
	}
	for _, name := range slices.Sorted(maps.Keys(devicePortRanges)) {
		out = append(out, "dev:"+name)
	}
	return append(out, "dev:lua")
}

func writeFeatures(w io.Writer) {
	fmt.Fprintf(w, "IntuitionXT %s\n", Version)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Machine:")
	for _, f := range machineFeatures() {
		fmt.Fprintf(w, "  %s\n", f)
	}

	fmt.Fprintln(w, "Host backends:")
	host := slices.Sorted(slices.Values(compiledFeatures))
	for _, f := range host {
		fmt.Fprintf(w, "  %s\n", f)
	}
	if len(host) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
}
