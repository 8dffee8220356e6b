//go:build amd64 || arm64 || 386 || arm || riscv64 || loong64 || mipsle || mips64le || ppc64le || wasm

// le_check.go - IntuitionXT requires a little-endian host.
//
// The speaker backend hands oto its float32 sample buffer as raw bytes in
// FormatFloat32LE. be_unsupported.go fails the build everywhere else.

package main
