//go:build !(amd64 || arm64 || 386 || arm || riscv64 || loong64 || mipsle || mips64le || ppc64le || wasm)

package main

// The oto sample path reinterprets []float32 as little-endian bytes.
var _ = "IntuitionXT requires a little-endian architecture" + 1
