//go:build !(unix || darwin || linux || freebsd || openbsd || netbsd)

// pkg/arena/arena_other.go
//
// Platforms without an anonymous-mmap syscall available through
// golang.org/x/sys/unix (e.g. windows, wasm) fall back to ordinary
// heap-backed chunks; the Arena's bump-allocation behavior is
// unaffected, only the chunk's backing storage changes.
package arena

func mapChunk(n int) (chunk, error) {
	return chunk{data: make([]byte, n)}, nil
}

func unmapChunk(c chunk) error {
	return nil
}
