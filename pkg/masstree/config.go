// pkg/masstree/config.go
package masstree

// Config holds tree-wide configuration, matching the teacher's
// functional-options style for its own NodeConfig/DefaultNodeConfig
// (pkg/cowbtree/node.go). There is no file, environment variable, or
// flag parsing here (spec.md §6): only cmd/masstreedb reads flags, and
// translates them into these options.
//
// There is no arena-chunk-size option here: the core owns no Allocator
// collaborator of its own (see tree.go's doc comment). pkg/arena's
// chunk size is instead configured where pkg/arena is actually used,
// at pkg/mtstore.
type Config struct {
	// MaxKeyLen bounds key length (spec.md §3: "len <= implementation
	// -defined max (>= 2^16)").
	MaxKeyLen int
}

// DefaultConfig returns the default tree configuration.
func DefaultConfig() Config {
	return Config{
		MaxKeyLen: 1 << 20,
	}
}

// Option configures a Tree at Create time.
type Option func(*Config)

// WithMaxKeyLen overrides the maximum accepted key length.
func WithMaxKeyLen(n int) Option {
	return func(c *Config) { c.MaxKeyLen = n }
}
