// pkg/mtlog/log.go
//
// Package mtlog is the structured-logging ambient concern for the
// masstree core and its collaborators (SPEC_FULL.md §2.2). It is
// deliberately kept off the put/get hot path: the only call sites are
// the two fatal boundaries spec.md §7 names (invariant violation,
// allocation failure) and reclamation milestones.
package mtlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	global *zap.Logger
)

// L returns the package-level logger, lazily building a sane
// production logger on first use. Tests and embedders may override it
// with Set.
func L() *zap.Logger {
	once.Do(func() {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		global = l
	})
	return global
}

// Set installs a caller-supplied logger, e.g. a zaptest logger or one
// configured for development console output.
func Set(l *zap.Logger) {
	once.Do(func() {})
	global = l
}
