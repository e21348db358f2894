// pkg/masstree/log_hooks.go
package masstree

import (
	"masstree/pkg/mtlog"

	"go.uber.org/zap"
)

// logInvariantViolation is the core's one fatal-boundary log call
// (spec §7); allocation failure's matching boundary lives in
// pkg/arena, the only collaborator that actually allocates (see
// tree.go's doc comment — this core carries no Allocator of its own).
func logInvariantViolation(err error) {
	mtlog.L().Error("masstree invariant violation, aborting", zap.Error(err))
}
