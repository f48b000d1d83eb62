package gic

import (
	"fmt"
	"log/slog"
)

// ContractViolation is the panic value raised when a caller breaks the
// driver's contract: an out-of-range identifier, an SGI outside 0-15, an
// empty affinity mask, or a controller that was not prepared by firmware.
// Continuing would act on undefined register state, so the driver halts
// instead of returning an error.
type ContractViolation struct {
	Op     string
	Reason string
}

func (v *ContractViolation) Error() string {
	return fmt.Sprintf("gic: %s: %s", v.Op, v.Reason)
}

func fatal(op string, format string, args ...any) {
	v := &ContractViolation{Op: op, Reason: fmt.Sprintf(format, args...)}
	slog.Error("gic: fatal", "op", op, "reason", v.Reason)
	panic(v)
}
