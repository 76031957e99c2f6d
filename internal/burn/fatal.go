package burn

import (
	"fmt"

	"go.uber.org/zap"
)

// fatalf aborts the process on invariant violations that indicate corrupted
// state. Continuing would risk computing a different consensus hash than
// peers, so these are never surfaced as recoverable errors.
var fatalf = func(format string, args ...interface{}) {
	zap.L().Fatal(fmt.Sprintf(format, args...))
}
