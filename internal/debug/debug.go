package debug

import (
	"time"

	"go.uber.org/zap"
)

// DebugHeader logs a debug header if debugging is enabled
func DebugHeader(enabled bool) {
	if enabled {
		zap.S().Debug("=== DEBUG START ===")
	}
}

// DebugFooter logs a debug footer if debugging is enabled
func DebugFooter(enabled bool) {
	if enabled {
		zap.S().Debug("=== DEBUG END ===")
	}
}

// DebugOutput logs formatted debug output if debugging is enabled
func DebugOutput(enabled bool, format string, args ...interface{}) {
	if enabled {
		zap.S().Debugf(format, args...)
	}
}

// DebugTiming measures and logs execution time if debugging is enabled
func DebugTiming(enabled bool, operation string) func() {
	if !enabled {
		return func() {}
	}

	start := time.Now()
	DebugOutput(enabled, "Starting: %s", operation)

	return func() {
		zap.S().Debugw("Completed", "operation", operation, "took", time.Since(start))
	}
}
