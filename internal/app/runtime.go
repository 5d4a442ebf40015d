package app

import "os"

// TestMode reports whether the process is running under the integration
// test harness. A few middlewares (rate limiting, strict transport rules)
// are relaxed in that mode.
func InTestMode() bool {
	return os.Getenv("STAFFLANE_TEST_MODE") == "1"
}
