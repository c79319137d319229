package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// TestModeEnv names the variable that makes the binaries exit before dialing
// Postgres or Redis.
const TestModeEnv = "MEDIAPLAN_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeInit sync.Once
)

func loadTestMode() {
	enabled, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(err == nil && enabled)
}

// InTestMode reports whether MEDIAPLAN_TEST_MODE holds a true value.
func InTestMode() bool {
	testModeInit.Do(loadTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the variable, for tests that change it.
func RefreshTestMode() {
	testModeInit.Do(func() {})
	loadTestMode()
}
