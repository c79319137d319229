// Package guard switches binaries into test mode when imported by tests, so
// calling main never dials Postgres or Redis.
package guard

import (
	"os"

	"github.com/mediaplan/mediaplan/internal/app"
)

func init() {
	if os.Getenv(app.TestModeEnv) == "" {
		_ = os.Setenv(app.TestModeEnv, "true")
	}
	app.RefreshTestMode()
}
