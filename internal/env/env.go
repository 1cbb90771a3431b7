// Package env identifies the runtime environment the bridge runs in.
package env

import (
	"os"

	"github.com/krishnadesk/bridge/internal/envvar"
)

// Environment is the runtime environment.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// FromEnv reads KRISHNA_ENV. Production is the default: the bridge normally
// runs as a child process of a support tool, not in a developer terminal.
func FromEnv() Environment {
	switch os.Getenv(envvar.KrishnaEnv) {
	case "development", "dev":
		return Development
	default:
		return Production
	}
}
