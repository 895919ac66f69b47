package main

import (
	"os"
	"path/filepath"

	"github.com/strager/kal/irexec"
	"github.com/xyproto/env/v2"
)

const historyFile = ".kal_history"

// config holds defaults that can be set from the environment. Command-line
// flags override them.
type config struct {
	verbose     bool   // KAL_VERBOSE
	historyPath string // KAL_HISTORY
	maxSteps    int    // KAL_MAX_STEPS
}

func loadConfig() config {
	home, _ := os.UserHomeDir()
	return config{
		verbose:     env.Bool("KAL_VERBOSE"),
		historyPath: env.Str("KAL_HISTORY", filepath.Join(home, historyFile)),
		maxSteps:    env.Int("KAL_MAX_STEPS", irexec.DefaultMaxSteps),
	}
}
