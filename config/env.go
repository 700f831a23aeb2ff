package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Structs

// Env holds information specific to the system where courier is
// deployed. Use the .env file to enable the protocol wire log
// without touching the main config.
type Env struct {
	WireLogFile string
}

// Functions

// LoadEnv looks for an .env file in the working directory, reads
// in all defined values and overlays them with the process
// environment. The wire log is switched on by pointing
// KIMAP2_LOGFILE at a writable path.
func LoadEnv() *Env {

	// A missing .env file is fine, the process environment
	// alone may carry the toggle.
	_ = godotenv.Load(".env")

	return &Env{
		WireLogFile: os.Getenv("KIMAP2_LOGFILE"),
	}
}
