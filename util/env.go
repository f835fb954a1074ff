package util

import (
	"fmt"
	"os"
	"os/exec"
)

// GetEnv gets an environment variable, panicking if it is nonexistent.
func GetEnv(name string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	panic(fmt.Sprintf("Env %s is missing\n", name))
}

// EnvExists determines if an environment variable exists.
func EnvExists(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}

// IsDebug returns true if debug mode is enabled based
// on an environment variable.
func IsDebug() bool {
	return EnvExists("DEBUG")
}

// GetZopflipngPath gets the path to the zopflipng binary, either from
// ZOPFLIPNG_PATH or by looking it up in PATH. When it cannot be found,
// PNGs are optimized natively.
func GetZopflipngPath() (string, bool) {
	if bin := os.Getenv("ZOPFLIPNG_PATH"); bin != "" {
		return bin, true
	}
	bin, err := exec.LookPath("zopflipng")
	if err != nil {
		return "", false
	}
	return bin, true
}
