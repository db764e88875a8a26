// Package debug provides env-gated trace logging for the conversion
// engine. Enable with DOCMAP_DEBUG_WRITE, DOCMAP_DEBUG_READ or
// DOCMAP_DEBUG_RESOLVE; output goes to stderr.
package debug

import (
	"fmt"
	"os"
	"strconv"
)

type debug struct {
	Write   bool
	Read    bool
	Resolve bool
}

var d *debug

func init() {
	d = &debug{
		Write:   boolEnv("DOCMAP_DEBUG_WRITE"),
		Read:    boolEnv("DOCMAP_DEBUG_READ"),
		Resolve: boolEnv("DOCMAP_DEBUG_RESOLVE"),
	}
}

func boolEnv(v string) bool {
	x := os.Getenv(v)
	if x == "" {
		return false
	}
	b, _ := strconv.ParseBool(x)
	return b
}

func Write() bool {
	return d.Write
}

func Read() bool {
	return d.Read
}

func Resolve() bool {
	return d.Resolve
}

// Logf writes a trace line to stderr. Document values render through
// their canonical JSON String form via %v.
func Logf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg, args...)
}
