package provenance

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/roach88/stocklog/internal/record"
)

// Tracer reports the source location that triggered the current change.
type Tracer interface {
	Locate() (record.Location, bool)
}

// NopTracer never reports a location.
type NopTracer struct{}

func (NopTracer) Locate() (record.Location, bool) {
	return record.Location{}, false
}

// maxTraceDepth bounds the stack walk.
const maxTraceDepth = 32

// DefaultSkip lists the function-name prefixes StackTracer skips when Skip
// is empty. It covers the capture machinery, every intake surface that
// calls into it and the libraries those surfaces run on, so a stocklog
// process with no embedding host reports no origin.
var DefaultSkip = []string{
	"github.com/roach88/stocklog/internal/capture.",
	"github.com/roach88/stocklog/internal/provenance.",
	"github.com/roach88/stocklog/internal/intake.",
	"github.com/roach88/stocklog/internal/server.",
	"github.com/roach88/stocklog/internal/natsintake.",
	"github.com/roach88/stocklog/internal/harness.",
	"github.com/roach88/stocklog/internal/cli.",
	"github.com/gofiber/",
	"github.com/valyala/",
	"github.com/nats-io/",
	"github.com/spf13/cobra.",
	"main.main",
	"testing.",
	"runtime.",
	"reflect.",
}

// StackTracer walks the goroutine's call stack innermost-out and returns
// the first frame whose function does not start with a skipped prefix.
type StackTracer struct {
	// Root is stripped from reported file paths.
	Root string

	// Skip holds function-name prefixes to skip. Defaults to DefaultSkip.
	Skip []string
}

func (t StackTracer) Locate() (record.Location, bool) {
	pcs := make([]uintptr, maxTraceDepth)
	// Skip runtime.Callers and Locate.
	n := runtime.Callers(2, pcs)
	if n == 0 {
		return record.Location{}, false
	}

	skip := t.Skip
	if len(skip) == 0 {
		skip = DefaultSkip
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.File != "" && !hasAnyPrefix(frame.Function, skip) {
			return record.Location{Path: t.relative(frame.File), Line: frame.Line}, true
		}
		if !more {
			return record.Location{}, false
		}
	}
}

func (t StackTracer) relative(file string) string {
	if t.Root == "" {
		return file
	}
	rel, err := filepath.Rel(t.Root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return file
	}
	return filepath.ToSlash(rel)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
