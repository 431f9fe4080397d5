// Package playground evaluates Go snippets in an embedded interpreter so
// the query playground tab can run code without leaving the terminal.
package playground

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DefaultTimeout bounds a single snippet evaluation.
const DefaultTimeout = 5 * time.Second

// allowedImports is the interpreter sandbox: stdlib packages a snippet may
// import. Filesystem, network, exec and unsafe stay out.
var allowedImports = map[string]bool{
	"fmt":             true,
	"strings":         true,
	"strconv":         true,
	"math":            true,
	"math/rand":       true,
	"regexp":          true,
	"encoding/json":   true,
	"encoding/base64": true,
	"time":            true,
	"sort":            true,
	"bytes":           true,
	"errors":          true,
	"unicode":         true,
	"unicode/utf8":    true,
}

// Result carries what a snippet produced: everything it printed and the
// textual form of its final expression value, when there is one.
type Result struct {
	Stdout string
	Value  string
}

// Runner evaluates snippets. Each Run gets a fresh interpreter; snippets do
// not share state across runs.
type Runner struct {
	timeout time.Duration
}

// NewRunner builds a snippet runner. A non-positive timeout falls back to
// DefaultTimeout.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{timeout: timeout}
}

// Run evaluates a Go snippet and returns its output. Bare statements and
// full files both evaluate. Evaluation that outlives the timeout is
// abandoned; the interpreter goroutine is left to finish on its own since
// yaegi offers no preemption.
func (r *Runner) Run(ctx context.Context, code string) (Result, error) {
	if strings.TrimSpace(code) == "" {
		return Result{}, fmt.Errorf("empty snippet")
	}
	if err := checkImports(code); err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout bytes.Buffer
	i := interp.New(interp.Options{Stdout: &stdout, Stderr: &stdout})
	if err := i.Use(stdlib.Symbols); err != nil {
		return Result{}, fmt.Errorf("load interpreter symbols: %w", err)
	}

	type evalOutcome struct {
		value string
		err   error
	}
	done := make(chan evalOutcome, 1)
	go func() {
		v, err := i.Eval(code)
		out := evalOutcome{err: err}
		if err == nil && v.IsValid() {
			out.value = fmt.Sprintf("%v", v.Interface())
		}
		done <- out
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Result{Stdout: stdout.String()}, fmt.Errorf("snippet failed: %w", out.err)
		}
		return Result{Stdout: stdout.String(), Value: out.value}, nil
	case <-ctx.Done():
		return Result{Stdout: stdout.String()}, fmt.Errorf("snippet timed out: %w", ctx.Err())
	}
}

// checkImports rejects snippets importing anything outside the sandbox.
func checkImports(code string) error {
	var forbidden []string
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			if pkg := importPath(trimmed); pkg != "" && !allowedImports[pkg] {
				forbidden = append(forbidden, pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			if pkg := importPath(strings.TrimPrefix(trimmed, "import ")); pkg != "" && !allowedImports[pkg] {
				forbidden = append(forbidden, pkg)
			}
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("snippet imports blocked packages: %s", strings.Join(forbidden, ", "))
	}
	return nil
}

// importPath extracts the quoted path from an import line, dropping any
// alias in front of it.
func importPath(line string) string {
	start := strings.IndexByte(line, '"')
	if start < 0 {
		return ""
	}
	rest := line[start+1:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}
