package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const (
	sandboxEnv       = "CHAT_AGENT_SANDBOX"
	maxSandboxOutput = 16 << 10
)

type sandboxRequest struct {
	Code        string        `json:"code"`
	Timeout     time.Duration `json:"timeout"`
	MemoryLimit int64         `json:"memory_limit"`
}

type sandboxResponse struct {
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

// ServeSandbox turns the process into a one-shot evaluator when it was
// started by a CodeRunner, and exits when done. In any other process it
// returns immediately.
func ServeSandbox() {
	if os.Getenv(sandboxEnv) != "1" {
		return
	}
	os.Exit(serveSandbox(os.Stdin, os.Stdout, os.Stderr))
}

func serveSandbox(in io.Reader, out, errOut io.Writer) int {
	var req sandboxRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		fmt.Fprintln(errOut, "sandbox: read request:", err)
		return 2
	}
	if req.MemoryLimit > 0 {
		if err := limitAddressSpace(req.MemoryLimit); err != nil {
			fmt.Fprintln(errOut, "sandbox: limit memory:", err)
			return 2
		}
		debug.SetMemoryLimit(req.MemoryLimit)
	}

	var resp sandboxResponse
	output, err := evaluate(req.Code, req.Timeout)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		resp.TimedOut = true
	case err != nil:
		resp.Error = err.Error()
	default:
		resp.Output = output
	}
	if err := json.NewEncoder(out).Encode(resp); err != nil {
		fmt.Fprintln(errOut, "sandbox: write reply:", err)
		return 2
	}
	return 0
}

// sandboxSymbols keeps only the stdlib exports of sandboxPackages. Keys are
// "importpath/name", e.g. "math/math".
var sandboxSymbols = sync.OnceValue(func() interp.Exports {
	allowed := make(map[string]bool, len(sandboxPackages))
	for _, p := range sandboxPackages {
		allowed[p] = true
	}
	symbols := interp.Exports{}
	for key, syms := range stdlib.Symbols {
		slash := strings.LastIndex(key, "/")
		if slash < 0 || !allowed[key[:slash]] {
			continue
		}
		symbols[key] = syms
	}
	return symbols
})

// evaluate runs code in a fresh interpreter. The interpreter goroutine is
// abandoned on timeout; the sandbox process exits right after.
func evaluate(code string, timeout time.Duration) (result string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	i := interp.New(interp.Options{
		Stdout: &limitedWriter{w: &stdout, max: maxSandboxOutput},
		Stderr: &limitedWriter{w: &stderr, max: maxSandboxOutput},
	})
	if err := i.Use(sandboxSymbols()); err != nil {
		return "", fmt.Errorf("load sandbox packages: %w", err)
	}
	for _, p := range sandboxPackages {
		if _, err := i.Eval(fmt.Sprintf("import %q", p)); err != nil {
			return "", fmt.Errorf("import %s: %w", p, err)
		}
	}

	defer func() {
		if p := recover(); p != nil {
			result, err = "", fmt.Errorf("panic: %v", p)
		}
	}()
	v, err := i.EvalWithContext(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	if printed := strings.TrimRight(stdout.String(), "\n"); printed != "" {
		return printed, nil
	}
	if v.IsValid() && v.CanInterface() && v.Kind() != reflect.Func {
		return truncate(fmt.Sprint(v.Interface()), maxSandboxOutput), nil
	}
	return "", nil
}

// limitedWriter keeps the first max bytes and silently drops the rest.
type limitedWriter struct {
	w       io.Writer
	max     int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if room := lw.max - lw.written; room < int64(len(p)) {
		p = p[:max(room, 0)]
	}
	if len(p) > 0 {
		w, err := lw.w.Write(p)
		lw.written += int64(w)
		if err != nil {
			return w, err
		}
	}
	return n, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
