package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	CodeToolName = "code-runner-tool"

	DefaultCodeMemoryLimit = 512 << 20

	maxCodeBytes     = 64 << 10
	maxConstAlloc    = 1 << 20
	maxLiteralLength = 10_000
	sandboxGrace     = 2 * time.Second
)

// sandboxPackages are the only packages evaluated code can import. None of
// them reach the filesystem, the network or other processes.
var sandboxPackages = []string{"fmt", "math", "sort", "strconv", "strings", "time", "unicode"}

// CodeCall is a Go expression or statement list to evaluate.
type CodeCall struct {
	Code string
}

func (CodeCall) tool() string { return CodeToolName }

// CodeRunner evaluates Go snippets in a yaegi interpreter restricted to
// sandboxPackages. Every evaluation runs in a child copy of the current
// executable with a capped address space, so a runaway snippet can only
// take down the child.
type CodeRunner struct {
	timeout     time.Duration
	memoryLimit int64
	exe         string
	exeErr      error
}

// NewCodeRunner returns a runner that kills evaluations after timeout and
// caps each child at memoryLimit bytes beyond its startup footprint.
// Programs embedding the runner must call ServeSandbox first thing in main.
func NewCodeRunner(timeout time.Duration, memoryLimit int64) *CodeRunner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if memoryLimit <= 0 {
		memoryLimit = DefaultCodeMemoryLimit
	}
	exe, err := os.Executable()
	return &CodeRunner{timeout: timeout, memoryLimit: memoryLimit, exe: exe, exeErr: err}
}

func (r *CodeRunner) Spec() Spec {
	return Spec{
		Name: CodeToolName,
		Description: "Evaluate a Go expression or short Go statements and return the value or printed output. " +
			"Can be used for mathematical calculations and general code execution. " +
			"Available packages: " + strings.Join(sandboxPackages, ", ") + ". " +
			"Goroutines and large allocations are not allowed.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"code": {Type: jsonschema.String, Description: "Go code to run"},
			},
			Required: []string{"code"},
		},
	}
}

func (r *CodeRunner) Decode(raw json.RawMessage) (Call, error) {
	var args struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Code) == "" {
		return nil, errors.New("code is required")
	}
	return CodeCall{Code: args.Code}, nil
}

func (r *CodeRunner) Execute(ctx context.Context, call Call) string {
	c, ok := call.(CodeCall)
	if !ok {
		return "invalid call for " + CodeToolName
	}
	out, err := r.Run(ctx, c.Code)
	if err != nil {
		return err.Error()
	}
	return out
}

// Run checks code and evaluates it in a fresh sandbox process. Printed
// output wins over the value of the last expression.
func (r *CodeRunner) Run(ctx context.Context, code string) (string, error) {
	if err := CheckCode(code); err != nil {
		return "", err
	}
	if r.exeErr != nil {
		return "", fmt.Errorf("locate sandbox executable: %w", r.exeErr)
	}
	req, err := json.Marshal(sandboxRequest{Code: code, Timeout: r.timeout, MemoryLimit: r.memoryLimit})
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout+sandboxGrace)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.exe)
	cmd.Env = []string{sandboxEnv + "=1"}
	cmd.Stdin = bytes.NewReader(req)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, max: 1 << 20}
	cmd.Stderr = &limitedWriter{w: &stderr, max: 16 << 10}
	cmd.WaitDelay = time.Second

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("evaluation timed out after %s", r.timeout)
	}
	if runErr != nil {
		return "", fmt.Errorf("evaluation failed: %s", crashReason(stderr.String(), runErr))
	}

	var resp sandboxResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("evaluation failed: unreadable sandbox reply: %w", err)
	}
	switch {
	case resp.TimedOut:
		return "", fmt.Errorf("evaluation timed out after %s", r.timeout)
	case resp.Error != "":
		return "", errors.New(resp.Error)
	}
	return resp.Output, nil
}

// crashReason picks the runtime's own explanation out of a dead child's
// stderr.
func crashReason(stderr string, err error) string {
	var first string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "fatal error: ") || strings.HasPrefix(line, "panic: ") {
			return line
		}
		if first == "" {
			first = line
		}
	}
	if first != "" {
		return first
	}
	return err.Error()
}

// CheckCode rejects snippets the interpreter could not contain cheaply:
// goroutines, imports outside sandboxPackages, and allocations whose size
// is not a small constant.
func CheckCode(code string) error {
	if len(code) > maxCodeBytes {
		return fmt.Errorf("code is longer than %d bytes", maxCodeBytes)
	}
	file, err := parseSnippet(code)
	if err != nil {
		return fmt.Errorf("syntax error: %w", err)
	}

	allowed := make(map[string]bool, len(sandboxPackages))
	for _, p := range sandboxPackages {
		allowed[p] = true
	}
	for _, imp := range file.Imports {
		path, _ := strconv.Unquote(imp.Path.Value)
		if !allowed[path] {
			return fmt.Errorf("import %q is not allowed", path)
		}
	}

	var reject error
	ast.Inspect(file, func(n ast.Node) bool {
		if reject != nil {
			return false
		}
		switch n := n.(type) {
		case *ast.GoStmt:
			reject = errors.New("go statements are not allowed")
		case *ast.CallExpr:
			if id, ok := n.Fun.(*ast.Ident); ok && id.Name == "make" {
				for _, size := range n.Args[min(1, len(n.Args)):] {
					if !smallConstant(size) {
						reject = fmt.Errorf("make sizes must be integer literals up to %d", maxConstAlloc)
					}
				}
			}
		case *ast.ArrayType:
			if n.Len != nil {
				if _, ellipsis := n.Len.(*ast.Ellipsis); !ellipsis && !smallConstant(n.Len) {
					reject = fmt.Errorf("array lengths must be integer literals up to %d", maxConstAlloc)
				}
			}
		case *ast.CompositeLit:
			if len(n.Elts) > maxLiteralLength {
				reject = fmt.Errorf("composite literals are limited to %d elements", maxLiteralLength)
			}
		}
		return true
	})
	return reject
}

// parseSnippet accepts both statement lists and whole files, the two forms
// the interpreter evaluates.
func parseSnippet(code string) (*ast.File, error) {
	fset := token.NewFileSet()
	file, bodyErr := parser.ParseFile(fset, "", "package p\nfunc _() {\n"+code+"\n}", 0)
	if bodyErr == nil {
		return file, nil
	}
	src := code
	if !strings.HasPrefix(strings.TrimSpace(code), "package ") {
		src = "package main\n" + code
	}
	file, err := parser.ParseFile(fset, "", src, 0)
	if err != nil {
		return nil, bodyErr
	}
	return file, nil
}

func smallConstant(e ast.Expr) bool {
	lit, ok := e.(*ast.BasicLit)
	if !ok || lit.Kind != token.INT {
		return false
	}
	n, err := strconv.ParseInt(lit.Value, 0, 64)
	return err == nil && n <= maxConstAlloc
}
