// Package tools holds the tools the agent can call and the registry that
// dispatches model-issued calls to them.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"chat-agent/internal/config"
	"chat-agent/internal/logging"
)

var ErrUnknownTool = errors.New("unknown tool")

// Spec describes a tool to the language model.
type Spec struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// Call is a decoded, validated set of tool arguments. The variants are
// WeatherCall, WikipediaCall and CodeCall.
type Call interface {
	tool() string
}

// Tool is a single callable capability.
type Tool interface {
	Spec() Spec
	Decode(raw json.RawMessage) (Call, error)
	// Execute never fails: problems are reported in the returned text.
	Execute(ctx context.Context, call Call) string
}

// Invocation records one tool call made during an agent cycle.
type Invocation struct {
	Name   string
	Call   Call
	Result string
	Err    error
}

// Registry maps tool names to tools, keeping registration order.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger, tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools)), logger: logging.OrNop(logger)}
	for _, t := range tools {
		name := t.Spec().Name
		if _, dup := r.tools[name]; !dup {
			r.order = append(r.order, name)
		}
		r.tools[name] = t
	}
	return r
}

// FromConfig registers every enabled tool. Weather and encyclopedia lookups
// share one outbound rate limiter.
func FromConfig(cfg config.ToolsConfig, logger *zap.Logger) *Registry {
	limiter := NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	var list []Tool
	if cfg.Weather.Enabled {
		list = append(list, NewWeather(cfg.Weather.BaseURL, seconds(cfg.Weather.TimeoutSecs), limiter))
	}
	if cfg.Wikipedia.Enabled {
		list = append(list, NewWikipedia(WikipediaConfig{
			APIURL:    cfg.Wikipedia.APIURL,
			Lang:      cfg.Wikipedia.Lang,
			Sentences: cfg.Wikipedia.Sentences,
			Timeout:   seconds(cfg.Wikipedia.TimeoutSecs),
		}, limiter))
	}
	if cfg.Code.Enabled {
		list = append(list, NewCodeRunner(seconds(cfg.Code.TimeoutSecs), int64(cfg.Code.MemoryLimitMB)<<20))
	}
	return NewRegistry(logger, list...)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Definitions returns the function definitions sent with chat requests.
func (r *Registry) Definitions() []openai.Tool {
	defs := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		spec := r.tools[name].Spec()
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return defs
}

// Dispatch decodes args for the named tool and runs it. Unknown tools and
// invalid arguments are reported in Result so the model can correct itself.
func (r *Registry) Dispatch(ctx context.Context, name, args string) Invocation {
	inv := Invocation{Name: name}
	t, ok := r.tools[name]
	if !ok {
		inv.Err = fmt.Errorf("%w: %s", ErrUnknownTool, name)
		inv.Result = inv.Err.Error()
		r.logger.Warn("unknown tool requested", zap.String("tool", name))
		return inv
	}
	call, err := t.Decode(json.RawMessage(args))
	if err != nil {
		inv.Err = fmt.Errorf("decode %s arguments: %w", name, err)
		inv.Result = "Invalid arguments: " + err.Error()
		r.logger.Warn("invalid tool arguments", zap.String("tool", name), zap.Error(err))
		return inv
	}
	inv.Call = call
	start := time.Now()
	inv.Result = t.Execute(ctx, call)
	r.logger.Debug("tool invoked",
		zap.String("tool", name),
		zap.String("args", args),
		zap.Duration("took", time.Since(start)),
		zap.Int("result_len", len(inv.Result)))
	return inv
}
