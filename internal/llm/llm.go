// Package llm implements the model capability used by the interpreter.
//
// A Router holds an ordered list of provider drivers and tries them in
// turn (fallback strategy), returning the first successful completion.
// Drivers translate a provider-neutral Request, including function
// declarations, into the provider's wire format.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gearbox-app/gearbox/internal/config"
)

// ErrNoProviders is returned when a Router has no usable driver.
var ErrNoProviders = errors.New("llm: no model providers configured")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// FunctionDecl declares a function the model may call. Parameters is a
// JSON Schema object.
type FunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is a provider-neutral completion request.
type Request struct {
	System      string
	Messages    []Message
	Functions   []FunctionDecl
	Temperature float32
	MaxTokens   int
	// JSON asks the provider for a JSON object response.
	JSON bool
}

// FunctionCall is one structured call extracted from a completion.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

type Response struct {
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Content   string         `json:"content"`
	Calls     []FunctionCall `json:"calls,omitempty"`
	Usage     Usage          `json:"usage"`
	LatencyMs int64          `json:"latency_ms"`
}

// Completer is the capability the interpreter depends on.
type Completer interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Driver is a single provider backend.
type Driver interface {
	Completer
	Kind() string
}

// Router tries drivers in order until one succeeds.
type Router struct {
	drivers []Driver

	// Latency tracking: provider kind → rolling avg ms
	latencyMu sync.RWMutex
	latencies map[string]int64
}

// NewRouter creates a router over drivers, tried in the given order.
func NewRouter(drivers ...Driver) *Router {
	return &Router{
		drivers:   drivers,
		latencies: make(map[string]int64),
	}
}

// FromConfig builds a Router with one driver per configured provider that
// has credentials. Unknown provider names are logged and skipped.
func FromConfig(ctx context.Context, cfg config.LLMConfig) (*Router, error) {
	var drivers []Driver
	for _, name := range cfg.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "openai":
			if cfg.OpenAIKey == "" {
				continue
			}
			drivers = append(drivers, NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel))
		case "gemini":
			if cfg.GeminiKey == "" {
				continue
			}
			g, err := NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel)
			if err != nil {
				return nil, fmt.Errorf("gemini driver: %w", err)
			}
			drivers = append(drivers, g)
		case "":
		default:
			log.Warn().Str("provider", name).Msg("Unknown LLM provider, skipping")
		}
	}

	kinds := make([]string, len(drivers))
	for i, d := range drivers {
		kinds[i] = d.Kind()
	}
	log.Info().Strs("providers", kinds).Msg("🧠 Model router configured")
	return NewRouter(drivers...), nil
}

// Providers lists the driver kinds in fallback order.
func (r *Router) Providers() []string {
	out := make([]string, len(r.drivers))
	for i, d := range r.drivers {
		out[i] = d.Kind()
	}
	return out
}

// Complete sends req to each driver in order and returns the first success.
func (r *Router) Complete(ctx context.Context, req *Request) (*Response, error) {
	if len(r.drivers) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for _, d := range r.drivers {
		start := time.Now()
		resp, err := d.Complete(ctx, req)
		if err != nil {
			log.Warn().
				Str("provider", d.Kind()).
				Err(err).
				Msg("Provider call failed, trying next")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		resp.LatencyMs = time.Since(start).Milliseconds()
		if resp.Provider == "" {
			resp.Provider = d.Kind()
		}
		avg := r.recordLatency(d.Kind(), resp.LatencyMs)
		log.Debug().
			Str("provider", d.Kind()).
			Int64("latency_ms", resp.LatencyMs).
			Int64("avg_latency_ms", avg).
			Msg("Provider call succeeded")
		return resp, nil
	}
	return nil, fmt.Errorf("all providers failed, last error: %w", lastErr)
}

// recordLatency folds ms into the provider's average and returns the new value.
func (r *Router) recordLatency(kind string, ms int64) int64 {
	r.latencyMu.Lock()
	defer r.latencyMu.Unlock()
	prev, seen := r.latencies[kind]
	if !seen {
		r.latencies[kind] = ms
		return ms
	}
	// Exponential moving average
	r.latencies[kind] = (prev*7 + ms*3) / 10
	return r.latencies[kind]
}

// Latency returns the rolling average latency for a provider kind.
func (r *Router) Latency(kind string) int64 {
	r.latencyMu.RLock()
	defer r.latencyMu.RUnlock()
	return r.latencies[kind]
}
