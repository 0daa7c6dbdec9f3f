// Package chat runs one chat turn end to end: keyword routing, the listing
// shortcut, model interpretation, call execution and transcript persistence.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/gearbox-app/gearbox/internal/executor"
	"github.com/gearbox-app/gearbox/internal/interpreter"
	"github.com/gearbox-app/gearbox/internal/llm"
	"github.com/gearbox-app/gearbox/internal/store"
	"github.com/gearbox-app/gearbox/internal/telemetry"
	"github.com/gearbox-app/gearbox/pkg/models"
)

// ErrInvalidMessage is returned for an empty or whitespace-only message.
var ErrInvalidMessage = errors.New("message is required")

// historyWindow is how many transcript entries are handed to the interpreter.
const historyWindow = 8

var (
	listingWords  = []string{"list", "show", "my gear", "inventory"}
	mutationWords = []string{"delete", "remove", "retire"}
)

// Reply is the body returned to the chat client.
type Reply struct {
	Response  string             `json:"response"`
	Functions []llm.FunctionCall `json:"functions,omitempty"`
	Data      []models.GearItem  `json:"data,omitempty"`
}

// Interpreter is the slice of *interpreter.Interpreter the orchestrator uses.
type Interpreter interface {
	Interpret(ctx context.Context, input interpreter.Input) interpreter.Result
}

// Orchestrator wires the store, interpreter and executor together.
type Orchestrator struct {
	store  store.Store
	interp Interpreter
	exec   *executor.Executor
}

func New(s store.Store, interp Interpreter, exec *executor.Executor) *Orchestrator {
	return &Orchestrator{store: s, interp: interp, exec: exec}
}

// Handle processes one message. The transcript entry is written before
// Handle returns.
func (o *Orchestrator) Handle(ctx context.Context, message string) (*Reply, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "chat.Handle")
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrInvalidMessage
	}

	lower := strings.ToLower(message)
	listing := containsAny(lower, listingWords)
	mutation := containsAny(lower, mutationWords)
	span.SetAttributes(
		attribute.Bool("chat.listing", listing),
		attribute.Bool("chat.mutation", mutation),
	)

	var snapshot []models.GearItem
	if listing || mutation {
		items, err := o.store.ListGearItems(ctx, "")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load gear")
			return nil, fmt.Errorf("load gear snapshot: %w", err)
		}
		snapshot = items
	}

	if listing && !mutation && len(snapshot) > 0 {
		return o.digest(ctx, message, snapshot)
	}

	history, err := o.store.ChatHistory(ctx, historyWindow)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load chat history, continuing without it")
		history = nil
	}

	result := o.interp.Interpret(ctx, interpreter.Input{
		Message:  message,
		History:  history,
		Snapshot: snapshot,
	})
	executed := o.exec.Execute(ctx, result.Calls, snapshot)

	failed := 0
	for _, out := range executed.Outcomes {
		if out.Err != nil {
			failed++
		}
	}
	span.SetAttributes(
		attribute.Int("chat.calls", len(result.Calls)),
		attribute.Int("chat.calls_failed", failed),
	)

	entry := &models.ChatMessage{
		Message:       message,
		Response:      result.Response,
		FunctionCalls: callMap(result.Calls),
	}
	if err := o.store.CreateChatMessage(ctx, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist transcript")
		return nil, fmt.Errorf("save chat message: %w", err)
	}

	log.Info().
		Int("calls", len(result.Calls)).
		Int("failed", failed).
		Msg("Chat message processed")

	return &Reply{
		Response:  result.Response,
		Functions: result.Calls,
		Data:      executed.Snapshot,
	}, nil
}

// digest answers a pure listing request without calling the model.
func (o *Orchestrator) digest(ctx context.Context, message string, snapshot []models.GearItem) (*Reply, error) {
	response := Digest(snapshot)
	if err := o.store.CreateChatMessage(ctx, &models.ChatMessage{Message: message, Response: response}); err != nil {
		return nil, fmt.Errorf("save chat message: %w", err)
	}
	log.Info().Int("items", len(snapshot)).Msg("Answered listing request from inventory")
	return &Reply{Response: response, Data: snapshot}, nil
}

// Digest renders the deterministic inventory summary.
func Digest(items []models.GearItem) string {
	return fmt.Sprintf("Here's your complete gear inventory (%d items):\n\n%s\n\nYour collection covers %d categories.",
		len(items), interpreter.FormatInventory(items), interpreter.CategoryCount(items))
}

// callMap keys arguments by function name; a repeated name keeps the last.
func callMap(calls []llm.FunctionCall) map[string]map[string]interface{} {
	if len(calls) == 0 {
		return nil
	}
	m := make(map[string]map[string]interface{}, len(calls))
	for _, c := range calls {
		m[c.Name] = c.Arguments
	}
	return m
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
