package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// ── Gemini Provider ─────────────────────────────────────────

// Gemini wraps the official genai client.
type Gemini struct {
	cli   *genai.Client
	model string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Gemini{cli: cli, model: model}, nil
}

func (g *Gemini) Kind() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, req *Request) (*Response, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Functions) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(req.Functions))
		for i, f := range req.Functions {
			decls[i] = &genai.FunctionDeclaration{
				Name:                 f.Name,
				Description:          f.Description,
				ParametersJsonSchema: f.Parameters,
			}
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: response has no candidates")
	}

	out := &Response{
		Provider: g.Kind(),
		Model:    g.model,
		Content:  resp.Text(),
	}
	for _, fc := range resp.FunctionCalls() {
		args := fc.Args
		if args == nil {
			args = map[string]any{}
		}
		out.Calls = append(out.Calls, FunctionCall{Name: fc.Name, Arguments: args})
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			InputTokens:  int64(u.PromptTokenCount),
			OutputTokens: int64(u.CandidatesTokenCount),
			TotalTokens:  int64(u.TotalTokenCount),
		}
	}
	return out, nil
}
