// Package gemini provides an implementation of model.Model on top of the
// Google Gen AI SDK (Gemini API).
package gemini

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/model"
)

const providerName = "gemini"

// DefaultModel is the model used when Options.Model is empty.
const DefaultModel = "gemini-2.5-flash-lite"

// Options configure the Gemini adapter.
type Options struct {
	Model       string
	APIKey      string // empty: GOOGLE_API_KEY
	Temperature float32
}

// Model wraps the Gemini GenerateContent API behind model.Model.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model with a fresh client.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:       DefaultModel,
		Temperature: 0.7,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if opts.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents := buildContents(req.Contents)
		config := m.buildConfig(req)

		if !req.Stream {
			resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
			if err != nil {
				errCh <- wrapError(err)
				return
			}
			final, err := parseResponse(resp)
			if err != nil {
				errCh <- err
				return
			}
			out <- final
			return
		}

		var (
			text  strings.Builder
			calls []core.Part
			last  *genai.GenerateContentResponse
		)
		for chunk, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
			if err != nil {
				errCh <- wrapError(err)
				return
			}
			last = chunk
			if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
				continue
			}
			for _, p := range chunk.Candidates[0].Content.Parts {
				if p.Text != "" && !p.Thought {
					text.WriteString(p.Text)
					out <- model.Response{Partial: true, Content: core.NewTextContent("assistant", p.Text)}
				}
				if p.FunctionCall != nil {
					calls = append(calls, functionCallPart(p.FunctionCall))
				}
			}
		}

		parts := make([]core.Part, 0, len(calls)+1)
		if text.Len() > 0 {
			parts = append(parts, core.TextPart{Text: text.String()})
		}
		parts = append(parts, calls...)
		final := model.Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: "stop",
		}
		if last != nil {
			final.Usage = usage(last)
			if len(last.Candidates) > 0 {
				final.FinishReason = mapFinishReason(last.Candidates[0].FinishReason, len(calls) > 0)
			}
		}
		out <- final
	}()

	return out, errCh
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(m.opts.Temperature),
	}
	if req.Instructions != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.Instructions}},
		}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  toSchema(t.Function.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return config
}

// buildContents converts normalized contents to Gemini contents. Assistant
// turns use the "model" role; tool responses travel as user function
// responses.
func buildContents(contents []core.Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents))
	for _, c := range contents {
		role := "user"
		if c.Role == "assistant" {
			role = "model"
		}
		if c.Role == "system" {
			continue
		}

		var parts []*genai.Part
		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, &genai.Part{Text: part.Text})
				}
			case core.FunctionCallPart:
				args := map[string]any{}
				if part.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: args,
				}})
			case core.FunctionResponsePart:
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       part.FunctionResponse.ID,
					Name:     part.FunctionResponse.Name,
					Response: responseMap(part.FunctionResponse),
				}})
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out
}

func responseMap(fr core.FunctionResponse) map[string]any {
	if fr.Error != "" {
		return map[string]any{"error": fr.Error}
	}
	if m, ok := fr.Response.(map[string]any); ok {
		return m
	}
	return map[string]any{"output": fr.Response}
}

func parseResponse(resp *genai.GenerateContentResponse) (model.Response, error) {
	if len(resp.Candidates) == 0 {
		return model.Response{}, errors.New("gemini: empty response")
	}
	cand := resp.Candidates[0]

	var (
		parts    []core.Part
		hasCalls bool
	)
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p.Text != "" && !p.Thought {
				parts = append(parts, core.TextPart{Text: p.Text})
			}
			if p.FunctionCall != nil {
				hasCalls = true
				parts = append(parts, functionCallPart(p.FunctionCall))
			}
		}
	}

	return model.Response{
		ID:           resp.ResponseID,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: mapFinishReason(cand.FinishReason, hasCalls),
		Usage:        usage(resp),
	}, nil
}

func functionCallPart(fc *genai.FunctionCall) core.FunctionCallPart {
	args, _ := json.Marshal(fc.Args)
	id := fc.ID
	if id == "" {
		id = stableCallID(fc.Name, args)
	}
	return core.FunctionCallPart{FunctionCall: core.FunctionCall{
		ID:        id,
		Name:      fc.Name,
		Arguments: string(args),
	}}
}

// stableCallID derives a deterministic id for calls the API sent without
// one, so the same name and arguments map to the same id.
func stableCallID(name string, args []byte) string {
	sum := sha256.Sum256(append([]byte(name+":"), args...))
	return fmt.Sprintf("call_%x", sum[:12])
}

func usage(resp *genai.GenerateContentResponse) *model.TokenUsage {
	if resp.UsageMetadata == nil {
		return nil
	}
	return &model.TokenUsage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

func mapFinishReason(reason genai.FinishReason, hasCalls bool) string {
	if hasCalls {
		return "tool_calls"
	}
	switch reason {
	case genai.FinishReasonMaxTokens:
		return "length"
	case genai.FinishReasonSafety:
		return "content_filter"
	default:
		return "stop"
	}
}

// toSchema converts a JSON schema map into a Gemini schema. Gemini expects
// upper-case type names.
func toSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toSchema(propMap)
			}
		}
	}
	switch required := schema["required"].(type) {
	case []string:
		s.Required = append(s.Required, required...)
	case []any:
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}
	return s
}

// wrapError maps genai API errors onto model.StatusError.
func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return model.NewStatusError(providerName, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return model.NewStatusError(providerName, apiErrPtr.Code, err)
	}
	return fmt.Errorf("gemini api error: %w", err)
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      providerName,
		SupportsTools: true,
	}
}

var _ model.Model = (*Model)(nil)
