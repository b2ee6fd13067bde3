package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// buildTranslatePrompt composes the system prompt shared by the LLM-backed
// engines. extra carries per-request context instructions (already validated).
func buildTranslatePrompt(sourceLang *string, targetLang, extra string) string {
	var b strings.Builder
	b.WriteString("You are a professional translation engine.\n")
	if sourceLang != nil && *sourceLang != "" {
		fmt.Fprintf(&b, "Translate each item from %s into %s.\n", *sourceLang, targetLang)
	} else {
		fmt.Fprintf(&b, "Detect the source language and translate each item into %s.\n", targetLang)
	}
	b.WriteString("The user message is a JSON array of strings. ")
	b.WriteString("Respond with ONLY a JSON array of the translated strings, ")
	b.WriteString("same length and same order. No explanations, no code fences.\n")
	if extra != "" {
		b.WriteString("Additional instructions: ")
		b.WriteString(extra)
		b.WriteString("\n")
	}
	return b.String()
}

func encodeItems(items []string) (string, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode batch: %w", err)
	}
	return string(raw), nil
}

// decodeItems parses the model response back into exactly want strings.
// Models occasionally wrap output in code fences despite instructions, so
// those are stripped before parsing.
func decodeItems(response string, want int) ([]string, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var out []string
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	if len(out) != want {
		return nil, fmt.Errorf("decode batch response: got %d items, want %d", len(out), want)
	}
	return out, nil
}

// llmContext is the normalized context accepted by the LLM-backed engines.
type llmContext struct {
	// Prompt is appended to the system prompt for the whole group.
	Prompt string
}

// parseLLMContext validates the shared context shape: an optional "prompt"
// string key. Anything else is rejected as a validation error.
func parseLLMContext(raw map[string]any) (*llmContext, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ctx := &llmContext{}
	if v, ok := raw["prompt"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("context key %q must be a string", "prompt")
		}
		ctx.Prompt = s
	}
	return ctx, nil
}
