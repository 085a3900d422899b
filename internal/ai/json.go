package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ExtractJSON finds a JSON object in raw model output. It tries, in order: the
// text with code fences removed, the span from the first '{' to the last '}',
// and the first balanced brace block. Numbers are kept as json.Number.
func ExtractJSON(raw string) (map[string]any, bool) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, false
	}

	if data, ok := decodeObject(cleaned); ok {
		return data, true
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return nil, false
	}

	if data, ok := decodeObject(cleaned[start : end+1]); ok {
		return data, true
	}

	if block := balancedBlock(cleaned[start:]); block != "" {
		return decodeObject(block)
	}

	return nil, false
}

// Decode maps a loosely typed JSON object onto out, converting scalars where the
// model used the wrong JSON type.
func Decode(data map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

func decodeObject(text string) (map[string]any, bool) {
	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()

	var data map[string]any
	if err := decoder.Decode(&data); err != nil || data == nil {
		return nil, false
	}
	// trailing garbage means the candidate was not a single object
	if decoder.More() {
		return nil, false
	}
	return data, true
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func balancedBlock(text string) string {
	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return ""
}
