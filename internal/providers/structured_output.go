package providers

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// adaptedResponseFormat returns a provider-compatible response format while
// preserving the original canonical schema for local validation.
func adaptedResponseFormat(model string, rf *ResponseFormat) (*openRouterResponseFormat, error) {
	if rf == nil {
		return nil, nil
	}
	// OpenRouter may route anthropic/* models to non-Anthropic backends (e.g. Google),
	// where Anthropic beta headers used for native structured outputs are rejected.
	// Use prompt + local validation/repair for anthropic models instead.
	if isAnthropicModel(model) {
		return nil, nil
	}

	adaptedSchema := rf.JSONSchema
	if len(adaptedSchema) > 0 {
		var err error
		adaptedSchema, err = sanitizeStructuredSchemaForModel(model, adaptedSchema)
		if err != nil {
			return nil, err
		}
	}

	return &openRouterResponseFormat{
		Type:       rf.Type,
		JSONSchema: adaptedSchema,
	}, nil
}

// sanitizeStructuredSchemaForModel applies provider/model-specific schema
// compatibility shims. Current: Anthropic via OpenRouter rejects integer
// minimum/maximum bounds in output schemas.
func sanitizeStructuredSchemaForModel(model string, schemaRaw json.RawMessage) (json.RawMessage, error) {
	if len(schemaRaw) == 0 {
		return schemaRaw, nil
	}
	if !isAnthropicModel(model) {
		return schemaRaw, nil
	}

	var root any
	if err := json.Unmarshal(schemaRaw, &root); err != nil {
		return nil, fmt.Errorf("failed to parse structured schema: %w", err)
	}

	stripIntegerBounds(root)

	sanitized, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize sanitized structured schema: %w", err)
	}
	return sanitized, nil
}

func isAnthropicModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "anthropic/")
}

func stripIntegerBounds(node any) {
	switch n := node.(type) {
	case map[string]any:
		if schemaTypeIncludesInteger(n["type"]) {
			delete(n, "minimum")
			delete(n, "maximum")
			delete(n, "exclusiveMinimum")
			delete(n, "exclusiveMaximum")
		}
		for _, v := range n {
			stripIntegerBounds(v)
		}
	case []any:
		for _, v := range n {
			stripIntegerBounds(v)
		}
	}
}

func schemaTypeIncludesInteger(typeVal any) bool {
	switch t := typeVal.(type) {
	case string:
		return t == "integer"
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == "integer" {
				return true
			}
		}
	}
	return false
}

// Recovery names the repair applied to a model reply before it parsed.
type Recovery string

const (
	RecoveryNone          Recovery = ""
	RecoveryCodeFence     Recovery = "code_fence"
	RecoveryProse         Recovery = "surrounding_text"
	RecoveryTrailingComma Recovery = "trailing_comma"
	// RecoveryTruncated means the reply stopped mid-list and was cut back to
	// the last complete element of its outermost array.
	RecoveryTruncated Recovery = "truncated_list"
)

// ParseStructuredJSON parses JSON from model output. See RecoverStructuredJSON.
func ParseStructuredJSON(content string) (json.RawMessage, error) {
	parsed, _, err := RecoverStructuredJSON(content)
	return parsed, err
}

// RecoverStructuredJSON parses a model reply, repairing the usual damage:
// markdown fences, prose around the value, trailing commas and a question
// list cut off by the token limit. The returned JSON is re-marshaled.
func RecoverStructuredJSON(content string) (json.RawMessage, Recovery, error) {
	body := strings.TrimSpace(content)
	if body == "" {
		return nil, RecoveryNone, errors.New("empty structured output")
	}
	if v, ok := compactJSON(body); ok {
		return v, RecoveryNone, nil
	}

	rec := RecoveryNone
	if stripped, ok := stripCodeFences(body); ok {
		if v, ok := compactJSON(stripped); ok {
			return v, RecoveryCodeFence, nil
		}
		body, rec = stripped, RecoveryCodeFence
	}

	start := strings.IndexAny(body, "{[")
	if start < 0 {
		return nil, rec, errors.New("no JSON value in structured output")
	}
	value, complete := balancedValue(body[start:])
	if complete {
		if v, ok := compactJSON(value); ok {
			if rec == RecoveryNone {
				rec = RecoveryProse
			}
			return v, rec, nil
		}
		if v, ok := compactJSON(dropTrailingCommas(value)); ok {
			return v, RecoveryTrailingComma, nil
		}
		return nil, rec, errors.New("failed to parse structured JSON")
	}

	if closed := closeTruncatedList(value); closed != "" {
		if v, ok := compactJSON(dropTrailingCommas(closed)); ok {
			return v, RecoveryTruncated, nil
		}
	}
	return nil, rec, errors.New("failed to parse structured JSON: value is incomplete")
}

func compactJSON(s string) (json.RawMessage, bool) {
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil, false
	}
	out, err := json.Marshal(parsed)
	if err != nil {
		return nil, false
	}
	return out, true
}

// stripCodeFences removes a leading ```lang line and a closing ``` line.
func stripCodeFences(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return "", false
	}
	s = strings.TrimSpace(s[nl+1:])
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = strings.TrimSpace(s[:end])
	}
	return s, s != ""
}

// jsonScanner tracks string and nesting state over raw JSON text.
type jsonScanner struct {
	stack    []byte
	inString bool
	escaped  bool
}

// step consumes c and reports whether it closed a container.
func (sc *jsonScanner) step(c byte) (closed bool) {
	if sc.inString {
		switch {
		case sc.escaped:
			sc.escaped = false
		case c == '\\':
			sc.escaped = true
		case c == '"':
			sc.inString = false
		}
		return false
	}
	switch c {
	case '"':
		sc.inString = true
	case '{', '[':
		sc.stack = append(sc.stack, c)
	case '}', ']':
		if len(sc.stack) > 0 {
			sc.stack = sc.stack[:len(sc.stack)-1]
			return true
		}
	}
	return false
}

// balancedValue returns the prefix of s holding its first complete value.
// When s ends first it returns s and false.
func balancedValue(s string) (string, bool) {
	var sc jsonScanner
	for i := 0; i < len(s); i++ {
		if sc.step(s[i]) && len(sc.stack) == 0 {
			return s[:i+1], true
		}
	}
	return s, false
}

// closeTruncatedList cuts s after the last element completed directly inside
// its outermost array and appends the closers still open at that point. It
// returns "" when no element finished.
func closeTruncatedList(s string) string {
	var sc jsonScanner
	cut := -1
	var open []byte
	for i := 0; i < len(s); i++ {
		if !sc.step(s[i]) || len(sc.stack) == 0 {
			continue
		}
		top := len(sc.stack) - 1
		if sc.stack[top] == '[' && bytes.IndexByte(sc.stack, '[') == top {
			cut = i + 1
			open = append(open[:0], sc.stack...)
		}
	}
	if cut < 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(s[:cut])
	for i := len(open) - 1; i >= 0; i-- {
		if open[i] == '[' {
			b.WriteByte(']')
		} else {
			b.WriteByte('}')
		}
	}
	return b.String()
}

// dropTrailingCommas removes commas that directly precede a closer.
func dropTrailingCommas(s string) string {
	var sc jsonScanner
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		wasString := sc.inString
		sc.step(c)
		if c == ',' && !wasString {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// compiledSchemas holds compiled validators keyed by schema digest; every
// chapter validates against the same few schemas.
var compiledSchemas, _ = lru.New(32)

// ValidateStructuredJSON validates parsed JSON against the canonical schema.
func ValidateStructuredJSON(schemaRaw, parsed json.RawMessage) error {
	if len(schemaRaw) == 0 || len(parsed) == 0 {
		return nil
	}

	schema, err := compileSchema(schemaRaw)
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return fmt.Errorf("failed to decode structured JSON for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}

func compileSchema(schemaRaw json.RawMessage) (*jsonschema.Schema, error) {
	key := sha256.Sum256(schemaRaw)
	if cached, ok := compiledSchemas.Get(key); ok {
		return cached.(*jsonschema.Schema), nil
	}

	coreSchema, err := extractValidationSchema(schemaRaw)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(coreSchema)); err != nil {
		return nil, fmt.Errorf("failed to load structured schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile structured schema: %w", err)
	}
	compiledSchemas.Add(key, schema)
	return schema, nil
}

func extractValidationSchema(schemaRaw json.RawMessage) (json.RawMessage, error) {
	var root any
	if err := json.Unmarshal(schemaRaw, &root); err != nil {
		return nil, fmt.Errorf("invalid structured schema JSON: %w", err)
	}

	if rootMap, ok := root.(map[string]any); ok {
		// Common OpenAI/OpenRouter wrapper: {"name","strict","schema":{...}}
		if inner, ok := rootMap["schema"]; ok {
			b, err := json.Marshal(inner)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize inner schema: %w", err)
			}
			return b, nil
		}
		// Alternate wrapper: {"type":"json_schema","json_schema":{"schema":...}}
		if rawInner, ok := rootMap["json_schema"]; ok {
			if innerMap, ok := rawInner.(map[string]any); ok {
				if innerSchema, ok := innerMap["schema"]; ok {
					b, err := json.Marshal(innerSchema)
					if err != nil {
						return nil, fmt.Errorf("failed to serialize json_schema.schema: %w", err)
					}
					return b, nil
				}
			}
		}
	}

	// Assume raw schema document.
	return schemaRaw, nil
}
