package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// ParseArgs turns key=value pairs into tool arguments, converting each value
// to the type its schema property declares. Unknown keys stay strings so
// validation can report them.
func ParseArgs(schema *jsonschema.Schema, pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q must be key=value", pair)
		}

		var prop *jsonschema.Schema
		if schema != nil {
			prop = schema.Properties[key]
		}
		converted, err := convertArg(prop, value)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", key, err)
		}
		args[key] = converted
	}
	return args, nil
}

func convertArg(prop *jsonschema.Schema, value string) (any, error) {
	if prop == nil {
		return value, nil
	}
	switch prop.Type {
	case "integer":
		return strconv.ParseInt(value, 10, 64)
	case "number":
		return strconv.ParseFloat(value, 64)
	case "boolean":
		return strconv.ParseBool(value)
	case "array", "object":
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return value, nil
}

// intArg reads an integer argument, accepting the numeric types JSON
// decoding and ParseArgs produce
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return fallback
}

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
