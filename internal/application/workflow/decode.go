package workflow

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"

	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalHook converts JSON numbers and numeric strings into decimal.Decimal
func decimalHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case nil:
		return decimal.Zero, nil
	}
	return data, nil
}

// Decode decodes a loosely typed input map into out. Keys may be camelCase
// or snake_case; aliases rename legacy keys before decoding.
func Decode(input map[string]interface{}, out interface{}, aliases map[string]string) error {
	normalized := NormalizeKeys(input)
	for from, to := range aliases {
		if v, ok := normalized[from]; ok {
			if _, exists := normalized[to]; !exists {
				normalized[to] = v
			}
			delete(normalized, from)
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       decimalHook,
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(normalized); err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}
	return nil
}

// NormalizeKeys returns a copy of m with every key converted to snake_case,
// recursing into nested maps and lists
func NormalizeKeys(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[snakeCase(k)] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return NormalizeKeys(t)
	case []interface{}:
		items := make([]interface{}, len(t))
		for i, item := range t {
			items[i] = normalizeValue(item)
		}
		return items
	default:
		return v
	}
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
