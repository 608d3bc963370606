package bridge

import (
	"encoding/json"
	"strconv"
)

// Values is a tolerant structural accessor over heterogeneous raw JSON:
// missing or mismatched fields read as zero values, never as errors.
type Values map[string]interface{}

// AsValues converts an arbitrary decoded JSON value to Values, or nil.
func AsValues(value interface{}) Values {
	switch actual := value.(type) {
	case Values:
		return actual
	case map[string]interface{}:
		return Values(actual)
	}
	return nil
}

// String reads a string field, stringifying numeric and boolean values.
func (v Values) String(key string) string {
	if v == nil {
		return ""
	}
	switch actual := v[key].(type) {
	case string:
		return actual
	case float64:
		return strconv.FormatFloat(actual, 'f', -1, 64)
	case int:
		return strconv.Itoa(actual)
	case int64:
		return strconv.FormatInt(actual, 10)
	case json.Number:
		return actual.String()
	case bool:
		return strconv.FormatBool(actual)
	}
	return ""
}

// Slice reads an array field.
func (v Values) Slice(key string) []interface{} {
	if v == nil {
		return nil
	}
	actual, _ := v[key].([]interface{})
	return actual
}

// Map reads a nested object field.
func (v Values) Map(key string) Values {
	if v == nil {
		return nil
	}
	return AsValues(v[key])
}
