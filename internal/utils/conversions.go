package utils

import (
	"strconv"
	"strings"
)

func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// ClaimString renders a JSON-decoded scalar as a string. Numbers are written in
// decimal without exponent, anything else that is not a string yields "".
func ClaimString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

// SplitScopes turns a space separated scope string into a slice, dropping blanks.
func SplitScopes(s string) []string {
	return strings.Fields(s)
}
