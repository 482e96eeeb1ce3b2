package utils

import "strings"

func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// ClaimStrings normalises a decoded JWT claim that may be a JSON array, a Go
// string slice, or a single space separated string.
func ClaimStrings(claim any) []string {
	switch v := claim.(type) {
	case []any:
		return ToStringSlice(v)
	case []string:
		return append([]string(nil), v...)
	case string:
		return strings.Fields(v)
	}
	return []string{}
}
