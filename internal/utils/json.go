// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Package utils provides helpers for reading loosely typed JSON values, as
// produced by decoding into interface{}.
package utils

import (
	"encoding/json"
)

// AsObject returns v as a JSON object.
func AsObject(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

// ExtractString extracts a string value from a map
func ExtractString(data map[string]interface{}, key string) string {
	if value, ok := data[key].(string); ok {
		return value
	}
	return ""
}

// ExtractFloat extracts a number from a map. Both float64 and json.Number
// values are accepted; anything else yields 0.
func ExtractFloat(data map[string]interface{}, key string) float64 {
	switch value := data[key].(type) {
	case float64:
		return value
	case json.Number:
		f, err := value.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// ExtractBool extracts a boolean value from a map
func ExtractBool(data map[string]interface{}, key string) bool {
	if value, ok := data[key].(bool); ok {
		return value
	}
	return false
}
