// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schema implements the structural validator for backup input.
//
// It is a small structural type-checker, not a full schema language: a
// Node describes type, constant, enum, required fields, properties,
// additionalProperties, items and oneOf, and validation recursively
// collects every violation as a path-qualified message such as
//
//	$.payload.sessions: expected type array
//
// All violations are reported in one pass so a caller can surface a
// complete diagnosis instead of fixing errors one at a time. Validation
// operates on untyped JSON (the result of json.Unmarshal into any) and
// runs before any write.
//
// Two fixed schemas are exported: PackageV3 and EncryptedEnvelopeV1.
// Pre-v3 shapes are never validated directly; the legacy package
// upgrades them to v3 first so everything downstream validates
// uniformly.
//
// # Thread Safety
//
// Nodes are immutable after construction and safe for concurrent use.
package schema

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// Node describes one schema position.
//
// Zero fields are unconstrained: a zero Node accepts any value. Checks
// run in the order Const, Enum, Type, then structural recursion, so a
// wrong-type value reports the most specific message first.
type Node struct {
	// Type is one of "object", "array", "string", "number", "integer",
	// "boolean", "null". Empty means any type.
	Type string

	// Const requires the value to equal this constant exactly.
	// JSON numbers must be given as float64.
	Const any

	// Enum requires the value to equal one of these constants.
	Enum []any

	// Required lists object fields that must be present.
	// Presence is checked before recursing into Properties.
	Required []string

	// Properties maps declared object fields to their schemas.
	Properties map[string]*Node

	// NoAdditional flags object keys not covered by Properties as
	// violations.
	NoAdditional bool

	// Additional, when set, validates every object key not covered by
	// Properties. Used for dictionaries keyed by arbitrary storage key.
	Additional *Node

	// Items validates every element of an array.
	Items *Node

	// OneOf accepts the value if any alternative validates with zero
	// errors. No best-partial-match reporting is attempted.
	OneOf []*Node
}

// ValidationError carries the full list of structural violations found
// in one validation pass.
type ValidationError struct {
	// Problems are path-qualified messages, one per violation,
	// in document order.
	Problems []string
}

// Error joins all problems into one message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Problems, "; "))
}

// Validate checks value against the schema and returns every violation.
//
// The returned slice is nil when the value is structurally valid.
// Paths are rooted at "$".
func (n *Node) Validate(value any) []string {
	return n.validate(value, "$")
}

// Check runs Validate and wraps a non-empty result in *ValidationError.
func (n *Node) Check(value any) error {
	if problems := n.Validate(value); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (n *Node) validate(value any, path string) []string {
	var problems []string

	if n.Const != nil {
		if !jsonEqual(value, n.Const) {
			return []string{fmt.Sprintf("%s: expected constant %s", path, renderConst(n.Const))}
		}
	}

	if len(n.Enum) > 0 {
		matched := false
		for _, candidate := range n.Enum {
			if jsonEqual(value, candidate) {
				matched = true
				break
			}
		}
		if !matched {
			return []string{fmt.Sprintf("%s: expected one of %s", path, renderEnum(n.Enum))}
		}
	}

	if len(n.OneOf) > 0 {
		for _, alternative := range n.OneOf {
			if len(alternative.validate(value, path)) == 0 {
				return problems
			}
		}
		return append(problems, fmt.Sprintf("%s: does not match any allowed variant", path))
	}

	if n.Type != "" && !hasType(value, n.Type) {
		return append(problems, fmt.Sprintf("%s: expected type %s", path, n.Type))
	}

	switch typed := value.(type) {
	case map[string]any:
		problems = append(problems, n.validateObject(typed, path)...)
	case []any:
		if n.Items != nil {
			for i, element := range typed {
				problems = append(problems, n.Items.validate(element, fmt.Sprintf("%s[%d]", path, i))...)
			}
		}
	}

	return problems
}

func (n *Node) validateObject(object map[string]any, path string) []string {
	var problems []string

	// Required presence first, then recursion into declared properties.
	for _, field := range n.Required {
		if _, ok := object[field]; !ok {
			problems = append(problems, fmt.Sprintf("%s.%s: missing required field", path, field))
		}
	}

	for _, field := range sortedKeys(n.Properties) {
		value, ok := object[field]
		if !ok {
			continue
		}
		problems = append(problems, n.Properties[field].validate(value, path+"."+field)...)
	}

	if n.NoAdditional || n.Additional != nil {
		for _, key := range sortedObjectKeys(object) {
			if _, declared := n.Properties[key]; declared {
				continue
			}
			if n.NoAdditional {
				problems = append(problems, fmt.Sprintf("%s.%s: unknown field", path, key))
				continue
			}
			problems = append(problems, n.Additional.validate(object[key], path+"."+key)...)
		}
	}

	return problems
}

// hasType reports whether a decoded JSON value carries the named type.
// encoding/json decodes all numbers to float64, so "integer" means a
// float64 without a fractional part.
func hasType(value any, typeName string) bool {
	switch typeName {
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		number, ok := value.(float64)
		return ok && number == math.Trunc(number)
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "null":
		return value == nil
	default:
		return false
	}
}

// jsonEqual compares two decoded JSON values structurally.
func jsonEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func renderConst(value any) string {
	if text, ok := value.(string); ok {
		return fmt.Sprintf("%q", text)
	}
	return fmt.Sprintf("%v", value)
}

func renderEnum(values []any) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = renderConst(value)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// sortedKeys returns property names in deterministic order so repeated
// validations of the same document produce identical output.
func sortedKeys(properties map[string]*Node) []string {
	keys := make([]string, 0, len(properties))
	for key := range properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedObjectKeys(object map[string]any) []string {
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
