package backup

import (
	"encoding/json"
	"fmt"
)

// CollectionValidation is the per-collection part of a Validation
type CollectionValidation struct {
	Exists            bool     `json:"exists"`
	DocumentCount     int      `json:"documentCount"`
	HasValidDocuments bool     `json:"hasValidDocuments"`
	Errors            []string `json:"errors"`
}

// Validation reports whether a snapshot is structurally restorable.
// Documents without an id are warnings, not errors.
type Validation struct {
	IsValid     bool                            `json:"isValid"`
	Errors      []string                        `json:"errors"`
	Warnings    []string                        `json:"warnings"`
	Collections map[string]CollectionValidation `json:"collections"`
	Metadata    map[string]any                  `json:"metadata"`
}

func newValidation() *Validation {
	return &Validation{
		IsValid:     true,
		Errors:      []string{},
		Warnings:    []string{},
		Collections: map[string]CollectionValidation{},
	}
}

func (v *Validation) fail(msg string) {
	v.IsValid = false
	v.Errors = append(v.Errors, msg)
}

// ValidateJSON validates an encoded snapshot
func ValidateJSON(data []byte) *Validation {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		v := newValidation()
		v.fail(fmt.Sprintf("Validation error: %v", err))
		return v
	}
	if raw == nil {
		return ValidateBackupData(nil)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		v := newValidation()
		v.fail("Validation error: backup is not an object")
		return v
	}
	return ValidateBackupData(m)
}

// ValidateBackupData checks a decoded snapshot. It never fails; every
// problem is reported in the result.
func ValidateBackupData(raw map[string]any) *Validation {
	v := newValidation()
	if raw == nil {
		v.fail("Backup data is null or undefined")
		return v
	}

	if meta, ok := raw["metadata"].(map[string]any); ok && meta != nil {
		v.Metadata = meta
	} else {
		v.fail("Backup metadata is missing")
	}

	data, ok := raw["data"].(map[string]any)
	if !ok || data == nil {
		v.fail("Backup data section is missing")
		return v
	}

	for name, docs := range data {
		cv := CollectionValidation{Exists: true, HasValidDocuments: true, Errors: []string{}}

		list, ok := docs.([]any)
		if !ok {
			cv.HasValidDocuments = false
			cv.Errors = append(cv.Errors, "Collection data is not an array")
			v.IsValid = false
			v.Collections[name] = cv
			continue
		}

		cv.DocumentCount = len(list)
		for i, d := range list {
			doc, _ := d.(map[string]any)
			if id, _ := doc["id"].(string); id == "" {
				cv.Errors = append(cv.Errors, fmt.Sprintf("Document at index %d missing id", i))
				v.Warnings = append(v.Warnings, fmt.Sprintf("%s: Document at index %d missing id", name, i))
			}
		}
		v.Collections[name] = cv
	}
	return v
}
