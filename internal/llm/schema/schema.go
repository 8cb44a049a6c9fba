// Package schema validates LLM output against the JSON contracts the rest of
// the system depends on. Generated payloads are rejected before they reach
// the store or a job's results field.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed calendar.json
var calendarSchemaJSON []byte

//go:embed goals.json
var goalsSchemaJSON []byte

var (
	compileOnce    sync.Once
	calendarSchema *gojsonschema.Schema
	goalsSchema    *gojsonschema.Schema
	compileErr     error
)

func compile() {
	calendarSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(calendarSchemaJSON))
	if compileErr != nil {
		return
	}
	goalsSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(goalsSchemaJSON))
}

// ValidateCalendar checks a generated calendar payload against the calendar schema.
func ValidateCalendar(raw json.RawMessage) error {
	compileOnce.Do(compile)
	if compileErr != nil {
		return fmt.Errorf("compile schemas: %w", compileErr)
	}
	return validate(calendarSchema, raw, "calendar")
}

// ValidateGoals checks a generated goal payload against the goals schema.
func ValidateGoals(raw json.RawMessage) error {
	compileOnce.Do(compile)
	if compileErr != nil {
		return fmt.Errorf("compile schemas: %w", compileErr)
	}
	return validate(goalsSchema, raw, "goals")
}

func validate(schema *gojsonschema.Schema, raw json.RawMessage, name string) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate %s payload: %w", name, err)
	}
	if !result.Valid() {
		descs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descs = append(descs, desc.String())
		}
		return fmt.Errorf("%s payload failed schema validation: %s", name, strings.Join(descs, "; "))
	}
	return nil
}
