// Package schema validates generic JSON documents against named schema
// categories. The default implementation compiles the JSON Schemas embedded
// under schemas/ with kaptinlin/jsonschema.
package schema

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Category names a registered schema.
type Category string

const (
	// CategoryActivity is the outbound ActivityStreams envelope.
	CategoryActivity Category = "activity"
	// CategoryMessage is an inbound Gitter room message event.
	CategoryMessage Category = "message"
)

// Result is the outcome of a single validation. A failed result carries at
// least one FieldError describing why.
type Result struct {
	Valid  bool
	Errors []model.FieldError
}

// Pass returns a successful result.
func Pass() Result {
	return Result{Valid: true}
}

// Fail returns a failed result with a single reason.
func Fail(field, message string) Result {
	return Result{Errors: []model.FieldError{{Field: field, Message: message}}}
}

// Err returns nil for a valid result, otherwise a *model.ValidationError.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &model.ValidationError{Errors: r.Errors}
}

// Validator checks a document against a schema category.
type Validator interface {
	Validate(ctx context.Context, value any, category Category) Result
}

// JSONSchemaValidator implements Validator with compiled JSON Schemas.
type JSONSchemaValidator struct {
	compiler *jsonschema.Compiler

	mu      sync.RWMutex
	schemas map[Category]*jsonschema.Schema
}

var _ Validator = (*JSONSchemaValidator)(nil)

// NewJSONSchemaValidator compiles the embedded activity and message schemas.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	v := &JSONSchemaValidator{
		compiler: jsonschema.NewCompiler(),
		schemas:  make(map[Category]*jsonschema.Schema),
	}
	for _, c := range []Category{CategoryActivity, CategoryMessage} {
		data, err := schemaFS.ReadFile("schemas/" + string(c) + ".json")
		if err != nil {
			return nil, fmt.Errorf("read %s schema: %w", c, err)
		}
		if err := v.Register(c, data); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Register compiles schemaJSON and makes it available under category,
// replacing any schema previously registered there.
func (v *JSONSchemaValidator) Register(category Category, schemaJSON []byte) error {
	if category == "" {
		return fmt.Errorf("schema category is required")
	}
	compiled, err := v.compile(schemaJSON)
	if err != nil {
		return fmt.Errorf("compile %s schema: %w", category, err)
	}
	v.mu.Lock()
	v.schemas[category] = compiled
	v.mu.Unlock()
	return nil
}

// compile serializes access to the compiler, which caches by $id.
func (v *JSONSchemaValidator) compile(schemaJSON []byte) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.compiler.Compile(schemaJSON)
}

// Categories returns the registered categories in sorted order.
func (v *JSONSchemaValidator) Categories() []Category {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Category, 0, len(v.schemas))
	for c := range v.schemas {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate evaluates value against the schema registered for category.
func (v *JSONSchemaValidator) Validate(ctx context.Context, value any, category Category) Result {
	if err := ctx.Err(); err != nil {
		return Fail("context", err.Error())
	}

	v.mu.RLock()
	compiled, ok := v.schemas[category]
	v.mu.RUnlock()
	if !ok {
		return Fail("category", fmt.Sprintf("unknown schema category %q", category))
	}

	res := compiled.Validate(value)
	if res.Valid {
		return Pass()
	}

	out := Result{Errors: make([]model.FieldError, 0, len(res.Errors))}
	for keyword, e := range res.Errors {
		out.Errors = append(out.Errors, model.FieldError{Field: keyword, Message: e.Error()})
	}
	sort.Slice(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	if len(out.Errors) == 0 {
		out.Errors = append(out.Errors, model.FieldError{Field: string(category), Message: "does not match schema"})
	}
	return out
}
