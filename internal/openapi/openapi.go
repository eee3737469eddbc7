package openapi

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"apidash/internal/model"
)

//go:embed jsonplaceholder.json
var document []byte

// Load parses and validates the embedded description of the catalog's
// upstream API.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

type Operation struct {
	Method      string
	Path        string
	Summary     string
	OperationID string
}

// Operations lists every operation in doc, sorted by path then method.
func Operations(doc *openapi3.T) []Operation {
	var out []Operation
	if doc == nil || doc.Paths == nil {
		return out
	}

	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			out = append(out, Operation{
				Method:      strings.ToUpper(method),
				Path:        path,
				Summary:     strings.TrimSpace(op.Summary),
				OperationID: strings.TrimSpace(op.OperationID),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path == out[j].Path {
			return out[i].Method < out[j].Method
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Covers returns an error naming the first endpoint that has no matching
// operation in doc.
func Covers(doc *openapi3.T, eps []model.Endpoint) error {
	for _, ep := range eps {
		if operation(doc, ep) == nil {
			return fmt.Errorf("openapi: no operation for %s %s (%s)", ep.Method, ep.Path, ep.ID)
		}
	}
	return nil
}

// Validator checks decoded response payloads against the schema the
// document declares for each endpoint.
type Validator struct {
	doc *openapi3.T
}

func NewValidator(doc *openapi3.T) *Validator {
	return &Validator{doc: doc}
}

// ValidateResponse reports whether payload has the shape the endpoint
// declares for status. Endpoints or statuses without a JSON schema accept
// any payload.
func (v *Validator) ValidateResponse(ep model.Endpoint, status int, payload any) error {
	if v == nil || v.doc == nil {
		return nil
	}
	op := operation(v.doc, ep)
	if op == nil {
		return fmt.Errorf("openapi: no operation for %s %s", ep.Method, ep.Path)
	}

	ref := responseFor(op, status)
	if ref == nil || ref.Value == nil {
		return nil
	}
	mt := ref.Value.Content.Get("application/json")
	if mt == nil || mt.Schema == nil || mt.Schema.Value == nil {
		return nil
	}
	if err := mt.Schema.Value.VisitJSON(payload); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}

func operation(doc *openapi3.T, ep model.Endpoint) *openapi3.Operation {
	if doc == nil || doc.Paths == nil {
		return nil
	}
	item := doc.Paths.Find(ep.Path)
	if item == nil {
		return nil
	}
	return item.GetOperation(strings.ToUpper(ep.Method))
}

// responseFor prefers the exact status, then any declared 2xx response.
func responseFor(op *openapi3.Operation, status int) *openapi3.ResponseRef {
	if op.Responses == nil {
		return nil
	}
	if ref := op.Responses.Status(status); ref != nil {
		return ref
	}
	keys := make([]string, 0, op.Responses.Len())
	for k := range op.Responses.Map() {
		if strings.HasPrefix(k, "2") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return nil
	}
	return op.Responses.Value(keys[0])
}
