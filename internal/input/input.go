// Package input holds the typed form values collected for the selected
// endpoint.
package input

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"apidash/internal/model"
)

var (
	ErrNoSelection  = errors.New("no endpoint selected")
	ErrUnknownField = errors.New("unknown field")
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Input is the collected input for one endpoint.
type Input interface {
	// Get returns the value of a named field.
	Get(name string) (string, bool)
	// Set assigns a named field. It fails only for names the input does not
	// declare.
	Set(name, value string) error
	// Body returns the JSON request body, if the input has one.
	Body() (any, bool)
	Empty() bool
	// Clone returns an independent copy.
	Clone() Input
}

type UsersList struct{}

func (UsersList) Get(string) (string, bool) { return "", false }
func (UsersList) Set(name, _ string) error  { return unknown(name) }
func (UsersList) Body() (any, bool)         { return nil, false }
func (UsersList) Empty() bool               { return true }
func (u UsersList) Clone() Input            { return u }

type Comments struct{}

func (Comments) Get(string) (string, bool) { return "", false }
func (Comments) Set(name, _ string) error  { return unknown(name) }
func (Comments) Body() (any, bool)         { return nil, false }
func (Comments) Empty() bool               { return true }
func (c Comments) Clone() Input            { return c }

type CreatePost struct {
	Title    string `json:"title" validate:"required"`
	BodyText string `json:"body" validate:"required"`
	UserID   string `json:"userId" validate:"required,numeric"`
}

func (p *CreatePost) Get(name string) (string, bool) {
	switch name {
	case "title":
		return p.Title, true
	case "body":
		return p.BodyText, true
	case "userId":
		return p.UserID, true
	}
	return "", false
}

func (p *CreatePost) Set(name, value string) error {
	switch name {
	case "title":
		p.Title = value
	case "body":
		p.BodyText = value
	case "userId":
		p.UserID = value
	default:
		return unknown(name)
	}
	return nil
}

// Body sends all three fields, including empty ones.
func (p *CreatePost) Body() (any, bool) {
	return *p, true
}

func (p *CreatePost) Clone() Input {
	cp := *p
	return &cp
}

func (p *CreatePost) Empty() bool {
	return p.Title == "" && p.BodyText == "" && p.UserID == ""
}

// New returns the empty input for kind.
func New(kind model.InputKind) Input {
	switch kind {
	case model.InputCreatePost:
		return &CreatePost{}
	case model.InputComments:
		return Comments{}
	default:
		return UsersList{}
	}
}

func unknown(name string) error {
	return fmt.Errorf("%w: %s", ErrUnknownField, name)
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Validate checks in against its field rules. Inputs without fields are
// always valid.
func Validate(in Input) error {
	p, ok := in.(*CreatePost)
	if !ok {
		return nil
	}
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return err
	}
	out := &ValidationError{}
	for _, ve := range valErrs {
		out.Fields = append(out.Fields, FieldError{Field: ve.Field(), Message: formatValidationError(ve)})
	}
	return out
}

func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "numeric":
		return "must be numeric"
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
