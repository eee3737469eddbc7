package model

// InputKind selects the typed input an endpoint collects.
type InputKind int

const (
	InputUsersList InputKind = iota
	InputCreatePost
	InputComments
)

// DependencyKey names a value produced by one call and consumed by another.
type DependencyKey string

const (
	KeyUsers         DependencyKey = "users"
	KeyCreatedPostID DependencyKey = "createdPostId"
)

type BodyField struct {
	Name     string
	Label    string
	Required bool

	// Source, when set, names the dependency whose value populates the
	// field's choices (e.g. the user selector).
	Source DependencyKey
}

// Requirement binds a dependency value to a query parameter. The call is not
// permitted while the dependency is unset.
type Requirement struct {
	Key     DependencyKey
	Param   string
	Message string
}

// Output declares a dependency value produced by a successful call.
// Pointer is an RFC 6901 JSON pointer into the decoded response; the empty
// pointer selects the whole payload.
type Output struct {
	Key     DependencyKey
	Pointer string
}

type Endpoint struct {
	ID          string
	Method      string
	Path        string
	Description string

	Input    InputKind
	Fields   []BodyField
	Requires []Requirement
	Produces []Output
}

// HasBody reports whether the endpoint sends a JSON body.
func (e Endpoint) HasBody() bool {
	return len(e.Fields) > 0
}

type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
