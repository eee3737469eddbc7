package openapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apidash/internal/catalog"
	"apidash/internal/model"
)

func load(t *testing.T) *Validator {
	t.Helper()
	doc, err := Load(context.Background())
	require.NoError(t, err)
	return NewValidator(doc)
}

func TestLoadCoversCatalog(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)
	assert.NoError(t, Covers(doc, catalog.List()))

	ops := Operations(doc)
	require.Len(t, ops, 3)
	assert.Equal(t, Operation{Method: "GET", Path: "/comments", Summary: "Retrieve comments for a specific post", OperationID: "listComments"}, ops[0])
	assert.Equal(t, "/posts", ops[1].Path)
	assert.Equal(t, "POST", ops[1].Method)
	assert.Equal(t, "/users", ops[2].Path)
}

func TestCoversReportsMissing(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)

	err = Covers(doc, []model.Endpoint{{ID: "Delete Post", Method: "DELETE", Path: "/posts"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Delete Post")
}

func TestValidateUsers(t *testing.T) {
	v := load(t)
	ep, _ := catalog.Find(catalog.GetUsersList)

	ok := []any{map[string]any{"id": float64(1), "name": "Leanne Graham"}}
	assert.NoError(t, v.ValidateResponse(ep, 200, ok))

	assert.Error(t, v.ValidateResponse(ep, 200, map[string]any{"id": float64(1)}))
	assert.Error(t, v.ValidateResponse(ep, 200, []any{map[string]any{"name": "no id"}}))
}

func TestValidateCreatedPost(t *testing.T) {
	v := load(t)
	ep, _ := catalog.Find(catalog.CreateNewPost)

	payload := map[string]any{"id": float64(101), "title": "Hi", "body": "World", "userId": "1"}
	assert.NoError(t, v.ValidateResponse(ep, 201, payload))
	// Falls back to the declared 2xx response when the status differs.
	assert.NoError(t, v.ValidateResponse(ep, 200, payload))

	assert.Error(t, v.ValidateResponse(ep, 201, map[string]any{"title": "Hi"}))
	assert.Error(t, v.ValidateResponse(ep, 201, "not an object"))
}

func TestValidateComments(t *testing.T) {
	v := load(t)
	ep, _ := catalog.Find(catalog.GetCommentsByPost)

	assert.NoError(t, v.ValidateResponse(ep, 200, []any{}))
	assert.NoError(t, v.ValidateResponse(ep, 200, []any{
		map[string]any{"id": float64(1), "postId": float64(101), "body": "nice"},
	}))
	assert.Error(t, v.ValidateResponse(ep, 200, []any{map[string]any{"id": "one"}}))
}

func TestNilValidatorAcceptsAnything(t *testing.T) {
	var v *Validator
	assert.NoError(t, v.ValidateResponse(model.Endpoint{}, 200, nil))
}
