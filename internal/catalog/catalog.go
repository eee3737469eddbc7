// Package catalog holds the fixed, ordered set of endpoints the dashboard
// can exercise.
package catalog

import (
	"net/http"
	"slices"

	"apidash/internal/model"
)

const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

const (
	GetUsersList      = "Get Users List"
	CreateNewPost     = "Create New Post"
	GetCommentsByPost = "Get Comments by Post"
)

var endpoints = []model.Endpoint{
	{
		ID:          GetUsersList,
		Method:      http.MethodGet,
		Path:        "/users",
		Description: "Fetch a list of all users",
		Input:       model.InputUsersList,
		Produces:    []model.Output{{Key: model.KeyUsers, Pointer: ""}},
	},
	{
		ID:          CreateNewPost,
		Method:      http.MethodPost,
		Path:        "/posts",
		Description: "Create a new post with title and body",
		Input:       model.InputCreatePost,
		Fields: []model.BodyField{
			{Name: "title", Label: "Title", Required: true},
			{Name: "body", Label: "Body", Required: true},
			{Name: "userId", Label: "User ID", Required: true, Source: model.KeyUsers},
		},
		Produces: []model.Output{{Key: model.KeyCreatedPostID, Pointer: "/id"}},
	},
	{
		ID:          GetCommentsByPost,
		Method:      http.MethodGet,
		Path:        "/comments",
		Description: "Retrieve comments for a specific post",
		Input:       model.InputComments,
		Requires: []model.Requirement{{
			Key:     model.KeyCreatedPostID,
			Param:   "postId",
			Message: "No post available to fetch comments. Create a post first.",
		}},
	},
}

// List returns the catalog in display order. The returned descriptors share
// no memory with the table.
func List() []model.Endpoint {
	out := make([]model.Endpoint, len(endpoints))
	for i, ep := range endpoints {
		out[i] = clone(ep)
	}
	return out
}

func Find(id string) (model.Endpoint, bool) {
	for _, ep := range endpoints {
		if ep.ID == id {
			return clone(ep), true
		}
	}
	return model.Endpoint{}, false
}

func clone(ep model.Endpoint) model.Endpoint {
	ep.Fields = slices.Clone(ep.Fields)
	ep.Requires = slices.Clone(ep.Requires)
	ep.Produces = slices.Clone(ep.Produces)
	return ep
}
