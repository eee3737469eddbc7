package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuzzyMatchScore(t *testing.T) {
	score, ok := fuzzyMatchScore("", "anything")
	assert.True(t, ok)
	assert.Zero(t, score)

	_, ok = fuzzyMatchScore("xyz", "Get Users List")
	assert.False(t, ok)

	early, ok := fuzzyMatchScore("get", "GET users")
	assert.True(t, ok)
	late, ok := fuzzyMatchScore("get", "list of targets")
	assert.True(t, ok)
	assert.Less(t, early, late)
}

func TestFilterItems(t *testing.T) {
	items := []Item{
		{ID: "Get Users List", Method: "GET", Description: "Fetch a list of all users"},
		{ID: "Create New Post", Method: "POST", Description: "Create a new post with title and body"},
		{ID: "Get Comments by Post", Method: "GET", Description: "Retrieve comments for a specific post"},
	}

	assert.Equal(t, []int{0, 1, 2}, filterItems("", items))
	assert.Equal(t, []int{0, 1, 2}, filterItems("   ", items))
	assert.Equal(t, []int{2}, filterItems("comments", items))
	assert.Equal(t, []int{1}, filterItems("POST Create", items))
	assert.Empty(t, filterItems("zzz", items))
}
