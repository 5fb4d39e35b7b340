package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitford/reddit-profiler/models"
)

func list(names ...string) *models.UsernameList {
	return &models.UsernameList{Path: "test.txt", Names: names}
}

func overlapNames(t *testing.T, lists ...*models.UsernameList) []string {
	t.Helper()
	result, err := Overlap(lists)
	require.NoError(t, err)
	names := make([]string, 0, len(result.Entries))
	for _, e := range result.Entries {
		names = append(names, e.Username)
	}
	return names
}

func TestOverlapThreeLists(t *testing.T) {
	names := overlapNames(t,
		list("a", "b", "c"),
		list("b", "c", "d"),
		list("c", "d", "e"),
	)
	assert.Equal(t, []string{"c"}, names)
}

func TestOverlapCommutative(t *testing.T) {
	a := list("a", "b", "c")
	b := list("b", "c", "d")
	c := list("c", "d", "e")

	first := overlapNames(t, a, b, c)
	second := overlapNames(t, c, a, b)
	assert.ElementsMatch(t, first, second)
}

func TestOverlapSelfReturnsDeduplicated(t *testing.T) {
	a := list("alice", "bob", "carol")
	names := overlapNames(t, a, a)
	assert.Equal(t, []string{"alice", "bob", "carol"}, names)
}

func TestOverlapCaseInsensitiveKeepsFirstListCasing(t *testing.T) {
	names := overlapNames(t,
		list("Alice", "BOB"),
		list("alice", "bob", "carol"),
	)
	assert.Equal(t, []string{"Alice", "BOB"}, names)
}

func TestOverlapFileCountBounds(t *testing.T) {
	single := []*models.UsernameList{list("a")}
	_, err := Overlap(single)
	var countErr *InvalidFileCountError
	require.True(t, errors.As(err, &countErr))
	assert.Equal(t, 1, countErr.Count)

	six := make([]*models.UsernameList, 6)
	for i := range six {
		six[i] = list("a")
	}
	_, err = Overlap(six)
	assert.Error(t, err)

	five := six[:5]
	_, err = Overlap(five)
	assert.NoError(t, err)
}

func TestOverlapEmptyIntersection(t *testing.T) {
	names := overlapNames(t, list("a", "b"), list("c", "d"))
	assert.Empty(t, names)
}
