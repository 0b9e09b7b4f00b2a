package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1 ─┬─ 2 ── 4
//    └─ 3
// 5
func sampleTree() *Tree {
	return NewTree([]Category{
		{ID: 1, Name: "Электрика"},
		{ID: 2, Name: "Кабель", ParentID: 1},
		{ID: 3, Name: "Автоматы", ParentID: 1},
		{ID: 4, Name: "ВВГ", ParentID: 2},
		{ID: 5, Name: "Крепёж"},
	})
}

func TestTree_CheckParent(t *testing.T) {
	tests := []struct {
		name    string
		id      int64
		parent  int64
		wantErr error
	}{
		{"move to root", 4, 0, nil},
		{"move under sibling branch", 4, 3, nil},
		{"move root under other root", 1, 5, nil},
		{"self", 2, 2, ErrCategoryCycle},
		{"under own child", 1, 2, ErrCategoryCycle},
		{"under own grandchild", 1, 4, ErrCategoryCycle},
		{"unknown category", 99, 1, ErrNotFound},
		{"unknown parent", 2, 99, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sampleTree().CheckParent(tt.id, tt.parent)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTree_SetParentKeepsTreeAcyclic(t *testing.T) {
	tr := sampleTree()
	require.NoError(t, tr.SetParent(5, 4))
	assert.Equal(t, []int64{4, 2, 1}, tr.Ancestors(5))

	require.ErrorIs(t, tr.SetParent(1, 5), ErrCategoryCycle)
	assert.Empty(t, tr.Ancestors(1), "failed reparent must not change the tree")
}

func TestTree_Descendants(t *testing.T) {
	tr := sampleTree()
	assert.ElementsMatch(t, []int64{2, 3, 4}, tr.Descendants(1))
	assert.Empty(t, tr.Descendants(5))
}

func TestCategoryPath(t *testing.T) {
	cats := []Category{
		{ID: 1, Name: "Электрика"},
		{ID: 2, Name: "Кабель", ParentID: 1},
		{ID: 4, Name: "ВВГ", ParentID: 2},
	}
	assert.Equal(t, "Электрика / Кабель / ВВГ", CategoryPath(cats, 4))
	assert.Equal(t, "Электрика", CategoryPath(cats, 1))
	assert.Equal(t, "", CategoryPath(cats, 9))
}
