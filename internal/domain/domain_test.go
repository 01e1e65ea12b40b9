package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactories(t *testing.T) {
	var factory EntityFactory[*Item] = NewItem

	a := factory("Mayo Scissors", "mayo.jpg")
	b := factory("Mayo Scissors", "mayo.jpg")
	require.NotSame(t, a, b)

	a.Name = "changed"
	assert.Equal(t, "Mayo Scissors", b.Name)
	assert.Zero(t, b.ID)
	assert.Empty(t, b.SKU)
	assert.Nil(t, b.Subcategory)

	c1, c2 := NewCategory("Scissors", "s.jpg"), NewCategory("Scissors", "s.jpg")
	assert.NotSame(t, c1, c2)
	assert.Equal(t, *c1, *c2)
}

func TestLinkedTo(t *testing.T) {
	scissors := NewCategory("Scissors", "s.jpg")
	forceps := NewCategory("Forceps", "f.jpg")

	bare := NewSubcategory("Curved", "curved.jpg")
	underScissors := bare.LinkedTo(scissors)
	underForceps := bare.LinkedTo(forceps)

	assert.Nil(t, bare.Category, "linking must not mutate the parsed entity")
	assert.Same(t, scissors, underScissors.Category)
	assert.Same(t, forceps, underForceps.Category)
	assert.Equal(t, "Curved", underForceps.Name)

	item := NewItem("Kelly Forceps", "kelly.jpg")
	linked := item.LinkedTo(underForceps)
	assert.Nil(t, item.Subcategory)
	assert.Same(t, underForceps, linked.Subcategory)
	assert.Same(t, forceps, linked.Subcategory.Category)
}

func TestStaging(t *testing.T) {
	staging := NewStaging()
	category := NewCategory("Scissors", "s.jpg")
	sub := NewSubcategory("Curved", "c.jpg").LinkedTo(category)

	staging.AddCategories(category)
	require.NoError(t, staging.AddSubcategories(sub))
	require.NoError(t, staging.AddItems(
		NewItem("Mayo Scissors", "m.jpg").LinkedTo(sub),
		NewItem("Metzenbaum Scissors", "mz.jpg").LinkedTo(sub),
	))

	err := staging.AddSubcategories(NewSubcategory("Orphan", "o.jpg"))
	assert.ErrorIs(t, err, ErrUnlinked)

	err = staging.AddItems(NewItem("Ok", "ok.jpg").LinkedTo(sub), NewItem("Orphan", "o.jpg"))
	assert.ErrorIs(t, err, ErrUnlinked)

	assert.Equal(t, map[Level]int{
		LevelCategory:    1,
		LevelSubcategory: 1,
		LevelItem:        2,
	}, staging.Counts(), "rejected batches must not be staged partially")
}

func TestLevel(t *testing.T) {
	assert.Equal(t, LevelSubcategory, LevelCategory.Child())
	assert.Equal(t, LevelItem, LevelSubcategory.Child())
	assert.Equal(t, Level(""), LevelItem.Child())

	assert.Equal(t, "Instruments", LevelItem.GetDisplayName())
	assert.Equal(t, "Unknown", Level("bogus").GetDisplayName())
	assert.Len(t, Levels, 3)
}
