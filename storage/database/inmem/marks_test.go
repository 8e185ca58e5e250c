package inmemdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-erp/core/marks"
	"github.com/trezcool/masomo-erp/tests"
)

func newRepo(t *testing.T) marks.Repository {
	db, err := Open()
	require.NoError(t, err)
	return NewMarksRepository(db)
}

func TestMarksRepository(t *testing.T) {
	testutil.RepositoryTests(t, newRepo)
}

func TestMarksRepository_returnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	bp := testutil.CreateBlueprint(t, repo, "CS101", 1, testutil.StandardSubQs()...)

	bp.SubQuestions[0].MaxMarks = 100
	got, err := repo.GetBlueprint(ctx, "CS101", 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.SubQuestions[0].MaxMarks)

	got.SubQuestions[0].Label = "lol"
	again, err := repo.GetBlueprint(ctx, "CS101", 1)
	require.NoError(t, err)
	assert.Equal(t, "1a", again.SubQuestions[0].Label)
}
