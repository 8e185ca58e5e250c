package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-erp/core/marks"
)

// RepositoryTests runs the behaviour every marks.Repository implementation must share.
// newRepo must return an empty repository.
func RepositoryTests(t *testing.T, newRepo func(t *testing.T) marks.Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("blueprints", func(t *testing.T) {
		repo := newRepo(t)

		cs2 := CreateBlueprint(t, repo, "CS101", 2, StandardSubQs()...)
		cs1 := CreateBlueprint(t, repo, "CS101", 1,
			SubQ{QuestionNo: 1, Label: "1b", MaxMarks: 2.5},
			SubQ{QuestionNo: 1, Label: "1a", MaxMarks: 2.5},
			SubQ{Label: "bonus", MaxMarks: 1},
		)
		CreateBlueprint(t, repo, "MA101", 1, StandardSubQs()...)

		bps, err := repo.QueryBlueprints(ctx, marks.BlueprintFilter{})
		require.NoError(t, err)
		require.Len(t, bps, 3)
		assert.Equal(t, cs1.ID, bps[0].ID)
		assert.Equal(t, cs2.ID, bps[1].ID)
		assert.Equal(t, "MA101", bps[2].SubjectID)

		bps, err = repo.QueryBlueprints(ctx, marks.BlueprintFilter{SubjectID: "CS101", CIENo: 2})
		require.NoError(t, err)
		if assert.Len(t, bps, 1) {
			assert.Equal(t, cs2.ID, bps[0].ID)
			assert.Len(t, bps[0].SubQuestions, 4)
		}

		got, err := repo.GetBlueprint(ctx, "CS101", 1)
		require.NoError(t, err)
		assert.Equal(t, cs1.ID, got.ID)
		assert.Len(t, got.SubQuestions, 3)
		assert.Equal(t, 2.5, got.MaxTotal())

		_, err = repo.GetBlueprint(ctx, "CS101", 3)
		assert.Equal(t, marks.ErrBlueprintNotFound, errors.Cause(err))

		_, err = repo.CreateBlueprint(ctx, marks.Blueprint{ID: uuid.New().String(), SubjectID: "CS101", CIENo: 1})
		assert.Equal(t, marks.ErrBlueprintExists, errors.Cause(err))

		bonusID := SubQuestionID(t, got, "bonus")
		sq, err := repo.GetSubQuestion(ctx, bonusID)
		require.NoError(t, err)
		assert.False(t, sq.QuestionNo.Valid)
		assert.Equal(t, cs1.ID, sq.BlueprintID)

		_, err = repo.GetSubQuestion(ctx, "00000000-0000-0000-0000-000000000000")
		assert.Equal(t, marks.ErrSubQuestionNotFound, errors.Cause(err))
		_, err = repo.GetSubQuestion(ctx, "lol")
		assert.Equal(t, marks.ErrSubQuestionNotFound, errors.Cause(err))
	})

	t.Run("student marks", func(t *testing.T) {
		repo := newRepo(t)

		bp := CreateBlueprint(t, repo, "CS101", 1, StandardSubQs()...)
		other := CreateBlueprint(t, repo, "CS101", 2, StandardSubQs()...)
		SetMarks(t, repo, bp, "s1", map[string]float64{"1a": 3, "2a": 4.5})
		SetMarks(t, repo, bp, "s2", map[string]float64{"3a": 1})
		SetMarks(t, repo, other, "s3", map[string]float64{"1a": 9})
		SetMarks(t, repo, bp, "s1", map[string]float64{"2a": 5}) // overwrite

		byStudent, err := repo.QueryStudentMarks(ctx, bp.ID)
		require.NoError(t, err)
		assert.Len(t, byStudent, 2)
		if assert.Len(t, byStudent["s1"], 2) {
			got := map[string]float64{}
			for _, m := range byStudent["s1"] {
				got[m.SubQuestionID] = m.Mark
			}
			assert.Equal(t, map[string]float64{
				SubQuestionID(t, bp, "1a"): 3,
				SubQuestionID(t, bp, "2a"): 5,
			}, got)
		}
		assert.Len(t, byStudent["s2"], 1)
		assert.NotContains(t, byStudent, "s3")

		empty := CreateBlueprint(t, repo, "MA101", 1, StandardSubQs()...)
		byStudent, err = repo.QueryStudentMarks(ctx, empty.ID)
		require.NoError(t, err)
		assert.Empty(t, byStudent)

		_, err = repo.QueryStudentMarks(ctx, uuid.New().String())
		assert.Equal(t, marks.ErrBlueprintNotFound, errors.Cause(err))
		_, err = repo.QueryStudentMarks(ctx, "lol")
		assert.Equal(t, marks.ErrBlueprintNotFound, errors.Cause(err))
	})

	t.Run("internal totals", func(t *testing.T) {
		repo := newRepo(t)

		key := marks.TotalKey{StudentID: "s1", SubjectID: "CS101", CIENo: 1}
		_, err := repo.GetInternalTotal(ctx, key)
		assert.Equal(t, marks.ErrTotalNotFound, errors.Cause(err))

		for _, it := range []marks.InternalTotal{
			{Key: key, BestPartA: 4.5, BestPartB: 5, Total: 10, UpdatedAt: now},
			{Key: marks.TotalKey{StudentID: "s0", SubjectID: "CS101", CIENo: 1}, Total: 3, UpdatedAt: now},
			{Key: marks.TotalKey{StudentID: "s1", SubjectID: "CS101", CIENo: 2}, Total: 7, UpdatedAt: now},
			{Key: marks.TotalKey{StudentID: "s1", SubjectID: "MA101", CIENo: 1}, Total: 1, UpdatedAt: now},
			{Key: key, BestPartA: 5, BestPartB: 5, Total: 10, UpdatedAt: now}, // upsert
		} {
			_, err = repo.UpsertInternalTotal(ctx, it)
			require.NoError(t, err)
		}

		got, err := repo.GetInternalTotal(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 5.0, got.BestPartA)
		assert.Equal(t, 10, got.Total)
		assert.True(t, now.Equal(got.UpdatedAt))

		totals, err := repo.QueryInternalTotals(ctx, marks.TotalFilter{SubjectID: "CS101"})
		require.NoError(t, err)
		if assert.Len(t, totals, 3) {
			assert.Equal(t, "s0", totals[0].Key.StudentID)
			assert.Equal(t, key, totals[1].Key)
			assert.Equal(t, 2, totals[2].Key.CIENo)
		}

		totals, err = repo.QueryInternalTotals(ctx, marks.TotalFilter{StudentID: "s1", CIENo: 1})
		require.NoError(t, err)
		assert.Len(t, totals, 2)
	})

	t.Run("components", func(t *testing.T) {
		repo := newRepo(t)

		for _, cm := range []marks.ComponentMark{
			{StudentID: "s2", SubjectID: "CS101", Component: marks.ComponentQuiz, Attempt: 1, Mark: 3, UpdatedAt: now},
			{StudentID: "s1", SubjectID: "CS101", Component: marks.ComponentSeminar, Attempt: 1, Mark: 5, UpdatedAt: now},
			{StudentID: "s1", SubjectID: "CS101", Component: marks.ComponentAssignment, Attempt: 2, Mark: 2, UpdatedAt: now},
			{StudentID: "s1", SubjectID: "CS101", Component: marks.ComponentAssignment, Attempt: 1, Mark: 4, UpdatedAt: now},
			{StudentID: "s1", SubjectID: "MA101", Component: marks.ComponentQuiz, Attempt: 1, Mark: 1, UpdatedAt: now},
			{StudentID: "s1", SubjectID: "CS101", Component: marks.ComponentAssignment, Attempt: 1, Mark: 4.5, UpdatedAt: now}, // upsert
		} {
			_, err := repo.UpsertComponentMark(ctx, cm)
			require.NoError(t, err)
		}

		cms, err := repo.QueryComponentMarks(ctx, "CS101")
		require.NoError(t, err)
		if assert.Len(t, cms, 4) {
			assert.Equal(t, marks.ComponentAssignment, cms[0].Component)
			assert.Equal(t, 1, cms[0].Attempt)
			assert.Equal(t, 4.5, cms[0].Mark)
			assert.Equal(t, 2, cms[1].Attempt)
			assert.Equal(t, marks.ComponentSeminar, cms[2].Component)
			assert.Equal(t, "s2", cms[3].StudentID)
		}

		for _, ct := range []marks.ComponentTotal{
			{Key: marks.ComponentKey{StudentID: "s2", SubjectID: "CS101"}, Quizzes: 3, Overall: 3, UpdatedAt: now},
			{Key: marks.ComponentKey{StudentID: "s1", SubjectID: "CS101"}, Assignments: 6, Overall: 6, UpdatedAt: now},
			{Key: marks.ComponentKey{StudentID: "s1", SubjectID: "CS101"}, Assignments: 6.5, Seminars: 5, Overall: 11.5, UpdatedAt: now}, // upsert
		} {
			_, err = repo.UpsertComponentTotal(ctx, ct)
			require.NoError(t, err)
		}

		cts, err := repo.QueryComponentTotals(ctx, "CS101")
		require.NoError(t, err)
		if assert.Len(t, cts, 2) {
			assert.Equal(t, "s1", cts[0].Key.StudentID)
			assert.Equal(t, 11.5, cts[0].Overall)
			assert.Equal(t, "s2", cts[1].Key.StudentID)
		}

		cts, err = repo.QueryComponentTotals(ctx, "MA101")
		require.NoError(t, err)
		assert.Empty(t, cts)
	})
}
