package marks_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-erp/core"
	"github.com/trezcool/masomo-erp/core/marks"
	inmemdb "github.com/trezcool/masomo-erp/storage/database/inmem"
	"github.com/trezcool/masomo-erp/tests"
)

var errBoom = errors.New("boom")

// failingRepo fails the upserts of the given students and the blueprint queries, when asked to.
type failingRepo struct {
	marks.Repository
	failStudents   map[string]bool
	failBlueprints bool
	failMarksOf    string // blueprint ID
}

func (repo *failingRepo) QueryBlueprints(ctx context.Context, filter marks.BlueprintFilter) ([]marks.Blueprint, error) {
	if repo.failBlueprints {
		return nil, errBoom
	}
	return repo.Repository.QueryBlueprints(ctx, filter)
}

func (repo *failingRepo) QueryStudentMarks(ctx context.Context, blueprintID string) (map[string][]marks.StudentMark, error) {
	if blueprintID == repo.failMarksOf {
		return nil, errBoom
	}
	return repo.Repository.QueryStudentMarks(ctx, blueprintID)
}

func (repo *failingRepo) UpsertInternalTotal(ctx context.Context, total marks.InternalTotal) (marks.InternalTotal, error) {
	if repo.failStudents[total.Key.StudentID] {
		return marks.InternalTotal{}, errBoom
	}
	return repo.Repository.UpsertInternalTotal(ctx, total)
}

func (repo *failingRepo) UpsertComponentTotal(ctx context.Context, total marks.ComponentTotal) (marks.ComponentTotal, error) {
	if repo.failStudents[total.Key.StudentID] {
		return marks.ComponentTotal{}, errBoom
	}
	return repo.Repository.UpsertComponentTotal(ctx, total)
}

func newRepo(t *testing.T) marks.Repository {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	return inmemdb.NewMarksRepository(db)
}

func getTotal(t *testing.T, repo marks.Repository, studentID, subjectID string, cieNo int) marks.InternalTotal {
	t.Helper()
	total, err := repo.GetInternalTotal(context.Background(), marks.TotalKey{StudentID: studentID, SubjectID: subjectID, CIENo: cieNo})
	require.NoError(t, err)
	return total
}

func TestService_RollupInternals(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	svc := testutil.NewService(repo)

	bp := testutil.CreateBlueprint(t, repo, "CS101", 1, testutil.StandardSubQs()...)
	testutil.SetMarks(t, repo, bp, "s1", map[string]float64{"1a": 3, "2a": 4.5, "3a": 5, "4a": 2})
	testutil.SetMarks(t, repo, bp, "s2", map[string]float64{"1a": 2})

	report, err := svc.RollupInternals(ctx, marks.BlueprintFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.IsZero())
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 0, report.Failed())

	s1 := getTotal(t, repo, "s1", "CS101", 1)
	assert.Equal(t, 4.5, s1.BestPartA)
	assert.Equal(t, 5.0, s1.BestPartB)
	assert.Equal(t, 10, s1.Total)

	s2 := getTotal(t, repo, "s2", "CS101", 1)
	assert.Equal(t, 2.0, s2.BestPartA)
	assert.Equal(t, 0.0, s2.BestPartB)
	assert.Equal(t, 2, s2.Total)

	t.Run("idempotent", func(t *testing.T) {
		_, err := svc.RollupInternals(ctx, marks.BlueprintFilter{})
		require.NoError(t, err)

		totals, err := svc.Totals(ctx, marks.TotalFilter{SubjectID: "CS101"})
		require.NoError(t, err)
		if assert.Len(t, totals, 2) {
			assert.Equal(t, 10, totals[0].Total)
			assert.Equal(t, 2, totals[1].Total)
		}
	})

	t.Run("updated mark overwrites the total", func(t *testing.T) {
		testutil.SetMarks(t, repo, bp, "s1", map[string]float64{"2a": 5})
		_, err := svc.RollupInternals(ctx, marks.BlueprintFilter{SubjectID: "CS101", CIENo: 1})
		require.NoError(t, err)

		totals, err := svc.Totals(ctx, marks.TotalFilter{StudentID: "s1"})
		require.NoError(t, err)
		if assert.Len(t, totals, 1) {
			assert.Equal(t, 5.0, totals[0].BestPartA)
			assert.Equal(t, 10, totals[0].Total)
		}
	})
}

func TestService_RollupInternals_studentWithoutMarks(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	svc := testutil.NewService(repo)

	bp := testutil.CreateBlueprint(t, repo, "CS101", 1, testutil.StandardSubQs()...)
	testutil.SetMarks(t, repo, bp, "s1", map[string]float64{"1a": 3})

	stale := marks.InternalTotal{Key: marks.TotalKey{StudentID: "s2", SubjectID: "CS101", CIENo: 1}, BestPartA: 7, Total: 7}
	_, err := repo.UpsertInternalTotal(ctx, stale)
	require.NoError(t, err)

	report, err := svc.RollupInternals(ctx, marks.BlueprintFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded())

	assert.Equal(t, stale, getTotal(t, repo, "s2", "CS101", 1))
}

func TestService_RollupInternals_skipsEmptyBlueprints(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	svc := testutil.NewService(repo)

	testutil.CreateBlueprint(t, repo, "CS101", 1)
	bp := testutil.CreateBlueprint(t, repo, "CS101", 2, testutil.StandardSubQs()...)
	testutil.SetMarks(t, repo, bp, "s1", map[string]float64{"3a": 8})

	report, err := svc.RollupInternals(ctx, marks.BlueprintFilter{SubjectID: "CS101"})
	require.NoError(t, err)
	require.Len(t, report.Blueprints, 2)
	assert.True(t, report.Blueprints[0].Skipped)
	assert.Empty(t, report.Blueprints[0].Students)
	assert.Equal(t, 1, report.Skipped())
	assert.Equal(t, 0, report.Failed())
	assert.Equal(t, 8, getTotal(t, repo, "s1", "CS101", 2).Total)

	totals, err := svc.Totals(ctx, marks.TotalFilter{CIENo: 1})
	require.NoError(t, err)
	assert.Empty(t, totals)
}

func TestService_RollupInternals_isolatesFailures(t *testing.T) {
	ctx := context.Background()
	base := newRepo(t)

	broken := testutil.CreateBlueprint(t, base, "CS101", 1, testutil.StandardSubQs()...)
	bp := testutil.CreateBlueprint(t, base, "CS101", 2, testutil.StandardSubQs()...)
	testutil.SetMarks(t, base, broken, "s1", map[string]float64{"1a": 1})
	for _, s := range []string{"s1", "s2", "s3"} {
		testutil.SetMarks(t, base, bp, s, map[string]float64{"1a": 4, "4a": 5})
	}

	repo := &failingRepo{Repository: base, failStudents: map[string]bool{"s2": true}, failMarksOf: broken.ID}
	svc := testutil.NewService(repo)

	report, err := svc.RollupInternals(ctx, marks.BlueprintFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 2, report.Failed()) // the broken blueprint + s2

	require.Len(t, report.Blueprints, 2)
	assert.Equal(t, errBoom, errors.Cause(report.Blueprints[0].Err))

	students := report.Blueprints[1].Students
	require.Len(t, students, 3)
	assert.True(t, students[0].OK())
	assert.False(t, students[1].OK())
	assert.Equal(t, "s2", students[1].Key.StudentID)
	assert.Equal(t, errBoom, errors.Cause(students[1].Err))
	assert.True(t, students[2].OK())

	assert.Equal(t, 9, getTotal(t, base, "s1", "CS101", 2).Total)
	assert.Equal(t, 9, getTotal(t, base, "s3", "CS101", 2).Total)
	_, err = base.GetInternalTotal(ctx, marks.TotalKey{StudentID: "s2", SubjectID: "CS101", CIENo: 2})
	assert.Equal(t, marks.ErrTotalNotFound, err)

	summary := report.Summary()
	assert.Contains(t, summary, "Totals saved: 2 - Failures: 2 - Blueprints skipped: 0")
	assert.Contains(t, summary, "subject CS101 CIE 1: failed")
	assert.Contains(t, summary, "student=s2 subject=CS101 cie=2")
	assert.True(t, strings.HasSuffix(summary, "\r\n"))
}

func TestService_RollupInternals_errors(t *testing.T) {
	base := newRepo(t)
	testutil.CreateBlueprint(t, base, "CS101", 1, testutil.StandardSubQs()...)

	t.Run("blueprints query", func(t *testing.T) {
		svc := testutil.NewService(&failingRepo{Repository: base, failBlueprints: true})
		_, err := svc.RollupInternals(context.Background(), marks.BlueprintFilter{})
		assert.Equal(t, errBoom, errors.Cause(err))
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		svc := testutil.NewService(base)
		report, err := svc.RollupInternals(ctx, marks.BlueprintFilter{})
		assert.Equal(t, context.Canceled, err)
		assert.Empty(t, report.Blueprints)
		assert.False(t, report.FinishedAt.IsZero())
	})
}

func TestService_CreateBlueprint(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	svc := testutil.NewService(repo)

	valid := func() marks.NewBlueprint {
		return marks.NewBlueprint{
			SubjectID: " CS101 ",
			CIENo:     1,
			SubQuestions: []marks.NewSubQuestion{
				{QuestionNo: 1, Label: "1a", MaxMarks: 5},
				{QuestionNo: 2, Label: "2a", MaxMarks: 5},
			},
		}
	}

	tests := []struct {
		name      string
		mutate    func(nb *marks.NewBlueprint)
		wantField string
		wantErr   error
	}{
		{name: "no subject", mutate: func(nb *marks.NewBlueprint) { nb.SubjectID = "  " }, wantField: "subject_id"},
		{name: "bad subject", mutate: func(nb *marks.NewBlueprint) { nb.SubjectID = "CS/101" }, wantField: "subject_id"},
		{name: "no CIE", mutate: func(nb *marks.NewBlueprint) { nb.CIENo = 0 }, wantField: "cie_no"},
		{name: "no sub-questions", mutate: func(nb *marks.NewBlueprint) { nb.SubQuestions = nil }, wantField: "sub_questions"},
		{name: "question out of range", mutate: func(nb *marks.NewBlueprint) { nb.SubQuestions[1].QuestionNo = 5 }, wantField: "sub_questions[1].question_no"},
		{name: "no label", mutate: func(nb *marks.NewBlueprint) { nb.SubQuestions[0].Label = "" }, wantField: "sub_questions[0].label"},
		{name: "zero max marks", mutate: func(nb *marks.NewBlueprint) { nb.SubQuestions[0].MaxMarks = 0 }, wantField: "sub_questions[0].max_marks"},
		{name: "duplicate label", mutate: func(nb *marks.NewBlueprint) { nb.SubQuestions[1].Label = " 1a" }, wantField: "sub_questions[1].label", wantErr: marks.ErrDuplicateLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nb := valid()
			tt.mutate(&nb)
			_, err := svc.CreateBlueprint(ctx, nb)

			require.True(t, core.IsValidationError(err), "got %v", err)
			vErr := err.(*core.ValidationError)
			_, ok := vErr.Field(tt.wantField)
			assert.True(t, ok, "no error on %s: %+v", tt.wantField, vErr.Fields)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, vErr.Err)
			}
		})
	}

	bp, err := svc.CreateBlueprint(ctx, valid())
	require.NoError(t, err)
	assert.NotEmpty(t, bp.ID)
	assert.Equal(t, "CS101", bp.SubjectID)
	require.Len(t, bp.SubQuestions, 2)
	for _, sq := range bp.SubQuestions {
		assert.NotEmpty(t, sq.ID)
		assert.Equal(t, bp.ID, sq.BlueprintID)
		assert.True(t, sq.QuestionNo.Valid)
	}

	got, err := svc.GetBlueprint(ctx, "CS101", 1)
	require.NoError(t, err)
	assert.Equal(t, bp.ID, got.ID)

	_, err = svc.CreateBlueprint(ctx, valid())
	require.True(t, core.IsValidationError(err))
	assert.Equal(t, marks.ErrBlueprintExists, err.(*core.ValidationError).Err)

	bps, err := svc.QueryBlueprints(ctx, marks.BlueprintFilter{SubjectID: "CS101"})
	require.NoError(t, err)
	assert.Len(t, bps, 1)
}

func TestService_RecordMark(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	svc := testutil.NewService(repo)

	bp := testutil.CreateBlueprint(t, repo, "CS101", 1, testutil.StandardSubQs()...)
	q1 := testutil.SubQuestionID(t, bp, "1a")

	tests := []struct {
		name      string
		nm        marks.NewStudentMark
		wantField string
	}{
		{name: "no student", nm: marks.NewStudentMark{SubQuestionID: q1, Mark: 1}, wantField: "student_id"},
		{name: "no sub-question", nm: marks.NewStudentMark{StudentID: "s1", Mark: 1}, wantField: "sub_question_id"},
		{name: "unknown sub-question", nm: marks.NewStudentMark{StudentID: "s1", SubQuestionID: "lol", Mark: 1}, wantField: "sub_question_id"},
		{name: "negative mark", nm: marks.NewStudentMark{StudentID: "s1", SubQuestionID: q1, Mark: -1}, wantField: "mark"},
		{name: "mark above max", nm: marks.NewStudentMark{StudentID: "s1", SubQuestionID: q1, Mark: 10.5}, wantField: "mark"},
		{name: "mark with 3 decimals", nm: marks.NewStudentMark{StudentID: "s1", SubQuestionID: q1, Mark: 4.333}, wantField: "mark"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordMark(ctx, tt.nm)
			require.True(t, core.IsValidationError(err), "got %v", err)
			_, ok := err.(*core.ValidationError).Field(tt.wantField)
			assert.True(t, ok)
		})
	}

	m, err := svc.RecordMark(ctx, marks.NewStudentMark{StudentID: " s1 ", SubQuestionID: q1, Mark: 10})
	require.NoError(t, err)
	assert.Equal(t, "s1", m.StudentID)
	assert.False(t, m.UpdatedAt.IsZero())

	_, err = svc.RecordMark(ctx, marks.NewStudentMark{StudentID: "s1", SubQuestionID: q1, Mark: 6})
	require.NoError(t, err)
	byStudent, err := repo.QueryStudentMarks(ctx, bp.ID)
	require.NoError(t, err)
	if assert.Len(t, byStudent["s1"], 1) {
		assert.Equal(t, 6.0, byStudent["s1"][0].Mark)
	}
}

func TestService_RollupComponents(t *testing.T) {
	ctx := context.Background()
	base := newRepo(t)
	svc := testutil.NewService(base)

	record := func(studentID, component string, attempt int, mark float64) {
		_, err := svc.RecordComponentMark(ctx, marks.NewComponentMark{
			StudentID: studentID, SubjectID: "CS101", Component: component, Attempt: attempt, Mark: mark,
		})
		require.NoError(t, err)
	}
	record("s1", "Assignment", 1, 4)
	record("s1", marks.ComponentAssignment, 2, 5)
	record("s1", marks.ComponentQuiz, 1, 3)
	record("s1", marks.ComponentQuiz, 1, 2) // overwrites the first attempt
	record("s3", marks.ComponentSeminar, 1, 5)

	_, err := svc.RecordComponentMark(ctx, marks.NewComponentMark{StudentID: "s1", SubjectID: "CS101", Component: "lab", Attempt: 1})
	assert.True(t, core.IsValidationError(err))
	_, err = svc.RecordComponentMark(ctx, marks.NewComponentMark{StudentID: "s1", SubjectID: "CS101", Component: "quiz", Attempt: 0})
	assert.True(t, core.IsValidationError(err))

	for _, it := range []marks.InternalTotal{
		{Key: marks.TotalKey{StudentID: "s1", SubjectID: "CS101", CIENo: 1}, Total: 10},
		{Key: marks.TotalKey{StudentID: "s1", SubjectID: "CS101", CIENo: 2}, Total: 12},
		{Key: marks.TotalKey{StudentID: "s2", SubjectID: "CS101", CIENo: 1}, Total: 8},
		{Key: marks.TotalKey{StudentID: "s2", SubjectID: "MA101", CIENo: 1}, Total: 20},
	} {
		_, err = base.UpsertInternalTotal(ctx, it)
		require.NoError(t, err)
	}

	report, err := svc.RollupComponents(ctx, "CS101")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded())
	assert.Equal(t, 0, report.Failed())

	cts, err := svc.ComponentTotals(ctx, "CS101")
	require.NoError(t, err)
	require.Len(t, cts, 3)

	assert.Equal(t, "s1", cts[0].Key.StudentID)
	assert.Equal(t, 9.0, cts[0].Assignments)
	assert.Equal(t, 2.0, cts[0].Quizzes)
	assert.Equal(t, 22.0, cts[0].CIE)
	assert.Equal(t, 33.0, cts[0].Overall)

	assert.Equal(t, "s2", cts[1].Key.StudentID)
	assert.Equal(t, 8.0, cts[1].Overall)

	assert.Equal(t, "s3", cts[2].Key.StudentID)
	assert.Equal(t, 5.0, cts[2].Seminars)
	assert.Equal(t, 5.0, cts[2].Overall)

	t.Run("failures are isolated", func(t *testing.T) {
		svc := testutil.NewService(&failingRepo{Repository: base, failStudents: map[string]bool{"s2": true}})
		report, err := svc.RollupComponents(ctx, "CS101")
		require.NoError(t, err)
		assert.Equal(t, 2, report.Succeeded())
		assert.Equal(t, 1, report.Failed())
		assert.Equal(t, errBoom, errors.Cause(report.Students[1].Err))
	})
}
