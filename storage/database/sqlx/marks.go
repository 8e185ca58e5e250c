package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-erp/core/marks"
)

// postgres error codes
const (
	pqInvalidTextRepr     = "22P02"
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type (
	blueprintRow struct {
		ID        string    `db:"id"`
		SubjectID string    `db:"subject_id"`
		CIENo     int       `db:"cie_no"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	subQuestionRow struct {
		ID          string   `db:"id"`
		BlueprintID string   `db:"blueprint_id"`
		QuestionNo  null.Int `db:"question_no"`
		Label       string   `db:"label"`
		MaxMarks    float64  `db:"max_marks"`
	}

	studentMarkRow struct {
		StudentID     string    `db:"student_id"`
		SubQuestionID string    `db:"sub_question_id"`
		Mark          float64   `db:"mark"`
		UpdatedAt     time.Time `db:"updated_at"`
	}

	internalTotalRow struct {
		StudentID string    `db:"student_id"`
		SubjectID string    `db:"subject_id"`
		CIENo     int       `db:"cie_no"`
		BestPartA float64   `db:"best_part_a"`
		BestPartB float64   `db:"best_part_b"`
		Total     int       `db:"total"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	componentMarkRow struct {
		StudentID string    `db:"student_id"`
		SubjectID string    `db:"subject_id"`
		Component string    `db:"component"`
		Attempt   int       `db:"attempt"`
		Mark      float64   `db:"mark"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	componentTotalRow struct {
		StudentID   string    `db:"student_id"`
		SubjectID   string    `db:"subject_id"`
		Assignments float64   `db:"assignments"`
		Quizzes     float64   `db:"quizzes"`
		Seminars    float64   `db:"seminars"`
		CIE         float64   `db:"cie"`
		Overall     float64   `db:"overall"`
		UpdatedAt   time.Time `db:"updated_at"`
	}
)

var (
	blueprintColumns      = []string{"id", "subject_id", "cie_no", "created_at", "updated_at"}
	subQuestionColumns    = []string{"id", "blueprint_id", "question_no", "label", "max_marks"}
	internalTotalColumns  = []string{"student_id", "subject_id", "cie_no", "best_part_a", "best_part_b", "total", "updated_at"}
	componentMarkColumns  = []string{"student_id", "subject_id", "component", "attempt", "mark", "updated_at"}
	componentTotalColumns = []string{"student_id", "subject_id", "assignments", "quizzes", "seminars", "cie", "overall", "updated_at"}
)

type marksRepository struct {
	db *sqlx.DB
}

var _ marks.Repository = (*marksRepository)(nil) // interface compliance check

func NewMarksRepository(db *sqlx.DB) *marksRepository {
	return &marksRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func pqErrCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

func (repo marksRepository) selectRows(ctx context.Context, dest interface{}, qb sq.SelectBuilder) error {
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, repo.db, dest, query, args...)
}

func (repo marksRepository) getRow(ctx context.Context, dest interface{}, qb sq.SelectBuilder) error {
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, repo.db, dest, query, args...)
}

// upsert inserts a row or, when conflictCols already exist, overwrites every other column.
func (repo marksRepository) upsert(ctx context.Context, table string, conflictCols, cols []string, vals ...interface{}) error {
	isConflictCol := make(map[string]bool, len(conflictCols))
	for _, c := range conflictCols {
		isConflictCol[c] = true
	}
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		if !isConflictCol[c] {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}

	query, args, err := psql.Insert(table).
		Columns(cols...).
		Values(vals...).
		Suffix(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflictCols, ", "), strings.Join(sets, ", "))).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building upsert")
	}
	_, err = repo.db.ExecContext(ctx, query, args...)
	return err
}

func (repo marksRepository) withSubQuestions(ctx context.Context, rows []blueprintRow) ([]marks.Blueprint, error) {
	bps := make([]marks.Blueprint, 0, len(rows))
	if len(rows) == 0 {
		return bps, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var sqRows []subQuestionRow
	err := repo.selectRows(ctx, &sqRows, psql.
		Select(subQuestionColumns...).
		From("sub_question").
		Where(sq.Eq{"blueprint_id": ids}).
		OrderBy("blueprint_id", "question_no NULLS LAST", "label"))
	if err != nil {
		return nil, errors.Wrap(err, "querying sub-questions")
	}

	byBlueprint := make(map[string][]marks.SubQuestion, len(rows))
	for _, r := range sqRows {
		byBlueprint[r.BlueprintID] = append(byBlueprint[r.BlueprintID], marks.SubQuestion{
			ID:          r.ID,
			BlueprintID: r.BlueprintID,
			QuestionNo:  r.QuestionNo,
			Label:       r.Label,
			MaxMarks:    r.MaxMarks,
		})
	}
	for _, r := range rows {
		bps = append(bps, marks.Blueprint{
			ID:           r.ID,
			SubjectID:    r.SubjectID,
			CIENo:        r.CIENo,
			SubQuestions: byBlueprint[r.ID],
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
		})
	}
	return bps, nil
}

func (repo marksRepository) QueryBlueprints(ctx context.Context, filter marks.BlueprintFilter) ([]marks.Blueprint, error) {
	qb := psql.Select(blueprintColumns...).From("blueprint").OrderBy("subject_id", "cie_no")
	if filter.SubjectID != "" {
		qb = qb.Where(sq.Eq{"subject_id": filter.SubjectID})
	}
	if filter.CIENo != 0 {
		qb = qb.Where(sq.Eq{"cie_no": filter.CIENo})
	}

	var rows []blueprintRow
	if err := repo.selectRows(ctx, &rows, qb); err != nil {
		return nil, errors.Wrap(err, "querying blueprints")
	}
	return repo.withSubQuestions(ctx, rows)
}

func (repo marksRepository) GetBlueprint(ctx context.Context, subjectID string, cieNo int) (marks.Blueprint, error) {
	var row blueprintRow
	err := repo.getRow(ctx, &row, psql.
		Select(blueprintColumns...).
		From("blueprint").
		Where(sq.Eq{"subject_id": subjectID, "cie_no": cieNo}))
	if err != nil {
		return marks.Blueprint{}, trapNoRowsErr(err, marks.ErrBlueprintNotFound, "finding blueprint")
	}
	bps, err := repo.withSubQuestions(ctx, []blueprintRow{row})
	if err != nil {
		return marks.Blueprint{}, err
	}
	return bps[0], nil
}

func (repo marksRepository) CreateBlueprint(ctx context.Context, bp marks.Blueprint) (marks.Blueprint, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return marks.Blueprint{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	query, args, err := psql.Insert("blueprint").
		Columns(blueprintColumns...).
		Values(bp.ID, bp.SubjectID, bp.CIENo, bp.CreatedAt.UTC(), bp.UpdatedAt.UTC()).
		ToSql()
	if err != nil {
		return marks.Blueprint{}, errors.Wrap(err, "building blueprint insert")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		if pqErrCode(err) == pqUniqueViolation {
			return marks.Blueprint{}, marks.ErrBlueprintExists
		}
		return marks.Blueprint{}, errors.Wrap(err, "inserting blueprint")
	}

	if len(bp.SubQuestions) > 0 {
		ib := psql.Insert("sub_question").Columns(subQuestionColumns...)
		for _, s := range bp.SubQuestions {
			ib = ib.Values(s.ID, bp.ID, s.QuestionNo, s.Label, s.MaxMarks)
		}
		if query, args, err = ib.ToSql(); err != nil {
			return marks.Blueprint{}, errors.Wrap(err, "building sub-questions insert")
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return marks.Blueprint{}, errors.Wrap(err, "inserting sub-questions")
		}
	}

	if err = tx.Commit(); err != nil {
		return marks.Blueprint{}, errors.Wrap(err, "committing blueprint")
	}
	return bp, nil
}

func (repo marksRepository) GetSubQuestion(ctx context.Context, id string) (marks.SubQuestion, error) {
	var row subQuestionRow
	err := repo.getRow(ctx, &row, psql.
		Select(subQuestionColumns...).
		From("sub_question").
		Where(sq.Eq{"id": id}))
	if err != nil {
		if pqErrCode(err) == pqInvalidTextRepr { // not a uuid
			return marks.SubQuestion{}, marks.ErrSubQuestionNotFound
		}
		return marks.SubQuestion{}, trapNoRowsErr(err, marks.ErrSubQuestionNotFound, "finding sub-question")
	}
	return marks.SubQuestion{
		ID:          row.ID,
		BlueprintID: row.BlueprintID,
		QuestionNo:  row.QuestionNo,
		Label:       row.Label,
		MaxMarks:    row.MaxMarks,
	}, nil
}

func (repo marksRepository) QueryStudentMarks(ctx context.Context, blueprintID string) (map[string][]marks.StudentMark, error) {
	var found bool
	err := repo.getRow(ctx, &found, psql.Select("true").From("blueprint").Where(sq.Eq{"id": blueprintID}))
	if err != nil {
		if pqErrCode(err) == pqInvalidTextRepr { // not a uuid
			return nil, marks.ErrBlueprintNotFound
		}
		return nil, trapNoRowsErr(err, marks.ErrBlueprintNotFound, "finding blueprint")
	}

	var rows []studentMarkRow
	err = repo.selectRows(ctx, &rows, psql.
		Select("sm.student_id", "sm.sub_question_id", "sm.mark", "sm.updated_at").
		From("student_mark sm").
		Join("sub_question sq ON sq.id = sm.sub_question_id").
		Where(sq.Eq{"sq.blueprint_id": blueprintID}).
		OrderBy("sm.student_id", "sm.sub_question_id"))
	if err != nil {
		return nil, errors.Wrap(err, "querying student marks")
	}

	byStudent := make(map[string][]marks.StudentMark)
	for _, r := range rows {
		byStudent[r.StudentID] = append(byStudent[r.StudentID], marks.StudentMark{
			StudentID:     r.StudentID,
			SubQuestionID: r.SubQuestionID,
			Mark:          r.Mark,
			UpdatedAt:     r.UpdatedAt,
		})
	}
	return byStudent, nil
}

func (repo marksRepository) UpsertStudentMark(ctx context.Context, mark marks.StudentMark) (marks.StudentMark, error) {
	err := repo.upsert(ctx, "student_mark",
		[]string{"student_id", "sub_question_id"},
		[]string{"student_id", "sub_question_id", "mark", "updated_at"},
		mark.StudentID, mark.SubQuestionID, mark.Mark, mark.UpdatedAt.UTC())
	if err != nil {
		if pqErrCode(err) == pqForeignKeyViolation {
			return marks.StudentMark{}, marks.ErrSubQuestionNotFound
		}
		return marks.StudentMark{}, errors.Wrap(err, "upserting student mark")
	}
	return mark, nil
}

func (repo marksRepository) UpsertInternalTotal(ctx context.Context, total marks.InternalTotal) (marks.InternalTotal, error) {
	k := total.Key
	err := repo.upsert(ctx, "internal_total",
		[]string{"student_id", "subject_id", "cie_no"},
		internalTotalColumns,
		k.StudentID, k.SubjectID, k.CIENo, total.BestPartA, total.BestPartB, total.Total, total.UpdatedAt.UTC())
	if err != nil {
		return marks.InternalTotal{}, errors.Wrap(err, "upserting internal total")
	}
	return total, nil
}

func unboilInternalTotal(r internalTotalRow) marks.InternalTotal {
	return marks.InternalTotal{
		Key:       marks.TotalKey{StudentID: r.StudentID, SubjectID: r.SubjectID, CIENo: r.CIENo},
		BestPartA: r.BestPartA,
		BestPartB: r.BestPartB,
		Total:     r.Total,
		UpdatedAt: r.UpdatedAt,
	}
}

func (repo marksRepository) GetInternalTotal(ctx context.Context, key marks.TotalKey) (marks.InternalTotal, error) {
	var row internalTotalRow
	err := repo.getRow(ctx, &row, psql.
		Select(internalTotalColumns...).
		From("internal_total").
		Where(sq.Eq{"student_id": key.StudentID, "subject_id": key.SubjectID, "cie_no": key.CIENo}))
	if err != nil {
		return marks.InternalTotal{}, trapNoRowsErr(err, marks.ErrTotalNotFound, "finding internal total")
	}
	return unboilInternalTotal(row), nil
}

func (repo marksRepository) QueryInternalTotals(ctx context.Context, filter marks.TotalFilter) ([]marks.InternalTotal, error) {
	qb := psql.Select(internalTotalColumns...).From("internal_total").OrderBy("subject_id", "cie_no", "student_id")
	if filter.StudentID != "" {
		qb = qb.Where(sq.Eq{"student_id": filter.StudentID})
	}
	if filter.SubjectID != "" {
		qb = qb.Where(sq.Eq{"subject_id": filter.SubjectID})
	}
	if filter.CIENo != 0 {
		qb = qb.Where(sq.Eq{"cie_no": filter.CIENo})
	}

	var rows []internalTotalRow
	if err := repo.selectRows(ctx, &rows, qb); err != nil {
		return nil, errors.Wrap(err, "querying internal totals")
	}
	totals := make([]marks.InternalTotal, 0, len(rows))
	for _, r := range rows {
		totals = append(totals, unboilInternalTotal(r))
	}
	return totals, nil
}

func (repo marksRepository) QueryComponentMarks(ctx context.Context, subjectID string) ([]marks.ComponentMark, error) {
	var rows []componentMarkRow
	err := repo.selectRows(ctx, &rows, psql.
		Select(componentMarkColumns...).
		From("component_mark").
		Where(sq.Eq{"subject_id": subjectID}).
		OrderBy("student_id", "component", "attempt"))
	if err != nil {
		return nil, errors.Wrap(err, "querying component marks")
	}
	cms := make([]marks.ComponentMark, 0, len(rows))
	for _, r := range rows {
		cms = append(cms, marks.ComponentMark{
			StudentID: r.StudentID,
			SubjectID: r.SubjectID,
			Component: r.Component,
			Attempt:   r.Attempt,
			Mark:      r.Mark,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return cms, nil
}

func (repo marksRepository) UpsertComponentMark(ctx context.Context, mark marks.ComponentMark) (marks.ComponentMark, error) {
	err := repo.upsert(ctx, "component_mark",
		[]string{"student_id", "subject_id", "component", "attempt"},
		componentMarkColumns,
		mark.StudentID, mark.SubjectID, mark.Component, mark.Attempt, mark.Mark, mark.UpdatedAt.UTC())
	if err != nil {
		return marks.ComponentMark{}, errors.Wrap(err, "upserting component mark")
	}
	return mark, nil
}

func (repo marksRepository) UpsertComponentTotal(ctx context.Context, total marks.ComponentTotal) (marks.ComponentTotal, error) {
	k := total.Key
	err := repo.upsert(ctx, "component_total",
		[]string{"student_id", "subject_id"},
		componentTotalColumns,
		k.StudentID, k.SubjectID, total.Assignments, total.Quizzes, total.Seminars, total.CIE, total.Overall, total.UpdatedAt.UTC())
	if err != nil {
		return marks.ComponentTotal{}, errors.Wrap(err, "upserting component total")
	}
	return total, nil
}

func (repo marksRepository) QueryComponentTotals(ctx context.Context, subjectID string) ([]marks.ComponentTotal, error) {
	var rows []componentTotalRow
	err := repo.selectRows(ctx, &rows, psql.
		Select(componentTotalColumns...).
		From("component_total").
		Where(sq.Eq{"subject_id": subjectID}).
		OrderBy("student_id"))
	if err != nil {
		return nil, errors.Wrap(err, "querying component totals")
	}
	cts := make([]marks.ComponentTotal, 0, len(rows))
	for _, r := range rows {
		cts = append(cts, marks.ComponentTotal{
			Key:         marks.ComponentKey{StudentID: r.StudentID, SubjectID: r.SubjectID},
			Assignments: r.Assignments,
			Quizzes:     r.Quizzes,
			Seminars:    r.Seminars,
			CIE:         r.CIE,
			Overall:     r.Overall,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return cts, nil
}
