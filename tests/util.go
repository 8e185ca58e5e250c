package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-erp/core"
	"github.com/trezcool/masomo-erp/core/marks"
	logsvc "github.com/trezcool/masomo-erp/services/logger"
	"github.com/trezcool/masomo-erp/storage/database"
)

// SubQ describes a sub-question to seed; QuestionNo 0 means no question number.
type SubQ struct {
	QuestionNo int
	Label      string
	MaxMarks   float64
}

func NewConfig() *core.Config {
	return &core.Config{AppName: "Masomo", Env: "TEST", TestMode: true}
}

// NewLogger returns a silent logger with rollbar disabled.
func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), NewConfig())
	logger.Enable(false)
	return logger
}

func NewService(repo marks.Repository) *marks.Service {
	return marks.NewService(repo, NewLogger(), core.NewValidator())
}

// CreateBlueprint stores a blueprint directly through repo, bypassing validation.
func CreateBlueprint(t *testing.T, repo marks.Repository, subjectID string, cieNo int, subQs ...SubQ) marks.Blueprint {
	now := time.Now().UTC()
	bp := marks.Blueprint{
		ID:        uuid.New().String(),
		SubjectID: subjectID,
		CIENo:     cieNo,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, s := range subQs {
		bp.SubQuestions = append(bp.SubQuestions, marks.SubQuestion{
			ID:          uuid.New().String(),
			BlueprintID: bp.ID,
			QuestionNo:  null.NewInt(s.QuestionNo, s.QuestionNo != 0),
			Label:       s.Label,
			MaxMarks:    s.MaxMarks,
		})
	}
	bp, err := repo.CreateBlueprint(context.Background(), bp)
	if err != nil {
		t.Fatalf("CreateBlueprint() failed: %v", err)
	}
	return bp
}

// SubQuestionID returns the ID of the blueprint's sub-question labeled `label`.
func SubQuestionID(t *testing.T, bp marks.Blueprint, label string) string {
	for _, sq := range bp.SubQuestions {
		if sq.Label == label {
			return sq.ID
		}
	}
	t.Fatalf("SubQuestionID(): no sub-question labeled %q", label)
	return ""
}

// SetMarks records the marks of a student, by sub-question label.
func SetMarks(t *testing.T, repo marks.Repository, bp marks.Blueprint, studentID string, byLabel map[string]float64) {
	for label, mark := range byLabel {
		_, err := repo.UpsertStudentMark(context.Background(), marks.StudentMark{
			StudentID:     studentID,
			SubQuestionID: SubQuestionID(t, bp, label),
			Mark:          mark,
			UpdatedAt:     time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("SetMarks() failed: %v", err)
		}
	}
}

// StandardSubQs is a blueprint with one sub-question per question, 10 marks each.
func StandardSubQs() []SubQ {
	return []SubQ{
		{QuestionNo: 1, Label: "1a", MaxMarks: 10},
		{QuestionNo: 2, Label: "2a", MaxMarks: 10},
		{QuestionNo: 3, Label: "3a", MaxMarks: 10},
		{QuestionNo: 4, Label: "4a", MaxMarks: 10},
	}
}

// PrepareDB opens, migrates and empties the test database.
// The test is skipped when no test database is configured (see TEST_DATABASE_* variables).
func PrepareDB(t *testing.T) *sqlx.DB {
	conf := core.NewConfig()
	if !conf.TestMode || !conf.Database.IsConfigured() {
		t.Skip("no test database configured; set ENV=TEST and TEST_DATABASE_HOST / TEST_DATABASE_NAME")
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if _, err = db.Exec("TRUNCATE component_total, component_mark, internal_total, student_mark, sub_question, blueprint"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres")
}
