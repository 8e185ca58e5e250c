package marks

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-erp/core"
)

// Question numbers
const (
	MinQuestionNo = 1
	MaxQuestionNo = 4
)

// Components
const (
	ComponentAssignment = "assignment"
	ComponentQuiz       = "quiz"
	ComponentSeminar    = "seminar"
)

var (
	// the better scoring question of each part counts, the other one is discarded
	PartAQuestions = [2]int{1, 2}
	PartBQuestions = [2]int{3, 4}

	Components = []string{ComponentAssignment, ComponentQuiz, ComponentSeminar}
)

// Blueprint defines the structure of one internal exam (CIE) of a subject.
type Blueprint struct {
	ID           string        `json:"id"`
	SubjectID    string        `json:"subject_id"`
	CIENo        int           `json:"cie_no"`
	SubQuestions []SubQuestion `json:"sub_questions"`
	CreatedAt    time.Time     `json:"created_at"` // UTC
	UpdatedAt    time.Time     `json:"updated_at"` // UTC
}

// MaxTotal is the best total a student can reach on the blueprint.
func (bp Blueprint) MaxTotal() float64 {
	sums := make(map[int]int64, MaxQuestionNo)
	for _, sq := range bp.SubQuestions {
		if sq.QuestionNo.Valid {
			sums[sq.QuestionNo.Int] += toHundredths(sq.MaxMarks)
		}
	}
	maxByQuestion := make(map[int]float64, len(sums))
	for qno, h := range sums {
		maxByQuestion[qno] = fromHundredths(h)
	}
	a, b := BestOfParts(maxByQuestion)
	return fromHundredths(toHundredths(a) + toHundredths(b))
}

func (bp Blueprint) String() string {
	return fmt.Sprintf("blueprint %s (subject %s, CIE %d)", bp.ID, bp.SubjectID, bp.CIENo)
}

// SubQuestion is a gradable unit of a Blueprint.
// QuestionNo is invalid (null) for sub-questions that were never assigned to a question.
type SubQuestion struct {
	ID          string   `json:"id"`
	BlueprintID string   `json:"blueprint_id"`
	QuestionNo  null.Int `json:"question_no"`
	Label       string   `json:"label"`
	MaxMarks    float64  `json:"max_marks"`
}

// StudentMark is the mark of a student for one SubQuestion; unique per (student, sub-question).
type StudentMark struct {
	StudentID     string    `json:"student_id"`
	SubQuestionID string    `json:"sub_question_id"`
	Mark          float64   `json:"mark"`
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// TotalKey identifies an InternalTotal. It is used for both lookups and upserts.
type TotalKey struct {
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
	CIENo     int    `json:"cie_no"`
}

func (k TotalKey) String() string {
	return fmt.Sprintf("student=%s subject=%s cie=%d", k.StudentID, k.SubjectID, k.CIENo)
}

// InternalTotal is derived from the sub-question marks; it can always be recomputed.
type InternalTotal struct {
	Key       TotalKey  `json:"key"`
	BestPartA float64   `json:"best_part_a"`
	BestPartB float64   `json:"best_part_b"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// ComponentKey identifies a ComponentTotal.
type ComponentKey struct {
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
}

func (k ComponentKey) String() string {
	return fmt.Sprintf("student=%s subject=%s", k.StudentID, k.SubjectID)
}

// ComponentMark is one attempt of a student at an assignment, quiz or seminar.
// Unique per (student, subject, component, attempt).
type ComponentMark struct {
	StudentID string    `json:"student_id"`
	SubjectID string    `json:"subject_id"`
	Component string    `json:"component"`
	Attempt   int       `json:"attempt"`
	Mark      float64   `json:"mark"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (cm ComponentMark) Key() ComponentKey {
	return ComponentKey{StudentID: cm.StudentID, SubjectID: cm.SubjectID}
}

// ComponentTotal is the cumulative score of a student in a subject.
type ComponentTotal struct {
	Key         ComponentKey `json:"key"`
	Assignments float64      `json:"assignments"`
	Quizzes     float64      `json:"quizzes"`
	Seminars    float64      `json:"seminars"`
	CIE         float64      `json:"cie"`
	Overall     float64      `json:"overall"`
	UpdatedAt   time.Time    `json:"updated_at"` // UTC
}

// BlueprintFilter applies AND on its set fields; zero values match everything.
type BlueprintFilter struct {
	SubjectID string
	CIENo     int
}

// TotalFilter applies AND on its set fields; zero values match everything.
type TotalFilter struct {
	StudentID string
	SubjectID string
	CIENo     int
}

// NewSubQuestion contains information needed to add a SubQuestion to a new Blueprint.
type NewSubQuestion struct {
	QuestionNo int     `json:"question_no" validate:"questionno"`
	Label      string  `json:"label" validate:"required,max=16"`
	MaxMarks   float64 `json:"max_marks" validate:"gt=0,lte=100,hundredths"`
}

// NewBlueprint contains information needed to create a new Blueprint.
type NewBlueprint struct {
	SubjectID    string           `json:"subject_id" validate:"required,alphanum_"`
	CIENo        int              `json:"cie_no" validate:"gte=1"`
	SubQuestions []NewSubQuestion `json:"sub_questions" validate:"required,min=1,dive"`
}

func (nb *NewBlueprint) Validate(v *core.Validator) error {
	nb.SubjectID = core.CleanString(nb.SubjectID)
	for i := range nb.SubQuestions {
		nb.SubQuestions[i].Label = core.CleanString(nb.SubQuestions[i].Label)
	}

	if err := v.Struct(nb); err != nil {
		return err
	}

	seen := make(map[string]bool, len(nb.SubQuestions))
	for i, sq := range nb.SubQuestions {
		if seen[sq.Label] {
			return core.NewValidationError(
				ErrDuplicateLabel,
				core.FieldError{Field: fmt.Sprintf("sub_questions[%d].label", i), Error: ErrDuplicateLabel.Error()})
		}
		seen[sq.Label] = true
	}
	return nil
}

// NewStudentMark contains information needed to record the mark of a student for a SubQuestion.
type NewStudentMark struct {
	StudentID     string  `json:"student_id" validate:"required,alphanum_"`
	SubQuestionID string  `json:"sub_question_id" validate:"required"`
	Mark          float64 `json:"mark" validate:"gte=0,hundredths"`
}

func (nm *NewStudentMark) Validate(v *core.Validator) error {
	nm.StudentID = core.CleanString(nm.StudentID)
	nm.SubQuestionID = core.CleanString(nm.SubQuestionID)
	return v.Struct(nm)
}

// NewComponentMark contains information needed to record an attempt at a component.
type NewComponentMark struct {
	StudentID string  `json:"student_id" validate:"required,alphanum_"`
	SubjectID string  `json:"subject_id" validate:"required,alphanum_"`
	Component string  `json:"component" validate:"component"`
	Attempt   int     `json:"attempt" validate:"gte=1"`
	Mark      float64 `json:"mark" validate:"gte=0,hundredths"`
}

func (nc *NewComponentMark) Validate(v *core.Validator) error {
	nc.StudentID = core.CleanString(nc.StudentID)
	nc.SubjectID = core.CleanString(nc.SubjectID)
	nc.Component = core.CleanString(nc.Component, true /* lower */)
	return v.Struct(nc)
}
