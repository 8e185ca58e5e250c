package marks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-erp/core"
)

func newValidator() *core.Validator {
	v := core.NewValidator()
	InitValidators(v.Validate, v.Translator)
	return v
}

func TestIsValidQuestionNo(t *testing.T) {
	for qno, want := range map[int]bool{-1: false, 0: false, 1: true, 2: true, 3: true, 4: true, 5: false} {
		assert.Equal(t, want, IsValidQuestionNo(qno), "IsValidQuestionNo(%d)", qno)
	}
}

func TestHasAtMostTwoDecimals(t *testing.T) {
	for m, want := range map[float64]bool{0: true, 4: true, 4.5: true, 0.01: true, 2.01: true, 99.99: true, 4.333: false, 0.001: false, 2.015: false} {
		assert.Equal(t, want, HasAtMostTwoDecimals(m), "HasAtMostTwoDecimals(%g)", m)
	}
}

func TestIsValidComponent(t *testing.T) {
	for _, c := range Components {
		assert.True(t, IsValidComponent(c), c)
	}
	assert.False(t, IsValidComponent("lab"))
	assert.False(t, IsValidComponent(""))
}

func TestNewStudentMark_Validate(t *testing.T) {
	v := newValidator()

	nm := NewStudentMark{StudentID: "s1", SubQuestionID: "q1", Mark: 2.01}
	require.NoError(t, nm.Validate(v))

	nm.Mark = 4.333
	err := nm.Validate(v)
	require.True(t, core.IsValidationError(err))
	msg, ok := err.(*core.ValidationError).Field("mark")
	assert.True(t, ok)
	assert.Equal(t, "mark must have at most 2 decimals", msg)
}

func TestNewComponentMark_Validate(t *testing.T) {
	v := newValidator()

	nc := NewComponentMark{StudentID: " 1RV21CS001 ", SubjectID: "CS101", Component: " Seminar", Attempt: 2, Mark: 4}
	require.NoError(t, nc.Validate(v))
	assert.Equal(t, "1RV21CS001", nc.StudentID)
	assert.Equal(t, ComponentSeminar, nc.Component)

	tests := []struct {
		name      string
		mutate    func(nc *NewComponentMark)
		wantField string
		wantMsg   string
	}{
		{name: "negative mark", mutate: func(nc *NewComponentMark) { nc.Mark = -1 }, wantField: "mark"},
		{name: "3 decimals", mutate: func(nc *NewComponentMark) { nc.Mark = 1.005 }, wantField: "mark", wantMsg: "mark must have at most 2 decimals"},
		{name: "unknown component", mutate: func(nc *NewComponentMark) { nc.Component = "lab" }, wantField: "component", wantMsg: "component must be one of: assignment, quiz, seminar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nc := NewComponentMark{StudentID: "s1", SubjectID: "CS101", Component: ComponentQuiz, Attempt: 1, Mark: 4}
			tt.mutate(&nc)
			err := nc.Validate(v)
			require.True(t, core.IsValidationError(err))
			msg, ok := err.(*core.ValidationError).Field(tt.wantField)
			assert.True(t, ok)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, msg)
			}
		})
	}
}

func TestNewBlueprint_Validate_maxMarksDecimals(t *testing.T) {
	nb := NewBlueprint{SubjectID: "CS101", CIENo: 1, SubQuestions: []NewSubQuestion{{QuestionNo: 1, Label: "1a", MaxMarks: 2.125}}}
	err := nb.Validate(newValidator())
	require.True(t, core.IsValidationError(err))
	_, ok := err.(*core.ValidationError).Field("sub_questions[0].max_marks")
	assert.True(t, ok)
}
