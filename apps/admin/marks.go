package main

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo-erp/core/marks"
)

func (cli *commandLine) setMark(studentID, subQuestionID string, mark float64) error {
	m, err := cli.svc.RecordMark(context.Background(), marks.NewStudentMark{
		StudentID:     studentID,
		SubQuestionID: subQuestionID,
		Mark:          mark,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "recorded %g for student %s on sub-question %s\n", m.Mark, m.StudentID, m.SubQuestionID)
	return nil
}

func (cli *commandLine) setComponent(nc marks.NewComponentMark) error {
	m, err := cli.svc.RecordComponentMark(context.Background(), nc)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "recorded %g for student %s on %s #%d (subject %s)\n",
		m.Mark, m.StudentID, m.Component, m.Attempt, m.SubjectID)
	return nil
}
