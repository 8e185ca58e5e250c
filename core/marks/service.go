package marks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-erp/core"
)

var (
	// errors
	ErrBlueprintNotFound   = errors.New("blueprint not found")
	ErrBlueprintExists     = errors.New("a blueprint already exists for this subject and CIE")
	ErrSubQuestionNotFound = errors.New("sub-question not found")
	ErrTotalNotFound       = errors.New("internal total not found")
	ErrDuplicateLabel      = errors.New("sub-question labels must be unique within a blueprint")
	ErrMarkExceedsMax      = errors.New("mark exceeds the sub-question max marks")
)

var nowFunc = time.Now // mockable

type (
	Repository interface {
		// QueryBlueprints returns the matching blueprints with their sub-questions, ordered by subject then CIE.
		QueryBlueprints(ctx context.Context, filter BlueprintFilter) ([]Blueprint, error)
		GetBlueprint(ctx context.Context, subjectID string, cieNo int) (Blueprint, error)
		// CreateBlueprint inserts the blueprint and all its sub-questions at once.
		CreateBlueprint(ctx context.Context, bp Blueprint) (Blueprint, error)
		GetSubQuestion(ctx context.Context, id string) (SubQuestion, error)

		// QueryStudentMarks returns all marks recorded for the blueprint's sub-questions, by student ID.
		// Students without any mark are not included.
		QueryStudentMarks(ctx context.Context, blueprintID string) (map[string][]StudentMark, error)
		UpsertStudentMark(ctx context.Context, mark StudentMark) (StudentMark, error)

		UpsertInternalTotal(ctx context.Context, total InternalTotal) (InternalTotal, error)
		GetInternalTotal(ctx context.Context, key TotalKey) (InternalTotal, error)
		// QueryInternalTotals returns the matching totals ordered by subject, CIE then student.
		QueryInternalTotals(ctx context.Context, filter TotalFilter) ([]InternalTotal, error)

		QueryComponentMarks(ctx context.Context, subjectID string) ([]ComponentMark, error)
		UpsertComponentMark(ctx context.Context, mark ComponentMark) (ComponentMark, error)
		UpsertComponentTotal(ctx context.Context, total ComponentTotal) (ComponentTotal, error)
		// QueryComponentTotals returns the subject's component totals ordered by student.
		QueryComponentTotals(ctx context.Context, subjectID string) ([]ComponentTotal, error)
	}

	Service struct {
		repo     Repository
		logger   core.Logger
		validate *core.Validator
	}
)

func NewService(repo Repository, logger core.Logger, validate *core.Validator) *Service {
	InitValidators(validate.Validate, validate.Translator)
	return &Service{
		repo:     repo,
		logger:   logger,
		validate: validate,
	}
}

func (svc *Service) CreateBlueprint(ctx context.Context, nb NewBlueprint) (Blueprint, error) {
	if err := nb.Validate(svc.validate); err != nil {
		return Blueprint{}, err
	}
	if _, err := svc.repo.GetBlueprint(ctx, nb.SubjectID, nb.CIENo); err == nil {
		return Blueprint{}, core.NewValidationError(ErrBlueprintExists, core.FieldError{Field: "cie_no", Error: ErrBlueprintExists.Error()})
	} else if errors.Cause(err) != ErrBlueprintNotFound {
		return Blueprint{}, err
	}

	now := nowFunc().UTC()
	bp := Blueprint{
		ID:           uuid.New().String(),
		SubjectID:    nb.SubjectID,
		CIENo:        nb.CIENo,
		SubQuestions: make([]SubQuestion, 0, len(nb.SubQuestions)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, nsq := range nb.SubQuestions {
		bp.SubQuestions = append(bp.SubQuestions, SubQuestion{
			ID:          uuid.New().String(),
			BlueprintID: bp.ID,
			QuestionNo:  null.IntFrom(nsq.QuestionNo),
			Label:       nsq.Label,
			MaxMarks:    nsq.MaxMarks,
		})
	}
	return svc.repo.CreateBlueprint(ctx, bp)
}

func (svc *Service) GetBlueprint(ctx context.Context, subjectID string, cieNo int) (Blueprint, error) {
	return svc.repo.GetBlueprint(ctx, core.CleanString(subjectID), cieNo)
}

func (svc *Service) QueryBlueprints(ctx context.Context, filter BlueprintFilter) ([]Blueprint, error) {
	return svc.repo.QueryBlueprints(ctx, filter)
}

// RecordMark creates or overwrites the mark of a student for a sub-question.
func (svc *Service) RecordMark(ctx context.Context, nm NewStudentMark) (StudentMark, error) {
	if err := nm.Validate(svc.validate); err != nil {
		return StudentMark{}, err
	}
	sq, err := svc.repo.GetSubQuestion(ctx, nm.SubQuestionID)
	if err != nil {
		if errors.Cause(err) == ErrSubQuestionNotFound {
			return StudentMark{}, core.NewValidationError(err, core.FieldError{Field: "sub_question_id", Error: err.Error()})
		}
		return StudentMark{}, err
	}
	if nm.Mark > sq.MaxMarks {
		return StudentMark{}, core.NewValidationError(
			ErrMarkExceedsMax,
			core.FieldError{Field: "mark", Error: fmt.Sprintf("%s (%g)", ErrMarkExceedsMax, sq.MaxMarks)})
	}
	return svc.repo.UpsertStudentMark(ctx, StudentMark{
		StudentID:     nm.StudentID,
		SubQuestionID: sq.ID,
		Mark:          nm.Mark,
		UpdatedAt:     nowFunc().UTC(),
	})
}

// RecordComponentMark creates or overwrites the mark of a student for a component attempt.
func (svc *Service) RecordComponentMark(ctx context.Context, nc NewComponentMark) (ComponentMark, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return ComponentMark{}, err
	}
	return svc.repo.UpsertComponentMark(ctx, ComponentMark{
		StudentID: nc.StudentID,
		SubjectID: nc.SubjectID,
		Component: nc.Component,
		Attempt:   nc.Attempt,
		Mark:      nc.Mark,
		UpdatedAt: nowFunc().UTC(),
	})
}

func (svc *Service) Totals(ctx context.Context, filter TotalFilter) ([]InternalTotal, error) {
	return svc.repo.QueryInternalTotals(ctx, filter)
}

func (svc *Service) ComponentTotals(ctx context.Context, subjectID string) ([]ComponentTotal, error) {
	return svc.repo.QueryComponentTotals(ctx, core.CleanString(subjectID))
}

// RollupInternals recomputes the internal totals of every blueprint matching filter, one blueprint at a time.
// Failures are recorded in the report and processing carries on with the next student or blueprint.
// The returned error is only set when the blueprints themselves could not be loaded or ctx is done.
func (svc *Service) RollupInternals(ctx context.Context, filter BlueprintFilter) (report RunReport, err error) {
	report = RunReport{RunID: uuid.New().String(), StartedAt: nowFunc().UTC()}
	defer func() { report.FinishedAt = nowFunc().UTC() }()

	var blueprints []Blueprint
	blueprints, err = svc.repo.QueryBlueprints(ctx, filter)
	if err != nil {
		return report, errors.Wrap(err, "querying blueprints")
	}
	svc.logger.Info(fmt.Sprintf("rollup %s: %d blueprint(s) to process", report.RunID, len(blueprints)))

	for _, bp := range blueprints {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Blueprints = append(report.Blueprints, svc.RollupBlueprint(ctx, bp))
	}

	svc.logger.Info(fmt.Sprintf(
		"rollup %s: done; %d total(s) saved, %d failure(s), %d blueprint(s) skipped",
		report.RunID, report.Succeeded(), report.Failed(), report.Skipped()))
	return report, nil
}

// RollupBlueprint recomputes and upserts the internal total of every student having a mark on bp.
// Students without any mark are left untouched.
func (svc *Service) RollupBlueprint(ctx context.Context, bp Blueprint) BlueprintResult {
	res := BlueprintResult{Blueprint: bp}

	if len(bp.SubQuestions) == 0 {
		res.Skipped = true
		svc.logger.Warn(fmt.Sprintf("%s has no sub-questions: skipped", bp))
		return res
	}

	byStudent, err := svc.repo.QueryStudentMarks(ctx, bp.ID)
	if err != nil {
		res.Err = errors.Wrapf(err, "querying marks of %s", bp)
		svc.logger.Error(res.Err.Error(), res.Err)
		return res
	}

	studentIDs := make([]string, 0, len(byStudent))
	for id := range byStudent {
		studentIDs = append(studentIDs, id)
	}
	sort.Strings(studentIDs)

	res.Students = make([]ItemResult, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		key := TotalKey{StudentID: studentID, SubjectID: bp.SubjectID, CIENo: bp.CIENo}
		total := Compute(key, bp.SubQuestions, byStudent[studentID])
		total.UpdatedAt = nowFunc().UTC()

		item := ItemResult{Key: key, Total: total}
		if _, err := svc.repo.UpsertInternalTotal(ctx, total); err != nil {
			item.Err = errors.Wrap(err, "upserting internal total")
			svc.logger.Error(fmt.Sprintf("%s: %v", key, item.Err), item.Err, key)
		}
		res.Students = append(res.Students, item)
	}
	return res
}

// RollupComponents recomputes the component totals of every student of the subject, one student at a time.
// A student is rolled up as soon as they have a component mark or an internal total in the subject.
func (svc *Service) RollupComponents(ctx context.Context, subjectID string) (report ComponentReport, err error) {
	subjectID = core.CleanString(subjectID)
	report = ComponentReport{RunID: uuid.New().String(), SubjectID: subjectID, StartedAt: nowFunc().UTC()}
	defer func() { report.FinishedAt = nowFunc().UTC() }()

	var cmarks []ComponentMark
	if cmarks, err = svc.repo.QueryComponentMarks(ctx, subjectID); err != nil {
		return report, errors.Wrap(err, "querying component marks")
	}
	var totals []InternalTotal
	totals, err = svc.repo.QueryInternalTotals(ctx, TotalFilter{SubjectID: subjectID})
	if err != nil {
		return report, errors.Wrap(err, "querying internal totals")
	}

	marksByStudent := make(map[string][]ComponentMark)
	for _, m := range cmarks {
		marksByStudent[m.StudentID] = append(marksByStudent[m.StudentID], m)
	}
	totalsByStudent := make(map[string][]InternalTotal)
	for _, it := range totals {
		totalsByStudent[it.Key.StudentID] = append(totalsByStudent[it.Key.StudentID], it)
	}

	studentIDs := make([]string, 0, len(marksByStudent)+len(totalsByStudent))
	for id := range marksByStudent {
		studentIDs = append(studentIDs, id)
	}
	for id := range totalsByStudent {
		if _, ok := marksByStudent[id]; !ok {
			studentIDs = append(studentIDs, id)
		}
	}
	sort.Strings(studentIDs)

	for _, studentID := range studentIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		key := ComponentKey{StudentID: studentID, SubjectID: subjectID}
		ct := SumComponents(key, marksByStudent[studentID], totalsByStudent[studentID])
		ct.UpdatedAt = nowFunc().UTC()

		item := ComponentItemResult{Key: key, Total: ct}
		if _, err := svc.repo.UpsertComponentTotal(ctx, ct); err != nil {
			item.Err = errors.Wrap(err, "upserting component total")
			svc.logger.Error(fmt.Sprintf("%s: %v", key, item.Err), item.Err, key)
		}
		report.Students = append(report.Students, item)
	}

	svc.logger.Info(fmt.Sprintf(
		"components %s: subject %s done; %d total(s) saved, %d failure(s)",
		report.RunID, subjectID, report.Succeeded(), report.Failed()))
	return report, nil
}
