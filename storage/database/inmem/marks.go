package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-erp/core/marks"
)

type marksRepository struct {
	db *DB
}

var _ marks.Repository = (*marksRepository)(nil) // interface compliance check

func NewMarksRepository(db *DB) marks.Repository {
	return &marksRepository{db: db}
}

func copyBlueprint(bp *marks.Blueprint) marks.Blueprint {
	cp := *bp
	cp.SubQuestions = append([]marks.SubQuestion(nil), bp.SubQuestions...)
	return cp
}

func (repo *marksRepository) QueryBlueprints(_ context.Context, filter marks.BlueprintFilter) ([]marks.Blueprint, error) {
	repo.db.blueprint.RLock()
	defer repo.db.blueprint.RUnlock()

	bps := make([]marks.Blueprint, 0, len(repo.db.blueprint.table))
	for _, bp := range repo.db.blueprint.table {
		if filter.SubjectID != "" && bp.SubjectID != filter.SubjectID {
			continue
		}
		if filter.CIENo != 0 && bp.CIENo != filter.CIENo {
			continue
		}
		bps = append(bps, copyBlueprint(bp))
	}
	sort.Slice(bps, func(i, j int) bool {
		if bps[i].SubjectID != bps[j].SubjectID {
			return bps[i].SubjectID < bps[j].SubjectID
		}
		return bps[i].CIENo < bps[j].CIENo
	})
	return bps, nil
}

func (repo *marksRepository) GetBlueprint(_ context.Context, subjectID string, cieNo int) (marks.Blueprint, error) {
	repo.db.blueprint.RLock()
	defer repo.db.blueprint.RUnlock()

	for _, bp := range repo.db.blueprint.table {
		if bp.SubjectID == subjectID && bp.CIENo == cieNo {
			return copyBlueprint(bp), nil
		}
	}
	return marks.Blueprint{}, marks.ErrBlueprintNotFound
}

func (repo *marksRepository) CreateBlueprint(_ context.Context, bp marks.Blueprint) (marks.Blueprint, error) {
	repo.db.blueprint.Lock()
	defer repo.db.blueprint.Unlock()

	for _, b := range repo.db.blueprint.table {
		if b.SubjectID == bp.SubjectID && b.CIENo == bp.CIENo {
			return marks.Blueprint{}, marks.ErrBlueprintExists
		}
	}
	stored := copyBlueprint(&bp)
	repo.db.blueprint.table[bp.ID] = &stored
	return copyBlueprint(&stored), nil
}

func (repo *marksRepository) GetSubQuestion(_ context.Context, id string) (marks.SubQuestion, error) {
	repo.db.blueprint.RLock()
	defer repo.db.blueprint.RUnlock()

	for _, bp := range repo.db.blueprint.table {
		for _, sq := range bp.SubQuestions {
			if sq.ID == id {
				return sq, nil
			}
		}
	}
	return marks.SubQuestion{}, marks.ErrSubQuestionNotFound
}

func (repo *marksRepository) QueryStudentMarks(_ context.Context, blueprintID string) (map[string][]marks.StudentMark, error) {
	repo.db.blueprint.RLock()
	bp, ok := repo.db.blueprint.table[blueprintID]
	if !ok {
		repo.db.blueprint.RUnlock()
		return nil, marks.ErrBlueprintNotFound
	}
	sqIDs := make(map[string]bool, len(bp.SubQuestions))
	for _, sq := range bp.SubQuestions {
		sqIDs[sq.ID] = true
	}
	repo.db.blueprint.RUnlock()

	repo.db.studentMark.RLock()
	defer repo.db.studentMark.RUnlock()

	byStudent := make(map[string][]marks.StudentMark)
	for k, m := range repo.db.studentMark.table {
		if sqIDs[k.subQuestionID] {
			byStudent[k.studentID] = append(byStudent[k.studentID], *m)
		}
	}
	for _, ms := range byStudent {
		sort.Slice(ms, func(i, j int) bool { return ms[i].SubQuestionID < ms[j].SubQuestionID })
	}
	return byStudent, nil
}

func (repo *marksRepository) UpsertStudentMark(_ context.Context, mark marks.StudentMark) (marks.StudentMark, error) {
	repo.db.studentMark.Lock()
	defer repo.db.studentMark.Unlock()

	repo.db.studentMark.table[studentMarkKey{studentID: mark.StudentID, subQuestionID: mark.SubQuestionID}] = &mark
	return mark, nil
}

func (repo *marksRepository) UpsertInternalTotal(_ context.Context, total marks.InternalTotal) (marks.InternalTotal, error) {
	repo.db.internalTotal.Lock()
	defer repo.db.internalTotal.Unlock()

	repo.db.internalTotal.table[total.Key] = &total
	return total, nil
}

func (repo *marksRepository) GetInternalTotal(_ context.Context, key marks.TotalKey) (marks.InternalTotal, error) {
	repo.db.internalTotal.RLock()
	defer repo.db.internalTotal.RUnlock()

	if it, ok := repo.db.internalTotal.table[key]; ok {
		return *it, nil
	}
	return marks.InternalTotal{}, marks.ErrTotalNotFound
}

func (repo *marksRepository) QueryInternalTotals(_ context.Context, filter marks.TotalFilter) ([]marks.InternalTotal, error) {
	repo.db.internalTotal.RLock()
	defer repo.db.internalTotal.RUnlock()

	totals := make([]marks.InternalTotal, 0, len(repo.db.internalTotal.table))
	for k, it := range repo.db.internalTotal.table {
		if filter.StudentID != "" && k.StudentID != filter.StudentID {
			continue
		}
		if filter.SubjectID != "" && k.SubjectID != filter.SubjectID {
			continue
		}
		if filter.CIENo != 0 && k.CIENo != filter.CIENo {
			continue
		}
		totals = append(totals, *it)
	}
	sort.Slice(totals, func(i, j int) bool {
		ki, kj := totals[i].Key, totals[j].Key
		if ki.SubjectID != kj.SubjectID {
			return ki.SubjectID < kj.SubjectID
		}
		if ki.CIENo != kj.CIENo {
			return ki.CIENo < kj.CIENo
		}
		return ki.StudentID < kj.StudentID
	})
	return totals, nil
}

func (repo *marksRepository) QueryComponentMarks(_ context.Context, subjectID string) ([]marks.ComponentMark, error) {
	repo.db.componentMark.RLock()
	defer repo.db.componentMark.RUnlock()

	cms := make([]marks.ComponentMark, 0)
	for k, cm := range repo.db.componentMark.table {
		if k.SubjectID == subjectID {
			cms = append(cms, *cm)
		}
	}
	sort.Slice(cms, func(i, j int) bool {
		if cms[i].StudentID != cms[j].StudentID {
			return cms[i].StudentID < cms[j].StudentID
		}
		if cms[i].Component != cms[j].Component {
			return cms[i].Component < cms[j].Component
		}
		return cms[i].Attempt < cms[j].Attempt
	})
	return cms, nil
}

func (repo *marksRepository) UpsertComponentMark(_ context.Context, mark marks.ComponentMark) (marks.ComponentMark, error) {
	repo.db.componentMark.Lock()
	defer repo.db.componentMark.Unlock()

	k := componentMarkKey{ComponentKey: mark.Key(), component: mark.Component, attempt: mark.Attempt}
	repo.db.componentMark.table[k] = &mark
	return mark, nil
}

func (repo *marksRepository) UpsertComponentTotal(_ context.Context, total marks.ComponentTotal) (marks.ComponentTotal, error) {
	repo.db.componentTotal.Lock()
	defer repo.db.componentTotal.Unlock()

	repo.db.componentTotal.table[total.Key] = &total
	return total, nil
}

func (repo *marksRepository) QueryComponentTotals(_ context.Context, subjectID string) ([]marks.ComponentTotal, error) {
	repo.db.componentTotal.RLock()
	defer repo.db.componentTotal.RUnlock()

	cts := make([]marks.ComponentTotal, 0)
	for k, ct := range repo.db.componentTotal.table {
		if k.SubjectID == subjectID {
			cts = append(cts, *ct)
		}
	}
	sort.Slice(cts, func(i, j int) bool { return cts[i].Key.StudentID < cts[j].Key.StudentID })
	return cts, nil
}
