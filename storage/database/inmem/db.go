package inmemdb

import (
	"sync"

	"github.com/trezcool/masomo-erp/core/marks"
)

type (
	DB struct {
		blueprint      *blueprintTable
		studentMark    *studentMarkTable
		internalTotal  *internalTotalTable
		componentMark  *componentMarkTable
		componentTotal *componentTotalTable
	}

	blueprintTable struct {
		sync.RWMutex
		table map[string]*marks.Blueprint // {blueprintID: Blueprint}
	}

	studentMarkKey struct {
		studentID     string
		subQuestionID string
	}

	studentMarkTable struct {
		sync.RWMutex
		table map[studentMarkKey]*marks.StudentMark
	}

	internalTotalTable struct {
		sync.RWMutex
		table map[marks.TotalKey]*marks.InternalTotal
	}

	componentMarkKey struct {
		marks.ComponentKey
		component string
		attempt   int
	}

	componentMarkTable struct {
		sync.RWMutex
		table map[componentMarkKey]*marks.ComponentMark
	}

	componentTotalTable struct {
		sync.RWMutex
		table map[marks.ComponentKey]*marks.ComponentTotal
	}
)

func Open() (*DB, error) {
	db := &DB{
		blueprint:      &blueprintTable{table: make(map[string]*marks.Blueprint)},
		studentMark:    &studentMarkTable{table: make(map[studentMarkKey]*marks.StudentMark)},
		internalTotal:  &internalTotalTable{table: make(map[marks.TotalKey]*marks.InternalTotal)},
		componentMark:  &componentMarkTable{table: make(map[componentMarkKey]*marks.ComponentMark)},
		componentTotal: &componentTotalTable{table: make(map[marks.ComponentKey]*marks.ComponentTotal)},
	}
	return db, nil
}
