package inmemdb

import (
	"cmp"
	"slices"
	"sync"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/course"
	"github.com/trezcool/remindme/core/faculty"
	"github.com/trezcool/remindme/core/schedule"
	"github.com/trezcool/remindme/core/user"
)

// DB is a process-local store used in development & tests.
// A single lock guards every table so that joins see a consistent state.
type DB struct {
	sync.RWMutex

	faculties   map[int64]*faculty.Faculty
	departments map[int64]*faculty.Department
	users       map[int64]*user.User
	courses     map[int64]*course.Course
	schedules   map[int64]*schedule.Schedule

	lastIDs map[string]int64
}

func Open() *DB {
	return &DB{
		faculties:   make(map[int64]*faculty.Faculty),
		departments: make(map[int64]*faculty.Department),
		users:       make(map[int64]*user.User),
		courses:     make(map[int64]*course.Course),
		schedules:   make(map[int64]*schedule.Schedule),
		lastIDs:     make(map[string]int64),
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID(table string) int64 {
	db.lastIDs[table]++
	return db.lastIDs[table]
}

// Truncate empties every table; used between tests.
func (db *DB) Truncate() {
	db.Lock()
	defer db.Unlock()
	clear(db.faculties)
	clear(db.departments)
	clear(db.users)
	clear(db.courses)
	clear(db.schedules)
}

func values[T any](table map[int64]*T) []T {
	rows := make([]T, 0, len(table))
	for _, row := range table {
		rows = append(rows, *row)
	}
	return rows
}

type comparator[T any] func(a, b T) int

// sortRows orders rows by the orderings whose field has a comparator, then by id.
func sortRows[T any](rows []T, orderings []core.DBOrdering, fields map[string]comparator[T], id func(T) int64) {
	slices.SortStableFunc(rows, func(a, b T) int {
		for _, ord := range orderings {
			compare, ok := fields[ord.Field]
			if !ok {
				continue
			}
			c := compare(a, b)
			if !ord.Ascending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(id(a), id(b))
	})
}
