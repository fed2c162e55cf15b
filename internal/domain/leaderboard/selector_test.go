package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepup/gradebook/internal/domain/student"
)

func newStudent(t *testing.T, id int64, name string, grades ...student.Grade) *student.Student {
	t.Helper()
	s, err := student.New(student.ID(id), name, grades)
	require.NoError(t, err)
	return s
}

func ids(students []*student.Student) []student.ID {
	out := make([]student.ID, 0, len(students))
	for _, s := range students {
		out = append(out, s.ID())
	}
	return out
}

func TestSelectTop_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		snapshot func(t *testing.T) []*student.Student
		want     []student.ID
	}{
		{
			name:     "A: no students",
			snapshot: func(t *testing.T) []*student.Student { return nil },
			want:     []student.ID{},
		},
		{
			name: "B: all students without grades",
			snapshot: func(t *testing.T) []*student.Student {
				return []*student.Student{
					newStudent(t, 1, "A"),
					newStudent(t, 2, "B"),
					newStudent(t, 3, "C"),
				}
			},
			want: []student.ID{},
		},
		{
			name: "C: highest average wins",
			snapshot: func(t *testing.T) []*student.Student {
				return []*student.Student{
					newStudent(t, 1, "A", 5, 5, 5),
					newStudent(t, 2, "B", 4, 4, 4),
					newStudent(t, 3, "C", 5, 4, 5),
				}
			},
			want: []student.ID{1},
		},
		{
			name: "D: equal average, most grades wins",
			snapshot: func(t *testing.T) []*student.Student {
				return []*student.Student{
					newStudent(t, 1, "A", 5, 5, 5),
					newStudent(t, 2, "B", 5, 5, 5, 5),
					newStudent(t, 3, "C", 5, 5),
				}
			},
			want: []student.ID{2},
		},
		{
			name: "E: exact ties are all returned",
			snapshot: func(t *testing.T) []*student.Student {
				return []*student.Student{
					newStudent(t, 1, "A", 5, 5, 5),
					newStudent(t, 2, "B", 5, 5, 5),
					newStudent(t, 3, "C", 5, 5, 5),
					newStudent(t, 4, "D", 5, 4, 5),
				}
			},
			want: []student.ID{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winners := SelectTop(tt.snapshot(t))
			require.NotNil(t, winners)
			SortByID(winners)
			assert.Equal(t, tt.want, ids(winners))
		})
	}
}

func TestSelectTop_ZeroGradesNeverWin(t *testing.T) {
	snapshot := []*student.Student{
		newStudent(t, 1, "Empty"),
		newStudent(t, 2, "Low", 2),
	}

	winners := SelectTop(snapshot)
	assert.Equal(t, []student.ID{2}, ids(winners))
}

func TestSelectTop_SameMultisetTies(t *testing.T) {
	snapshot := []*student.Student{
		newStudent(t, 1, "A", 5, 4, 5),
		newStudent(t, 2, "B", 5, 5, 4),
	}

	winners := SelectTop(snapshot)
	assert.Len(t, winners, 2)
}

func TestSelectTop_Idempotent(t *testing.T) {
	snapshot := []*student.Student{
		newStudent(t, 1, "A", 5, 4),
		newStudent(t, 2, "B", 4, 5),
		newStudent(t, 3, "C", 5, 5, 2),
	}

	first := SelectTop(snapshot)
	second := SelectTop(snapshot)
	SortByID(first)
	SortByID(second)
	assert.Equal(t, ids(first), ids(second))
	assert.Len(t, snapshot, 3, "snapshot must not be modified")
}

func TestSelect_ReportsCriteria(t *testing.T) {
	snapshot := []*student.Student{
		newStudent(t, 1, "A", 4, 4),
		newStudent(t, 2, "B", 4, 4, 4),
		newStudent(t, 3, "C"),
	}

	res := Select(snapshot)
	assert.False(t, res.IsEmpty())
	assert.Equal(t, 4.0, res.MaxAverage)
	assert.Equal(t, 3, res.MaxCount)
	assert.Equal(t, 2, res.Considered)
}

func TestSortByID(t *testing.T) {
	list := []*student.Student{
		newStudent(t, 3, "C"),
		newStudent(t, 1, "A"),
		newStudent(t, 2, "B"),
	}
	SortByID(list)
	assert.Equal(t, []student.ID{1, 2, 3}, ids(list))
}
