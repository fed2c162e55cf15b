package postgres

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_students",
			UpSQL:   migration001Up,
		},
		{
			Version: 2,
			Name:    "students_grade_range",
			UpSQL:   migration002Up,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    grades INTEGER[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_name CHECK (length(btrim(name)) > 0)
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: GRADE RANGE
// ══════════════════════════════════════════════════════════════════════════════

// ALL over an empty array is true, so students without grades pass.
const migration002Up = `
ALTER TABLE students
    ADD CONSTRAINT valid_grades CHECK (2 <= ALL (grades) AND 5 >= ALL (grades));
`
