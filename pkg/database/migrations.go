package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	Up      string
}

const migration001Students = `
CREATE TABLE IF NOT EXISTS students (
    student_id    TEXT PRIMARY KEY,
    display_name  TEXT NOT NULL DEFAULT '',
    total_xp      INTEGER NOT NULL DEFAULT 0,
    weekly_xp     INTEGER NOT NULL DEFAULT 0,
    monthly_xp    INTEGER NOT NULL DEFAULT 0,
    total_badges  INTEGER NOT NULL DEFAULT 0,
    last_activity TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT students_xp_non_negative CHECK (total_xp >= 0 AND weekly_xp >= 0 AND monthly_xp >= 0),
    CONSTRAINT students_badges_non_negative CHECK (total_badges >= 0)
);

CREATE TABLE IF NOT EXISTS xp_transactions (
    id            UUID PRIMARY KEY,
    student_id    TEXT NOT NULL REFERENCES students(student_id),
    activity_type TEXT NOT NULL,
    xp_earned     INTEGER NOT NULL,
    reason        TEXT,
    earned_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT xp_transactions_activity CHECK (activity_type IN ('lesson', 'quiz', 'game', 'daily_login', 'badge', 'weekly_challenge')),
    CONSTRAINT xp_transactions_non_negative CHECK (xp_earned >= 0)
);

CREATE INDEX IF NOT EXISTS idx_xp_transactions_student_time ON xp_transactions(student_id, earned_at DESC);
CREATE INDEX IF NOT EXISTS idx_xp_transactions_student_activity ON xp_transactions(student_id, activity_type);
CREATE INDEX IF NOT EXISTS idx_students_total_xp ON students(total_xp DESC, created_at);
CREATE INDEX IF NOT EXISTS idx_students_weekly_xp ON students(weekly_xp DESC, created_at);
`

const migration002Badges = `
CREATE TABLE IF NOT EXISTS badges (
    badge_id          TEXT PRIMARY KEY,
    name              TEXT NOT NULL,
    description       TEXT NOT NULL DEFAULT '',
    badge_type        TEXT NOT NULL,
    requirement_type  TEXT NOT NULL,
    requirement_value INTEGER NOT NULL,
    xp_reward         INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT badges_requirement_type CHECK (requirement_type IN ('count', 'score', 'streak', 'speed')),
    CONSTRAINT badges_xp_reward_non_negative CHECK (xp_reward >= 0)
);

CREATE TABLE IF NOT EXISTS student_badges (
    student_id TEXT NOT NULL REFERENCES students(student_id),
    badge_id   TEXT NOT NULL REFERENCES badges(badge_id),
    earned_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    progress   INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT student_badges_unique UNIQUE (student_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_student_badges_earned_at ON student_badges(earned_at);

INSERT INTO badges (badge_id, name, description, badge_type, requirement_type, requirement_value, xp_reward) VALUES
    ('first_lesson', 'First Steps', 'Complete your first lesson', 'lesson', 'count', 1, 25),
    ('lesson_explorer', 'Lesson Explorer', 'Complete 5 lessons', 'lesson', 'count', 5, 50),
    ('speedy_learner', 'Speedy Learner', 'Finish a lesson in under 2 minutes', 'lesson', 'speed', 120, 30),
    ('quiz_whiz', 'Quiz Whiz', 'Score 100 on a quiz', 'quiz', 'score', 1, 50),
    ('quiz_master', 'Quiz Master', 'Score 100 on 3 quizzes', 'quiz', 'score', 3, 100),
    ('game_on', 'Game On', 'Play 3 mini-games', 'game', 'count', 3, 25),
    ('week_warrior', 'Week Warrior', 'Log in 7 days in a row', 'daily_login', 'streak', 7, 70),
    ('fortnight_hero', 'Fortnight Hero', 'Log in 14 days in a row', 'daily_login', 'streak', 14, 140),
    ('on_fire', 'On Fire', 'Keep a 3 day streak while learning', 'special', 'streak', 3, 0),
    ('collector', 'Collector', 'Earn 5 badges', 'badge', 'count', 5, 100)
ON CONFLICT (badge_id) DO NOTHING;
`

const migration003Streaks = `
CREATE TABLE IF NOT EXISTS daily_streaks (
    student_id       TEXT PRIMARY KEY,
    current_streak   INTEGER NOT NULL DEFAULT 0,
    longest_streak   INTEGER NOT NULL DEFAULT 0,
    last_login_date  DATE,
    total_login_days INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT daily_streaks_longest CHECK (longest_streak >= current_streak),
    CONSTRAINT daily_streaks_non_negative CHECK (current_streak >= 0 AND total_login_days >= 0)
);

CREATE TABLE IF NOT EXISTS daily_logins (
    student_id TEXT NOT NULL,
    login_date DATE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (student_id, login_date)
);

CREATE INDEX IF NOT EXISTS idx_daily_streaks_current ON daily_streaks(current_streak DESC);
`

const migration004Progress = `
CREATE TABLE IF NOT EXISTS progress_stages (
    student_id   TEXT NOT NULL,
    stage_type   TEXT NOT NULL,
    stage_index  INTEGER NOT NULL,
    signals      INTEGER NOT NULL DEFAULT 0,
    completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (student_id, stage_type, stage_index),
    CONSTRAINT progress_stages_type CHECK (stage_type IN ('lesson', 'quiz', 'puzzle')),
    CONSTRAINT progress_stages_index CHECK (stage_index BETWEEN 1 AND 5)
);
`

const migration005Activities = `
CREATE TABLE IF NOT EXISTS quiz_questions (
    question_id    TEXT PRIMARY KEY,
    quiz_index     INTEGER NOT NULL,
    prompt         TEXT NOT NULL,
    correct_answer TEXT NOT NULL,
    position       INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT quiz_questions_index CHECK (quiz_index BETWEEN 1 AND 5)
);

CREATE TABLE IF NOT EXISTS quiz_answer_credits (
    student_id  TEXT NOT NULL,
    question_id TEXT NOT NULL REFERENCES quiz_questions(question_id),
    credited_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (student_id, question_id)
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
    id         UUID PRIMARY KEY,
    student_id TEXT NOT NULL,
    quiz_index INTEGER NOT NULL,
    score      INTEGER NOT NULL,
    correct    INTEGER NOT NULL,
    total      INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_quiz_attempts_student_score ON quiz_attempts(student_id, score);

CREATE TABLE IF NOT EXISTS lesson_completions (
    id                 UUID PRIMARY KEY,
    student_id         TEXT NOT NULL,
    lesson_id          TEXT NOT NULL,
    is_first_attempt   BOOLEAN NOT NULL DEFAULT FALSE,
    is_perfect         BOOLEAN NOT NULL DEFAULT FALSE,
    completion_seconds INTEGER NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS game_sessions (
    id                 UUID PRIMARY KEY,
    student_id         TEXT NOT NULL,
    lesson_id          TEXT NOT NULL,
    game_type          TEXT NOT NULL,
    score              INTEGER NOT NULL DEFAULT 0,
    is_high_score      BOOLEAN NOT NULL DEFAULT FALSE,
    attempts           INTEGER NOT NULL DEFAULT 0,
    completion_seconds INTEGER NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS weekly_challenge_claims (
    student_id   TEXT NOT NULL,
    challenge_id TEXT NOT NULL,
    week_start   DATE NOT NULL,
    claimed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (student_id, challenge_id, week_start)
);

CREATE TABLE IF NOT EXISTS period_resets (
    period_kind  TEXT NOT NULL,
    period_start DATE NOT NULL,
    reset_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (period_kind, period_start)
);
`

const migration006QuizBank = `
INSERT INTO quiz_questions (question_id, quiz_index, prompt, correct_answer, position) VALUES
    ('q1-1', 1, 'Which command shows text on the screen?', 'print', 1),
    ('q1-2', 1, 'What does print("Hi") show?', 'Hi', 2),
    ('q1-3', 1, 'Text inside quotes is called a ...', 'string', 3),
    ('q2-1', 2, 'Which symbol stores a value in a variable?', '=', 1),
    ('q2-2', 2, 'After age = 7, what is age + 1?', '8', 2),
    ('q2-3', 2, 'Can a variable name start with a number? (yes/no)', 'no', 3),
    ('q3-1', 3, 'Which word starts a decision?', 'if', 1),
    ('q3-2', 3, 'Which word runs when the if is false?', 'else', 2),
    ('q3-3', 3, 'Is 5 > 3 True or False?', 'True', 3),
    ('q4-1', 4, 'Which loop repeats over a range of numbers?', 'for', 1),
    ('q4-2', 4, 'How many times does range(3) repeat?', '3', 2),
    ('q4-3', 4, 'Which loop keeps going while a condition is true?', 'while', 3),
    ('q5-1', 5, 'Which word creates a function?', 'def', 1),
    ('q5-2', 5, 'Which word sends a value back from a function?', 'return', 2),
    ('q5-3', 5, 'Values passed into a function are called ...', 'arguments', 3)
ON CONFLICT (question_id) DO NOTHING;
`

// Migrations lists schema steps in application order.
var Migrations = []Migration{
	{Version: 1, Name: "students_and_ledger", Up: migration001Students},
	{Version: 2, Name: "badges", Up: migration002Badges},
	{Version: 3, Name: "streaks", Up: migration003Streaks},
	{Version: 4, Name: "progress", Up: migration004Progress},
	{Version: 5, Name: "activities", Up: migration005Activities},
	{Version: 6, Name: "quiz_bank", Up: migration006QuizBank},
}

const schemaMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrate applies every migration not yet recorded in schema_migrations. Each
// step runs in its own transaction.
func Migrate(ctx context.Context, db *sqlx.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []int
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations ORDER BY version`); err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	done := make(map[int]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}

	for _, m := range Migrations {
		if _, ok := done[m.Version]; ok {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
		logger.Info("migration applied", zap.Int("version", m.Version), zap.String("name", m.Name))
	}
	return nil
}

func applyMigration(ctx context.Context, db *sqlx.DB, m Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}
