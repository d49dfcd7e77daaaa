package timeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/overlay-core/internal/infrastructure/database"
)

// Repository defines timeline persistence. One Repository value is bound
// either to the plain connection or to a single transaction (see
// Store.Atomic); callers cannot tell the difference.
type Repository interface {
	// People
	CreatePerson(ctx context.Context, p *Person) error
	GetPerson(ctx context.Context, id int64) (*Person, error)
	GetPersonByName(ctx context.Context, name string) (*Person, error)
	ListPeople(ctx context.Context) ([]Person, error)

	// Events
	CreateEvent(ctx context.Context, e *Event) error
	GetEvent(ctx context.Context, id int64) (*Event, error)
	GetEventByName(ctx context.Context, name string) (*Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
	UpdateEvent(ctx context.Context, e *Event) error
	DeleteEvent(ctx context.Context, id int64) error

	// Runs
	CreateRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id int64) (*Run, error)
	GetRunByIndex(ctx context.Context, eventID int64, index int) (*Run, error)
	ListRuns(ctx context.Context, eventID int64) ([]*Run, error)
	RunAfter(ctx context.Context, eventID int64, index int, includeIntermissions bool) (*Run, error)
	RunBefore(ctx context.Context, eventID int64, index int) (*Run, error)
	LastFinishedRun(ctx context.Context, eventID int64) (*Run, error)
	UpdateRun(ctx context.Context, r *Run) error
	UpdatePlanning(ctx context.Context, runID int64, start, end time.Time) error
	SetRunIndex(ctx context.Context, runID int64, index int) error
	SetRunPeople(ctx context.Context, runID int64, runners, commentators []int64) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store hands out repositories over one database, either directly or
// scoped to a transaction.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Repository returns a repository that runs each statement on its own.
func (s *Store) Repository() Repository {
	return &SQLiteRepository{q: s.db}
}

// Atomic runs fn against a repository bound to one transaction. The
// transaction commits only if fn returns nil; otherwise nothing fn wrote is
// visible to anyone.
func (s *Store) Atomic(ctx context.Context, fn func(repo Repository) error) error {
	return database.InTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&SQLiteRepository{q: tx})
	})
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	q querier
}

const personColumns = `id, name, pronouns, socials, stream_host, created_at`

const eventColumns = `id, name, start_at, end_at, shift_ms, current_run_id, created_at, updated_at`

const runColumns = `id, event_id, run_index, name, platform, category, trigger_warning,
			estimated_ms, planning_start_at, planning_end_at, actual_start_at, actual_end_at,
			is_intermission, is_finished, obs_scene`

// --- People ---

// CreatePerson inserts p and sets its ID.
func (r *SQLiteRepository) CreatePerson(ctx context.Context, p *Person) error {
	p.Name = NormalizeName(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPerson)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO people (name, pronouns, socials, stream_host, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.Name,
		nullableString(p.Pronouns),
		nullableString(p.Socials),
		nullableString(p.StreamHost),
		formatTime(p.CreatedAt),
	)
	if err != nil {
		return classifyWriteError("inserting person", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading person id: %w", err)
	}
	p.ID = id
	return nil
}

// GetPerson retrieves a person by ID.
func (r *SQLiteRepository) GetPerson(ctx context.Context, id int64) (*Person, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE id = ?`, id)
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPersonNotFound
		}
		return nil, fmt.Errorf("querying person by id: %w", err)
	}
	return p, nil
}

// GetPersonByName retrieves a person by display name.
func (r *SQLiteRepository) GetPersonByName(ctx context.Context, name string) (*Person, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE name = ?`, NormalizeName(name))
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPersonNotFound
		}
		return nil, fmt.Errorf("querying person by name: %w", err)
	}
	return p, nil
}

// ListPeople returns every person, ordered by name.
func (r *SQLiteRepository) ListPeople(ctx context.Context) ([]Person, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+personColumns+` FROM people`)
	if err != nil {
		return nil, fmt.Errorf("querying people: %w", err)
	}
	defer rows.Close()

	var people []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning person: %w", err)
		}
		people = append(people, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating people: %w", err)
	}
	SortPeople(people)
	return people, nil
}

// --- Events ---

// CreateEvent inserts e and sets its ID.
func (r *SQLiteRepository) CreateEvent(ctx context.Context, e *Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO events (name, start_at, end_at, shift_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Name,
		formatTime(e.StartAt),
		formatTime(e.EndAt),
		e.Shift.Milliseconds(),
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	)
	if err != nil {
		return classifyWriteError("inserting event", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading event id: %w", err)
	}
	e.ID = id
	e.CurrentRunID = nil
	return nil
}

// GetEvent retrieves an event by ID.
func (r *SQLiteRepository) GetEvent(ctx context.Context, id int64) (*Event, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("querying event by id: %w", err)
	}
	return e, nil
}

// GetEventByName retrieves an event by its unique name.
func (r *SQLiteRepository) GetEventByName(ctx context.Context, name string) (*Event, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE name = ?`, name)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("querying event by name: %w", err)
	}
	return e, nil
}

// ListEvents returns every event ordered by start.
func (r *SQLiteRepository) ListEvents(ctx context.Context) ([]Event, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_at, name`)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// UpdateEvent writes every mutable event field, including the current run
// pointer. A pointer to a run of another event fails with ErrRunNotInEvent.
func (r *SQLiteRepository) UpdateEvent(ctx context.Context, e *Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.UpdatedAt = time.Now().UTC()

	var current sql.NullInt64
	if e.CurrentRunID != nil {
		current = sql.NullInt64{Int64: *e.CurrentRunID, Valid: true}
	}

	res, err := r.q.ExecContext(ctx, `
		UPDATE events SET
			name = ?, start_at = ?, end_at = ?, shift_ms = ?, current_run_id = ?, updated_at = ?
		WHERE id = ?`,
		e.Name,
		formatTime(e.StartAt),
		formatTime(e.EndAt),
		e.Shift.Milliseconds(),
		current,
		formatTime(e.UpdatedAt),
		e.ID,
	)
	if err != nil {
		return classifyWriteError("updating event", err)
	}
	return requireOneRow(res, ErrEventNotFound)
}

// DeleteEvent removes an event and, by cascade, its runs.
func (r *SQLiteRepository) DeleteEvent(ctx context.Context, id int64) error {
	// Clear the pointer first so the cascade does not fight the trigger.
	if _, err := r.q.ExecContext(ctx, `UPDATE events SET current_run_id = NULL WHERE id = ?`, id); err != nil {
		return fmt.Errorf("clearing current run: %w", err)
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	return requireOneRow(res, ErrEventNotFound)
}

// --- Runs ---

// CreateRun inserts run and sets its ID. Planning times may be zero; the
// scheduler fills them in.
func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	if err := run.Validate(); err != nil {
		return err
	}

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO runs (
			event_id, run_index, name, platform, category, trigger_warning,
			estimated_ms, planning_start_at, planning_end_at, actual_start_at, actual_end_at,
			is_intermission, is_finished, obs_scene
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.EventID,
		run.Index,
		run.Name,
		run.Platform,
		run.Category,
		nullableString(run.TriggerWarning),
		run.Estimated.Milliseconds(),
		formatTime(run.PlanningStart),
		formatTime(run.PlanningEnd),
		nullableTime(run.ActualStart),
		nullableTime(run.ActualEnd),
		boolToInt(run.IsIntermission),
		boolToInt(run.IsFinished),
		nullableString(run.OBSScene),
	)
	if err != nil {
		return classifyWriteError("inserting run", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading run id: %w", err)
	}
	run.ID = id
	return nil
}

// GetRun retrieves a run with its runners and commentators.
func (r *SQLiteRepository) GetRun(ctx context.Context, id int64) (*Run, error) {
	return r.getRun(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
}

// GetRunByIndex retrieves the run at index within an event.
func (r *SQLiteRepository) GetRunByIndex(ctx context.Context, eventID int64, index int) (*Run, error) {
	return r.getRun(ctx, `SELECT `+runColumns+` FROM runs WHERE event_id = ? AND run_index = ?`, eventID, index)
}

// ListRuns returns an event's runs in ascending run_index order.
func (r *SQLiteRepository) ListRuns(ctx context.Context, eventID int64) ([]*Run, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE event_id = ? ORDER BY run_index`, eventID)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	runs, err := collectRuns(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachPeople(ctx, runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// RunAfter returns the run with the smallest index strictly greater than
// index, or ErrRunNotFound when the timeline is exhausted.
func (r *SQLiteRepository) RunAfter(ctx context.Context, eventID int64, index int, includeIntermissions bool) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE event_id = ? AND run_index > ?`
	if !includeIntermissions {
		query += ` AND is_intermission = 0`
	}
	query += ` ORDER BY run_index LIMIT 1`
	return r.getRun(ctx, query, eventID, index)
}

// RunBefore returns the run with the largest index strictly less than index,
// or ErrRunNotFound at the start of the timeline. The reserved swap index is
// never returned.
func (r *SQLiteRepository) RunBefore(ctx context.Context, eventID int64, index int) (*Run, error) {
	return r.getRun(ctx, `SELECT `+runColumns+` FROM runs
		WHERE event_id = ? AND run_index < ? AND run_index <> ?
		ORDER BY run_index DESC LIMIT 1`, eventID, index, ReservedIndex)
}

// LastFinishedRun returns the finished run with the highest index.
func (r *SQLiteRepository) LastFinishedRun(ctx context.Context, eventID int64) (*Run, error) {
	return r.getRun(ctx, `SELECT `+runColumns+` FROM runs
		WHERE event_id = ? AND is_finished = 1
		ORDER BY run_index DESC LIMIT 1`, eventID)
}

// UpdateRun writes a run's scalar fields. Runners and commentators are
// written by SetRunPeople.
func (r *SQLiteRepository) UpdateRun(ctx context.Context, run *Run) error {
	if run.Index != ReservedIndex {
		if err := run.Validate(); err != nil {
			return err
		}
	}

	res, err := r.q.ExecContext(ctx, `
		UPDATE runs SET
			run_index = ?, name = ?, platform = ?, category = ?, trigger_warning = ?,
			estimated_ms = ?, planning_start_at = ?, planning_end_at = ?,
			actual_start_at = ?, actual_end_at = ?, is_intermission = ?, is_finished = ?,
			obs_scene = ?
		WHERE id = ?`,
		run.Index,
		run.Name,
		run.Platform,
		run.Category,
		nullableString(run.TriggerWarning),
		run.Estimated.Milliseconds(),
		formatTime(run.PlanningStart),
		formatTime(run.PlanningEnd),
		nullableTime(run.ActualStart),
		nullableTime(run.ActualEnd),
		boolToInt(run.IsIntermission),
		boolToInt(run.IsFinished),
		nullableString(run.OBSScene),
		run.ID,
	)
	if err != nil {
		return classifyWriteError("updating run", err)
	}
	return requireOneRow(res, ErrRunNotFound)
}

// UpdatePlanning writes only the derived planning window of a run.
func (r *SQLiteRepository) UpdatePlanning(ctx context.Context, runID int64, start, end time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE runs SET planning_start_at = ?, planning_end_at = ? WHERE id = ?`,
		formatTime(start), formatTime(end), runID)
	if err != nil {
		return fmt.Errorf("updating run planning: %w", err)
	}
	return requireOneRow(res, ErrRunNotFound)
}

// SetRunIndex moves a run to index. Moving onto an index that is taken fails
// with ErrRunIndexConflict; use ReservedIndex to free a slot first.
func (r *SQLiteRepository) SetRunIndex(ctx context.Context, runID int64, index int) error {
	res, err := r.q.ExecContext(ctx, `UPDATE runs SET run_index = ? WHERE id = ?`, index, runID)
	if err != nil {
		return classifyWriteError("updating run index", err)
	}
	return requireOneRow(res, ErrRunNotFound)
}

// SetRunPeople replaces a run's runners and commentators. The order of the
// ids is not significant; people are always read back ordered by name.
func (r *SQLiteRepository) SetRunPeople(ctx context.Context, runID int64, runners, commentators []int64) error {
	for _, table := range []string{"run_runners", "run_commentators"} {
		if _, err := r.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	insert := func(table string, ids []int64) error {
		for _, pid := range ids {
			_, err := r.q.ExecContext(ctx,
				`INSERT OR IGNORE INTO `+table+` (run_id, person_id) VALUES (?, ?)`, runID, pid)
			if err != nil {
				if isForeignKeyError(err) {
					return ErrPersonNotFound
				}
				return fmt.Errorf("inserting into %s: %w", table, err)
			}
		}
		return nil
	}
	if err := insert("run_runners", runners); err != nil {
		return err
	}
	return insert("run_commentators", commentators)
}

func (r *SQLiteRepository) getRun(ctx context.Context, query string, args ...any) (*Run, error) {
	run, err := scanRun(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	if err := r.attachPeople(ctx, []*Run{run}); err != nil {
		return nil, err
	}
	return run, nil
}

// attachPeople loads runners and commentators for runs in two queries.
func (r *SQLiteRepository) attachPeople(ctx context.Context, runs []*Run) error {
	if len(runs) == 0 {
		return nil
	}

	byID := make(map[int64]*Run, len(runs))
	placeholders := make([]string, 0, len(runs))
	args := make([]any, 0, len(runs))
	for _, run := range runs {
		run.Runners = []Person{}
		run.Commentators = []Person{}
		byID[run.ID] = run
		placeholders = append(placeholders, "?")
		args = append(args, run.ID)
	}
	in := strings.Join(placeholders, ", ")

	load := func(table string, assign func(run *Run, p Person)) error {
		rows, err := r.q.QueryContext(ctx, `
			SELECT l.run_id, p.id, p.name, p.pronouns, p.socials, p.stream_host, p.created_at
			FROM `+table+` l JOIN people p ON p.id = l.person_id
			WHERE l.run_id IN (`+in+`)`, args...)
		if err != nil {
			return fmt.Errorf("querying %s: %w", table, err)
		}
		defer rows.Close()

		for rows.Next() {
			var runID int64
			var p Person
			var pronouns, socials, host sql.NullString
			var created string
			if err := rows.Scan(&runID, &p.ID, &p.Name, &pronouns, &socials, &host, &created); err != nil {
				return fmt.Errorf("scanning %s: %w", table, err)
			}
			p.Pronouns, p.Socials, p.StreamHost = pronouns.String, socials.String, host.String
			p.CreatedAt = parseTime(created)
			if run, ok := byID[runID]; ok {
				assign(run, p)
			}
		}
		return rows.Err()
	}

	if err := load("run_runners", func(run *Run, p Person) { run.Runners = append(run.Runners, p) }); err != nil {
		return err
	}
	if err := load("run_commentators", func(run *Run, p Person) { run.Commentators = append(run.Commentators, p) }); err != nil {
		return err
	}

	for _, run := range runs {
		SortPeople(run.Runners)
		SortPeople(run.Commentators)
	}
	return nil
}

// --- scanning ---

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(s scanner) (*Person, error) {
	var p Person
	var pronouns, socials, host sql.NullString
	var created string
	if err := s.Scan(&p.ID, &p.Name, &pronouns, &socials, &host, &created); err != nil {
		return nil, err
	}
	p.Pronouns = pronouns.String
	p.Socials = socials.String
	p.StreamHost = host.String
	p.CreatedAt = parseTime(created)
	return &p, nil
}

func scanEvent(s scanner) (*Event, error) {
	var e Event
	var start, end, created, updated string
	var shiftMS int64
	var current sql.NullInt64
	if err := s.Scan(&e.ID, &e.Name, &start, &end, &shiftMS, &current, &created, &updated); err != nil {
		return nil, err
	}
	e.StartAt = parseTime(start)
	e.EndAt = parseTime(end)
	e.Shift = time.Duration(shiftMS) * time.Millisecond
	if current.Valid {
		id := current.Int64
		e.CurrentRunID = &id
	}
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	return &e, nil
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var tw, scene, actualStart, actualEnd sql.NullString
	var planStart, planEnd string
	var estimatedMS int64
	var intermission, finished int

	err := s.Scan(
		&run.ID, &run.EventID, &run.Index, &run.Name, &run.Platform, &run.Category, &tw,
		&estimatedMS, &planStart, &planEnd, &actualStart, &actualEnd,
		&intermission, &finished, &scene,
	)
	if err != nil {
		return nil, err
	}

	run.TriggerWarning = tw.String
	run.OBSScene = scene.String
	run.Estimated = time.Duration(estimatedMS) * time.Millisecond
	run.PlanningStart = parseTime(planStart)
	run.PlanningEnd = parseTime(planEnd)
	run.ActualStart = parseNullTime(actualStart)
	run.ActualEnd = parseNullTime(actualEnd)
	run.IsIntermission = intermission == 1
	run.IsFinished = finished == 1
	return &run, nil
}

func collectRuns(rows *sql.Rows) ([]*Run, error) {
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// --- helpers ---

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// classifyWriteError maps SQLite constraint failures onto domain errors.
func classifyWriteError(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			if strings.Contains(se.Error(), "run_index") {
				return ErrRunIndexConflict
			}
			return ErrNameExists
		case sqlite3.ErrConstraintTrigger:
			return ErrRunNotInEvent
		case sqlite3.ErrConstraintCheck:
			if strings.Contains(se.Error(), "run_index") {
				return ErrInvalidRun
			}
			return fmt.Errorf("%s: %w", op, err)
		case sqlite3.ErrConstraintForeignKey:
			if strings.Contains(op, "event") {
				return ErrRunNotFound
			}
			return ErrEventNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isForeignKeyError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
