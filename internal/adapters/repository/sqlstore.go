package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver "pgx"
	"github.com/jmoiron/sqlx"
	"github.com/wintality/athlete-testing/internal/domain/model"
	"github.com/wintality/athlete-testing/internal/domain/schema"
	"github.com/wintality/athlete-testing/internal/domain/types"
	_ "modernc.org/sqlite" // sqlite driver "sqlite"
)

// Store drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS athletes (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		birthdate TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		instagram TEXT NOT NULL DEFAULT '',
		sport TEXT NOT NULL DEFAULT '',
		team TEXT NOT NULL DEFAULT '',
		playing_position TEXT NOT NULL DEFAULT '',
		jersey_number INTEGER,
		club TEXT NOT NULL DEFAULT '',
		league TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS test_sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS session_roster (
		session_id TEXT NOT NULL REFERENCES test_sessions(id),
		seq INTEGER NOT NULL,
		athlete_id TEXT NOT NULL,
		PRIMARY KEY (session_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS session_values (
		session_id TEXT NOT NULL REFERENCES test_sessions(id),
		athlete_id TEXT NOT NULL,
		field TEXT NOT NULL,
		value DOUBLE PRECISION,
		PRIMARY KEY (session_id, athlete_id, field)
	)`,
}

type athleteRow struct {
	ID           string        `db:"id"`
	FirstName    string        `db:"first_name"`
	LastName     string        `db:"last_name"`
	Birthdate    string        `db:"birthdate"`
	Email        string        `db:"email"`
	Instagram    string        `db:"instagram"`
	Sport        string        `db:"sport"`
	Team         string        `db:"team"`
	Position     string        `db:"playing_position"`
	JerseyNumber sql.NullInt64 `db:"jersey_number"`
	Club         string        `db:"club"`
	League       string        `db:"league"`
	CreatedAt    string        `db:"created_at"`
}

type sessionRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	CreatedAt string `db:"created_at"`
}

type rosterRow struct {
	SessionID string `db:"session_id"`
	AthleteID string `db:"athlete_id"`
}

type valueRow struct {
	SessionID string          `db:"session_id"`
	AthleteID string          `db:"athlete_id"`
	Field     string          `db:"field"`
	Value     sql.NullFloat64 `db:"value"`
}

// SQLStore is a Store over SQLite or PostgreSQL. Each measurement is its
// own row, so concurrent updates to different fields never overwrite one
// another.
type SQLStore struct {
	db      *sqlx.DB
	backend string
	opts    options
}

// Open returns the Store for driver. The memory driver ignores dsn.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(opts...), nil
	case DriverSQLite, DriverPostgres:
		return OpenSQL(ctx, driver, dsn, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// OpenSQL connects to a SQLite or PostgreSQL database and ensures the
// schema exists.
func OpenSQL(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	driverName := driver
	switch driver {
	case DriverSQLite:
	case DriverPostgres:
		driverName = "pgx"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// a single connection keeps :memory: databases alive and serializes writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	s, err := NewSQLStore(ctx, db, driver, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open connection and creates missing tables.
func NewSQLStore(ctx context.Context, db *sqlx.DB, backend string, opts ...Option) (*SQLStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return &SQLStore{db: db, backend: backend, opts: o}, nil
}

// DB exposes the underlying connection.
func (s *SQLStore) DB() *sqlx.DB { return s.db }

// Close implements Store.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateSession implements Store.
func (s *SQLStore) CreateSession(ctx context.Context, sess model.Session) (id string, err error) {
	defer func(start time.Time) { observe(s.backend, "create_session", start, err) }(time.Now())
	if err := sess.Validate(); err != nil {
		return "", err
	}
	if sess.ID == "" {
		sess.ID = s.opts.newID()
	}
	created := formatTime(sess.CreatedAt)

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM test_sessions WHERE id = ?`), sess.ID); err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("session %q: %w", sess.ID, ErrAlreadyExists)
		}
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO test_sessions (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`),
			sess.ID, sess.Name, created, created); err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		for i, athleteID := range sess.Athletes {
			if err := insertRoster(ctx, tx, sess.ID, i, athleteID); err != nil {
				return err
			}
		}
		for _, athleteID := range sess.DistinctRoster() {
			if err := insertRecord(ctx, tx, sess.ID, athleteID, sess.Tests[athleteID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

func insertRoster(ctx context.Context, tx *sqlx.Tx, sessionID string, seq int, athleteID string) error {
	_, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO session_roster (session_id, seq, athlete_id) VALUES (?, ?, ?)`),
		sessionID, seq, athleteID)
	if err != nil {
		return fmt.Errorf("failed to insert roster entry: %w", err)
	}
	return nil
}

// insertRecord writes one row per catalog field, NULL when unmeasured.
func insertRecord(ctx context.Context, tx *sqlx.Tx, sessionID, athleteID string, rec schema.Record) error {
	stmt, err := tx.PreparexContext(ctx,
		tx.Rebind(`INSERT INTO session_values (session_id, athlete_id, field, value) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()
	for _, field := range schema.Fields() {
		var value sql.NullFloat64
		if v, ok := rec.Value(field); ok {
			value = sql.NullFloat64{Float64: v, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, sessionID, athleteID, field, value); err != nil {
			return fmt.Errorf("failed to insert record field %s: %w", field, err)
		}
	}
	return nil
}

// GetSession implements Store.
func (s *SQLStore) GetSession(ctx context.Context, id string) (sess model.Session, err error) {
	defer func(start time.Time) { observe(s.backend, "get_session", start, err) }(time.Now())
	var row sessionRow
	err = s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT id, name, created_at FROM test_sessions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	var roster []rosterRow
	if err := s.db.SelectContext(ctx, &roster,
		s.db.Rebind(`SELECT session_id, athlete_id FROM session_roster WHERE session_id = ? ORDER BY seq`), id); err != nil {
		return model.Session{}, fmt.Errorf("failed to load roster: %w", err)
	}
	var values []valueRow
	if err := s.db.SelectContext(ctx, &values,
		s.db.Rebind(`SELECT session_id, athlete_id, field, value FROM session_values WHERE session_id = ?`), id); err != nil {
		return model.Session{}, fmt.Errorf("failed to load records: %w", err)
	}
	sessions, err := assembleSessions([]sessionRow{row}, roster, values)
	if err != nil {
		return model.Session{}, err
	}
	return sessions[0], nil
}

// ListSessions implements Store.
func (s *SQLStore) ListSessions(ctx context.Context) (out []model.Session, err error) {
	defer func(start time.Time) { observe(s.backend, "list_sessions", start, err) }(time.Now())
	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, created_at FROM test_sessions ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	var roster []rosterRow
	if err := s.db.SelectContext(ctx, &roster, `SELECT session_id, athlete_id FROM session_roster ORDER BY session_id, seq`); err != nil {
		return nil, fmt.Errorf("failed to load rosters: %w", err)
	}
	var values []valueRow
	if err := s.db.SelectContext(ctx, &values, `SELECT session_id, athlete_id, field, value FROM session_values`); err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	return assembleSessions(rows, roster, values)
}

func assembleSessions(rows []sessionRow, roster []rosterRow, values []valueRow) ([]model.Session, error) {
	out := make([]model.Session, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		created, err := parseTime(row.CreatedAt)
		if err != nil {
			return nil, err
		}
		index[row.ID] = len(out)
		out = append(out, model.Session{
			ID:        row.ID,
			Name:      row.Name,
			CreatedAt: created,
			Athletes:  []string{},
			Tests:     make(map[string]schema.Record),
		})
	}
	for _, r := range roster {
		i, ok := index[r.SessionID]
		if !ok {
			continue
		}
		out[i].Athletes = append(out[i].Athletes, r.AthleteID)
		if _, ok := out[i].Tests[r.AthleteID]; !ok {
			out[i].Tests[r.AthleteID] = schema.NewRecord()
		}
	}
	for _, v := range values {
		i, ok := index[v.SessionID]
		if !ok || !v.Value.Valid {
			continue
		}
		if _, known := schema.Lookup(v.Field); !known {
			continue
		}
		rec, ok := out[i].Tests[v.AthleteID]
		if !ok {
			continue
		}
		if err := rec.Set(v.Field, &v.Value.Float64); err != nil {
			return nil, err
		}
		out[i].Tests[v.AthleteID] = rec
	}
	return out, nil
}

// UpdateRoster implements Store.
func (s *SQLStore) UpdateRoster(ctx context.Context, sessionID string, athleteIDs []string) (added []string, err error) {
	defer func(start time.Time) { observe(s.backend, "update_roster", start, err) }(time.Now())
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		// touching the session row first serializes concurrent roster growth
		if err := touchSession(ctx, tx, sessionID, s.opts.now()); err != nil {
			return err
		}
		var current []string
		if err := tx.SelectContext(ctx, &current,
			tx.Rebind(`SELECT athlete_id FROM session_roster WHERE session_id = ? ORDER BY seq`), sessionID); err != nil {
			return fmt.Errorf("failed to load roster: %w", err)
		}
		sess := model.Session{ID: sessionID, Athletes: current, Tests: make(map[string]schema.Record)}
		for _, a := range current {
			sess.Tests[a] = schema.Record{}
		}
		added = sess.AddAthletes(athleteIDs)
		for i, athleteID := range added {
			if err := insertRoster(ctx, tx, sessionID, len(current)+i, athleteID); err != nil {
				return err
			}
			if err := insertRecord(ctx, tx, sessionID, athleteID, schema.NewRecord()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func touchSession(ctx context.Context, tx *sqlx.Tx, sessionID string, now time.Time) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE test_sessions SET updated_at = ? WHERE id = ?`), formatTime(now), sessionID)
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	return nil
}

// UpdateAthleteRecord implements Store.
func (s *SQLStore) UpdateAthleteRecord(ctx context.Context, sessionID, athleteID string, p schema.Patch) (rec schema.Record, err error) {
	defer func(start time.Time) { observe(s.backend, "update_record", start, err) }(time.Now())
	if err := p.Validate(); err != nil {
		return schema.Record{}, err
	}
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM test_sessions WHERE id = ?`), sessionID); err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
		}
		if err := tx.GetContext(ctx, &n,
			tx.Rebind(`SELECT COUNT(*) FROM session_roster WHERE session_id = ? AND athlete_id = ?`), sessionID, athleteID); err != nil {
			return fmt.Errorf("failed to check roster: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("athlete %q in session %q: %w", athleteID, sessionID, ErrAthleteNotInSession)
		}
		for _, field := range p.Fields() {
			var value sql.NullFloat64
			if v := p[field]; v != nil {
				value = sql.NullFloat64{Float64: *v, Valid: true}
			}
			if err := upsertValue(ctx, tx, sessionID, athleteID, field, value); err != nil {
				return err
			}
		}
		var rows []valueRow
		if err := tx.SelectContext(ctx, &rows,
			tx.Rebind(`SELECT session_id, athlete_id, field, value FROM session_values WHERE session_id = ? AND athlete_id = ?`),
			sessionID, athleteID); err != nil {
			return fmt.Errorf("failed to reload record: %w", err)
		}
		rec = schema.NewRecord()
		for _, r := range rows {
			if !r.Value.Valid {
				continue
			}
			if _, known := schema.Lookup(r.Field); !known {
				continue
			}
			if err := rec.Set(r.Field, &r.Value.Float64); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return schema.Record{}, err
	}
	return rec, nil
}

func upsertValue(ctx context.Context, tx *sqlx.Tx, sessionID, athleteID, field string, value sql.NullFloat64) error {
	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE session_values SET value = ? WHERE session_id = ? AND athlete_id = ? AND field = ?`),
		value, sessionID, athleteID, field)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", field, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", field, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO session_values (session_id, athlete_id, field, value) VALUES (?, ?, ?, ?)`),
		sessionID, athleteID, field, value); err != nil {
		return fmt.Errorf("failed to insert %s: %w", field, err)
	}
	return nil
}

// CreateAthlete implements Store.
func (s *SQLStore) CreateAthlete(ctx context.Context, a model.Athlete) (id string, err error) {
	defer func(start time.Time) { observe(s.backend, "create_athlete", start, err) }(time.Now())
	if a.ID == "" {
		a.ID = s.opts.newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.opts.now()
	}
	row := toAthleteRow(a)
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM athletes WHERE id = ?`), a.ID); err != nil {
			return fmt.Errorf("failed to check athlete: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("athlete %q: %w", a.ID, ErrAlreadyExists)
		}
		_, err := tx.NamedExecContext(ctx, `INSERT INTO athletes
			(id, first_name, last_name, birthdate, email, instagram, sport, team, playing_position, jersey_number, club, league, created_at)
			VALUES (:id, :first_name, :last_name, :birthdate, :email, :instagram, :sport, :team, :playing_position, :jersey_number, :club, :league, :created_at)`,
			row)
		if err != nil {
			return fmt.Errorf("failed to insert athlete: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

const athleteColumns = `id, first_name, last_name, birthdate, email, instagram, sport, team, playing_position, jersey_number, club, league, created_at`

// GetAthlete implements Store.
func (s *SQLStore) GetAthlete(ctx context.Context, id string) (a model.Athlete, err error) {
	defer func(start time.Time) { observe(s.backend, "get_athlete", start, err) }(time.Now())
	var row athleteRow
	err = s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+athleteColumns+` FROM athletes WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Athlete{}, fmt.Errorf("athlete %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Athlete{}, fmt.Errorf("failed to load athlete: %w", err)
	}
	return row.toModel()
}

// ListAthletes implements Store.
func (s *SQLStore) ListAthletes(ctx context.Context) (out []model.Athlete, err error) {
	defer func(start time.Time) { observe(s.backend, "list_athletes", start, err) }(time.Now())
	var rows []athleteRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+athleteColumns+` FROM athletes ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("failed to list athletes: %w", err)
	}
	out = make([]model.Athlete, 0, len(rows))
	for _, row := range rows {
		a, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Stats implements Store.
func (s *SQLStore) Stats(ctx context.Context) (types.Stats, error) {
	var st types.Stats
	counts := []struct {
		dst   *int
		query string
	}{
		{&st.Sessions, `SELECT COUNT(*) FROM test_sessions`},
		{&st.Athletes, `SELECT COUNT(*) FROM athletes`},
		{&st.RosterEntries, `SELECT COUNT(*) FROM session_roster`},
		{&st.MeasuredFields, `SELECT COUNT(*) FROM session_values WHERE value IS NOT NULL`},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, c.query); err != nil {
			return types.Stats{}, fmt.Errorf("failed to count: %w", err)
		}
	}
	return st, nil
}

func toAthleteRow(a model.Athlete) athleteRow {
	row := athleteRow{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Birthdate: a.Birthdate,
		Email:     a.Email,
		Instagram: a.Instagram,
		Sport:     a.Sport,
		Team:      a.Team,
		Position:  a.Position,
		Club:      a.Club,
		League:    a.League,
		CreatedAt: formatTime(a.CreatedAt),
	}
	if a.JerseyNumber != nil {
		row.JerseyNumber = sql.NullInt64{Int64: int64(*a.JerseyNumber), Valid: true}
	}
	return row
}

func (r athleteRow) toModel() (model.Athlete, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return model.Athlete{}, err
	}
	a := model.Athlete{
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Birthdate: r.Birthdate,
		Email:     r.Email,
		Instagram: r.Instagram,
		Sport:     r.Sport,
		Team:      r.Team,
		Position:  r.Position,
		Club:      r.Club,
		League:    r.League,
		CreatedAt: created,
	}
	if r.JerseyNumber.Valid {
		n := int(r.JerseyNumber.Int64)
		a.JerseyNumber = &n
	}
	return a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t, nil
}
