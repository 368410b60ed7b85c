package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/night-light/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer; WAL readers are not blocked by it.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	params     TEXT NOT NULL,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_stages (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	input       INTEGER NOT NULL DEFAULT 0,
	output      INTEGER NOT NULL DEFAULT 0,
	skipped     TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS crosswalks (
	crosswalk_id INTEGER PRIMARY KEY,
	geom         BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS crosswalk_edges (
	crosswalk_id      INTEGER NOT NULL,
	edge_id           INTEGER NOT NULL,
	geom              BLOB NOT NULL,
	is_vehicle_edge   BOOLEAN NOT NULL,
	street_segment_id INTEGER NOT NULL DEFAULT 0,
	is_oneway         BOOLEAN NOT NULL,
	PRIMARY KEY (crosswalk_id, edge_id)
);

CREATE TABLE IF NOT EXISTS crossing_centers (
	crosswalk_id      INTEGER NOT NULL,
	center_id         TEXT NOT NULL,
	geom              BLOB NOT NULL,
	ped_edge_id       INTEGER NOT NULL,
	ped_edge          BLOB NOT NULL,
	street_center     BLOB NOT NULL,
	street_segment_id INTEGER NOT NULL,
	is_oneway         BOOLEAN NOT NULL,
	direction_defined BOOLEAN NOT NULL,
	from_geom         BLOB,
	to_geom           BLOB,
	PRIMARY KEY (crosswalk_id, center_id)
);

CREATE TABLE IF NOT EXISTS proximity_links (
	crosswalk_id   INTEGER NOT NULL,
	center_id      TEXT NOT NULL,
	streetlight_id INTEGER NOT NULL,
	distance_m     REAL NOT NULL,
	PRIMARY KEY (crosswalk_id, center_id, streetlight_id)
);

CREATE TABLE IF NOT EXISTS side_classifications (
	crosswalk_id   INTEGER NOT NULL,
	center_id      TEXT NOT NULL,
	streetlight_id INTEGER NOT NULL,
	geom           BLOB NOT NULL,
	side           TEXT NOT NULL,
	distance_m     REAL NOT NULL,
	angle          REAL NOT NULL,
	abs_sin        REAL NOT NULL,
	PRIMARY KEY (crosswalk_id, center_id, streetlight_id)
);

CREATE TABLE IF NOT EXISTS contrast_results (
	crosswalk_id      INTEGER NOT NULL,
	center_id         TEXT NOT NULL,
	geom              BLOB NOT NULL,
	is_oneway         BOOLEAN NOT NULL,
	direction_defined BOOLEAN NOT NULL,
	from_geom         BLOB,
	to_geom           BLOB,
	to_heuristic      REAL NOT NULL,
	from_heuristic    REAL NOT NULL,
	light_heuristic   REAL NOT NULL,
	contrast          TEXT NOT NULL,
	light_count       INTEGER NOT NULL,
	PRIMARY KEY (crosswalk_id, center_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
CREATE INDEX IF NOT EXISTS idx_contrast_results_contrast ON contrast_results(contrast);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, params, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), string(paramsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) RecordStage(ctx context.Context, runID string, stage model.StageResult) error {
	skipped, err := json.Marshal(stage.Skipped)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal skipped")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_stages (id, run_id, seq, name, status, input, output, skipped, duration_ms, error, created_at)
		 VALUES (?, ?, (SELECT COUNT(*) FROM run_stages WHERE run_id = ?), ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, runID, stage.Name, string(stage.Status), stage.Input, stage.Output,
		string(skipped), stage.Duration, nullString(stage.Error), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert stage %s for run %s", stage.Name, runID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), nullString(errMsg), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, params, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	return s.withStages(ctx, r)
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, params, error, created_at, updated_at FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	return s.withStages(ctx, r)
}

func (s *SQLiteStore) withStages(ctx context.Context, r *model.Run) (*model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, status, input, output, skipped, duration_ms, error FROM run_stages WHERE run_id = ? ORDER BY seq`,
		r.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list stages of run %s", r.ID)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		r.Stages = append(r.Stages, st)
	}
	return r, eris.Wrap(rows.Err(), "sqlite: list stages iterate")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, params, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ReplaceCrosswalks(ctx context.Context, crosswalks []model.Crosswalk) error {
	rows, err := buildRows(crosswalks, crosswalkRow)
	if err != nil {
		return err
	}
	return s.replace(ctx, crosswalksTable, rows)
}

func (s *SQLiteStore) ReplaceEdges(ctx context.Context, edges []model.CrosswalkEdge) error {
	rows, err := buildRows(edges, edgeRow)
	if err != nil {
		return err
	}
	return s.replace(ctx, edgesTable, rows)
}

func (s *SQLiteStore) ReplaceCenters(ctx context.Context, centers []model.CrossingCenter) error {
	rows, err := buildRows(centers, centerRow)
	if err != nil {
		return err
	}
	return s.replace(ctx, centersTable, rows)
}

func (s *SQLiteStore) ReplaceLinks(ctx context.Context, links []model.ProximityLink) error {
	return s.replace(ctx, linksTable, linkRows(links))
}

func (s *SQLiteStore) ReplaceClassifications(ctx context.Context, sides []model.SideClassification) error {
	rows, err := buildRows(sides, classificationRow)
	if err != nil {
		return err
	}
	return s.replace(ctx, classificationsTable, rows)
}

func (s *SQLiteStore) ReplaceResults(ctx context.Context, results []model.ContrastResult) error {
	rows, err := buildRows(results, resultRow)
	if err != nil {
		return err
	}
	return s.replace(ctx, resultsTable, rows)
}

// replace clears t and inserts rows in one transaction.
func (s *SQLiteStore) replace(ctx context.Context, t table, rows [][]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin replace %s", t.name)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+t.name); err != nil {
		return eris.Wrapf(err, "sqlite: clear %s", t.name)
	}

	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO `+t.name+` (`+t.columnList()+`) VALUES (`+t.placeholders(false)+`)`)
		if err != nil {
			return eris.Wrapf(err, "sqlite: prepare insert %s", t.name)
		}
		defer func() { _ = stmt.Close() }()

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r...); err != nil {
				return eris.Wrapf(err, "sqlite: insert %s", t.name)
			}
		}
	}

	return eris.Wrapf(tx.Commit(), "sqlite: commit replace %s", t.name)
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.ContrastResult, error) {
	query := `SELECT ` + resultsTable.columnList() + ` FROM contrast_results WHERE 1=1`
	var args []any

	if filter.Contrast != "" {
		query += ` AND contrast = ?`
		args = append(args, filter.Contrast)
	}
	if filter.CrosswalkID != 0 {
		query += ` AND crosswalk_id = ?`
		args = append(args, filter.CrosswalkID)
	}
	query += ` ORDER BY crosswalk_id, center_id`

	if filter.Limit > 0 || filter.Offset > 0 {
		// SQLite only accepts OFFSET after LIMIT; -1 means no limit.
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer func() { _ = rows.Close() }()

	var out []model.ContrastResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

func (s *SQLiteStore) GetCenterResults(ctx context.Context, crosswalkID int64) ([]model.ContrastResult, error) {
	results, err := s.ListResults(ctx, ResultFilter{CrosswalkID: crosswalkID})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "crosswalk %d", crosswalkID)
	}
	return results, nil
}

func (s *SQLiteStore) ListClassifications(ctx context.Context, crosswalkID int64) ([]model.SideClassification, error) {
	query := `SELECT ` + classificationsTable.columnList() + ` FROM side_classifications`
	var args []any
	if crosswalkID != 0 {
		query += ` WHERE crosswalk_id = ?`
		args = append(args, crosswalkID)
	}
	query += ` ORDER BY crosswalk_id, center_id, streetlight_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list classifications")
	}
	defer func() { _ = rows.Close() }()

	var out []model.SideClassification
	for rows.Next() {
		sc, err := scanClassification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list classifications iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r          model.Run
		paramsJSON string
		errMsg     sql.NullString
	)

	err := row.Scan(&r.ID, &r.Status, &paramsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal params")
	}
	r.Error = errMsg.String
	return &r, nil
}

func scanStage(row scannable) (model.StageResult, error) {
	var (
		st      model.StageResult
		skipped sql.NullString
		errMsg  sql.NullString
	)
	if err := row.Scan(&st.Name, &st.Status, &st.Input, &st.Output, &skipped, &st.Duration, &errMsg); err != nil {
		return st, eris.Wrap(err, "sqlite: scan stage")
	}
	if skipped.Valid && skipped.String != "" && skipped.String != "null" {
		if err := json.Unmarshal([]byte(skipped.String), &st.Skipped); err != nil {
			return st, eris.Wrap(err, "sqlite: unmarshal skipped")
		}
	}
	st.Error = errMsg.String
	return st, nil
}
