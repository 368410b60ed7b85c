package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/night-light/internal/db"
	"github.com/sells-group/night-light/internal/model"
)

// PostgresStore implements Store using pgxpool. Derived tables are written
// with COPY.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	params     JSONB NOT NULL,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_stages (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	input       INTEGER NOT NULL DEFAULT 0,
	output      INTEGER NOT NULL DEFAULT 0,
	skipped     JSONB,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS crosswalks (
	crosswalk_id BIGINT PRIMARY KEY,
	geom         BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS crosswalk_edges (
	crosswalk_id      BIGINT NOT NULL,
	edge_id           INTEGER NOT NULL,
	geom              BYTEA NOT NULL,
	is_vehicle_edge   BOOLEAN NOT NULL,
	street_segment_id BIGINT NOT NULL DEFAULT 0,
	is_oneway         BOOLEAN NOT NULL,
	PRIMARY KEY (crosswalk_id, edge_id)
);

CREATE TABLE IF NOT EXISTS crossing_centers (
	crosswalk_id      BIGINT NOT NULL,
	center_id         TEXT NOT NULL,
	geom              BYTEA NOT NULL,
	ped_edge_id       INTEGER NOT NULL,
	ped_edge          BYTEA NOT NULL,
	street_center     BYTEA NOT NULL,
	street_segment_id BIGINT NOT NULL,
	is_oneway         BOOLEAN NOT NULL,
	direction_defined BOOLEAN NOT NULL,
	from_geom         BYTEA,
	to_geom           BYTEA,
	PRIMARY KEY (crosswalk_id, center_id)
);

CREATE TABLE IF NOT EXISTS proximity_links (
	crosswalk_id   BIGINT NOT NULL,
	center_id      TEXT NOT NULL,
	streetlight_id BIGINT NOT NULL,
	distance_m     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (crosswalk_id, center_id, streetlight_id)
);

CREATE TABLE IF NOT EXISTS side_classifications (
	crosswalk_id   BIGINT NOT NULL,
	center_id      TEXT NOT NULL,
	streetlight_id BIGINT NOT NULL,
	geom           BYTEA NOT NULL,
	side           TEXT NOT NULL,
	distance_m     DOUBLE PRECISION NOT NULL,
	angle          DOUBLE PRECISION NOT NULL,
	abs_sin        DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (crosswalk_id, center_id, streetlight_id)
);

CREATE TABLE IF NOT EXISTS contrast_results (
	crosswalk_id      BIGINT NOT NULL,
	center_id         TEXT NOT NULL,
	geom              BYTEA NOT NULL,
	is_oneway         BOOLEAN NOT NULL,
	direction_defined BOOLEAN NOT NULL,
	from_geom         BYTEA,
	to_geom           BYTEA,
	to_heuristic      DOUBLE PRECISION NOT NULL,
	from_heuristic    DOUBLE PRECISION NOT NULL,
	light_heuristic   DOUBLE PRECISION NOT NULL,
	contrast          TEXT NOT NULL,
	light_count       INTEGER NOT NULL,
	PRIMARY KEY (crosswalk_id, center_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
CREATE INDEX IF NOT EXISTS idx_contrast_results_contrast ON contrast_results(contrast);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, params, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(model.RunStatusRunning), paramsJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) RecordStage(ctx context.Context, runID string, stage model.StageResult) error {
	skipped, err := json.Marshal(stage.Skipped)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal skipped")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_stages (id, run_id, seq, name, status, input, output, skipped, duration_ms, error, created_at)
		 VALUES ($1, $2, (SELECT COUNT(*) FROM run_stages WHERE run_id = $2), $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New().String(), runID, stage.Name, string(stage.Status), stage.Input, stage.Output,
		skipped, stage.Duration, optional(stage.Error), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert stage %s for run %s", stage.Name, runID)
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(status), optional(errMsg), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

const runColumns = `id, status, params, error, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := s.scanRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return s.withStages(ctx, r)
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*model.Run, error) {
	r, err := s.scanRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT 1`))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest run")
	}
	return s.withStages(ctx, r)
}

func (s *PostgresStore) scanRun(row scannable) (*model.Run, error) {
	var (
		r          model.Run
		paramsJSON []byte
		errMsg     *string
	)
	err := row.Scan(&r.ID, &r.Status, &paramsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal params")
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}

func (s *PostgresStore) withStages(ctx context.Context, r *model.Run) (*model.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, status, input, output, skipped, duration_ms, error FROM run_stages WHERE run_id = $1 ORDER BY seq`,
		r.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list stages of run %s", r.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			st      model.StageResult
			skipped []byte
			errMsg  *string
		)
		if err := rows.Scan(&st.Name, &st.Status, &st.Input, &st.Output, &skipped, &st.Duration, &errMsg); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage")
		}
		if len(skipped) > 0 {
			if err := json.Unmarshal(skipped, &st.Skipped); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal skipped")
			}
		}
		if errMsg != nil {
			st.Error = *errMsg
		}
		r.Stages = append(r.Stages, st)
	}
	return r, eris.Wrap(rows.Err(), "postgres: list stages iterate")
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ReplaceCrosswalks(ctx context.Context, crosswalks []model.Crosswalk) error {
	rows, err := buildRows(crosswalks, crosswalkRow)
	if err != nil {
		return err
	}
	return s.replace(ctx, crosswalksTable, rows)
}

func (s *PostgresStore) ReplaceEdges(ctx context.Context, edges []model.CrosswalkEdge) error {
	rows, err := buildRows(edges, edgeRow)
	if err != nil {
		return err
	}
	return s.replace(ctx, edgesTable, rows)
}

func (s *PostgresStore) ReplaceCenters(ctx context.Context, centers []model.CrossingCenter) error {
	rows, err := buildRows(centers, centerRow)
	if err != nil {
		return err
	}
	return s.replace(ctx, centersTable, rows)
}

func (s *PostgresStore) ReplaceLinks(ctx context.Context, links []model.ProximityLink) error {
	return s.replace(ctx, linksTable, linkRows(links))
}

func (s *PostgresStore) ReplaceClassifications(ctx context.Context, sides []model.SideClassification) error {
	rows, err := buildRows(sides, classificationRow)
	if err != nil {
		return err
	}
	return s.replace(ctx, classificationsTable, rows)
}

func (s *PostgresStore) ReplaceResults(ctx context.Context, results []model.ContrastResult) error {
	rows, err := buildRows(results, resultRow)
	if err != nil {
		return err
	}
	return s.replace(ctx, resultsTable, rows)
}

func (s *PostgresStore) replace(ctx context.Context, t table, rows [][]any) error {
	_, err := db.ReplaceTable(ctx, s.pool, db.ReplaceConfig{Table: t.name, Columns: t.columns}, rows)
	return eris.Wrapf(err, "postgres: replace %s", t.name)
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.ContrastResult, error) {
	query := `SELECT ` + db.QuoteAndJoin(resultsTable.columns) + ` FROM contrast_results WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Contrast != "" {
		query += fmt.Sprintf(` AND contrast = $%d`, argIdx)
		args = append(args, filter.Contrast)
		argIdx++
	}
	if filter.CrosswalkID != 0 {
		query += fmt.Sprintf(` AND crosswalk_id = $%d`, argIdx)
		args = append(args, filter.CrosswalkID)
		argIdx++
	}
	query += ` ORDER BY crosswalk_id, center_id`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []model.ContrastResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

func (s *PostgresStore) GetCenterResults(ctx context.Context, crosswalkID int64) ([]model.ContrastResult, error) {
	results, err := s.ListResults(ctx, ResultFilter{CrosswalkID: crosswalkID})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "crosswalk %d", crosswalkID)
	}
	return results, nil
}

func (s *PostgresStore) ListClassifications(ctx context.Context, crosswalkID int64) ([]model.SideClassification, error) {
	query := `SELECT ` + db.QuoteAndJoin(classificationsTable.columns) + ` FROM side_classifications`
	var args []any
	if crosswalkID != 0 {
		query += ` WHERE crosswalk_id = $1`
		args = append(args, crosswalkID)
	}
	query += ` ORDER BY crosswalk_id, center_id, streetlight_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list classifications")
	}
	defer rows.Close()

	var out []model.SideClassification
	for rows.Next() {
		sc, err := scanClassification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list classifications iterate")
}

// optional maps "" to NULL.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
