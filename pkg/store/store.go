package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is the single source of truth for pipeline/job/step state. All
// multi-row operations are transactional. The Set*Status methods and
// RecordError are blind updates that overwrite whatever status a row
// holds, Cancelled included; keeping Cancelled sticky is done by the
// Engine, which re-reads status before each transition.
type Store interface {
	InitSchema(ctx context.Context) error

	InsertPipeline(ctx context.Context, sub *Submission) (*PipelineStatus, error)
	GetPipeline(ctx context.Context, id uint32) (*PipelineStatus, error)
	GetSubmissionFiles(ctx context.Context, id uint32) (map[string][]byte, error)
	ListPipelines(ctx context.Context) ([]uint32, error)
	SetPipelineStatus(ctx context.Context, id uint32, status ExecutionStatus) error
	CancelPipeline(ctx context.Context, id uint32) error
	DeletePipeline(ctx context.Context, id uint32) error

	GetJob(ctx context.Context, id uint32) (*JobStatus, error)
	ListJobs(ctx context.Context) ([]uint32, error)
	SetJobStatus(ctx context.Context, id uint32, status ExecutionStatus) error
	CancelJob(ctx context.Context, id uint32) error

	SetStepStatus(ctx context.Context, id uint32, status ExecutionStatus) error
	SetStepLog(ctx context.Context, id uint32, log []byte) error
	GetStepLog(ctx context.Context, id uint32) ([]byte, error)
	IsStepCancelled(ctx context.Context, id uint32) (bool, error)

	PutObject(ctx context.Context, namespace string, key, value []byte) error
	GetObject(ctx context.Context, namespace string, key []byte) ([]byte, error)

	RecordError(ctx context.Context, pipelineID uint32, message string) error

	Close() error
}

// SQLiteStore implements Store on top of database/sql using the
// pure-Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dsn (a file path, or ":memory:") and ensures the
// schema exists.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, Databasef("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer connection keeps transactions serialized
	s := &SQLiteStore{db: db}
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS pipelines (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	config TEXT NOT NULL,
	submission BLOB NOT NULL,
	status TEXT NOT NULL DEFAULT 'Pending'
);
CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pipeline_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	config TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'Pending',
	current_step INTEGER,
	FOREIGN KEY(pipeline_id) REFERENCES pipelines(id)
);
CREATE TABLE IF NOT EXISTS steps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id INTEGER NOT NULL,
	pipeline_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	call TEXT NOT NULL,
	args TEXT NOT NULL,
	io TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'Pending',
	log BLOB,
	output BLOB,
	FOREIGN KEY(job_id) REFERENCES jobs(id)
);
CREATE TABLE IF NOT EXISTS objects (
	namespace TEXT NOT NULL,
	key BLOB NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (namespace, key)
);
CREATE TABLE IF NOT EXISTS global_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pipeline_id INTEGER NOT NULL,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	error_message TEXT NOT NULL,
	FOREIGN KEY(pipeline_id) REFERENCES pipelines(id)
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return Databasef("init schema: %v", err)
	}
	return nil
}

// InsertPipeline persists the pipeline/job/step tree in one
// transaction. The pipeline row itself is written with status
// Pending; the returned in-memory status is Running, matching the
// original implementation's "accepted for execution" semantics.
func (s *SQLiteStore) InsertPipeline(ctx context.Context, sub *Submission) (*PipelineStatus, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, Databasef("begin tx: %v", err)
	}
	defer tx.Rollback()

	configJSON, err := json.Marshal(sub.Config)
	if err != nil {
		return nil, Internalf("marshal config: %v", err)
	}
	subJSON, err := json.Marshal(sub)
	if err != nil {
		return nil, Internalf("marshal submission: %v", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO pipelines (config, submission, status) VALUES (?, ?, 'Pending')`,
		string(configJSON), subJSON)
	if err != nil {
		return nil, Databasef("insert pipeline: %v", err)
	}
	pipelineID64, err := res.LastInsertId()
	if err != nil {
		return nil, Databasef("pipeline id: %v", err)
	}
	pipelineID := uint32(pipelineID64)

	jobIDs := make([]uint32, 0, len(sub.Config.Jobs))
	for _, job := range sub.Config.Jobs {
		jobJSON, err := json.Marshal(job)
		if err != nil {
			return nil, Internalf("marshal job: %v", err)
		}
		jres, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (pipeline_id, name, config, status) VALUES (?, ?, ?, 'Pending')`,
			pipelineID, job.Name, string(jobJSON))
		if err != nil {
			return nil, Databasef("insert job: %v", err)
		}
		jobID64, err := jres.LastInsertId()
		if err != nil {
			return nil, Databasef("job id: %v", err)
		}
		jobID := uint32(jobID64)
		jobIDs = append(jobIDs, jobID)

		for _, step := range job.Steps {
			argsJSON, err := json.Marshal(step.Args)
			if err != nil {
				return nil, Internalf("marshal args: %v", err)
			}
			ioJSON, err := json.Marshal(step.IO)
			if err != nil {
				return nil, Internalf("marshal io: %v", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO steps (job_id, pipeline_id, name, call, args, io, status) VALUES (?, ?, ?, ?, ?, ?, 'Pending')`,
				jobID, pipelineID, step.Name, step.Call, string(argsJSON), string(ioJSON)); err != nil {
				return nil, Databasef("insert step: %v", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, Databasef("commit: %v", err)
	}

	return &PipelineStatus{
		ID:     pipelineID,
		Config: sub.Config,
		Status: StatusRunning,
		Jobs:   jobIDs,
	}, nil
}

func (s *SQLiteStore) GetPipeline(ctx context.Context, id uint32) (*PipelineStatus, error) {
	var configJSON string
	var status string
	row := s.db.QueryRowContext(ctx, `SELECT config, status FROM pipelines WHERE id = ?`, id)
	if err := row.Scan(&configJSON, &status); err != nil {
		if err == sql.ErrNoRows {
			return nil, NotFoundf("pipeline %d", id)
		}
		return nil, Databasef("get pipeline: %v", err)
	}

	var cfg Config
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, Internalf("unmarshal config: %v", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM jobs WHERE pipeline_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, Databasef("list jobs: %v", err)
	}
	defer rows.Close()
	var jobIDs []uint32
	for rows.Next() {
		var jid uint32
		if err := rows.Scan(&jid); err != nil {
			return nil, Databasef("scan job id: %v", err)
		}
		jobIDs = append(jobIDs, jid)
	}

	return &PipelineStatus{
		ID:     id,
		Config: cfg,
		Status: ExecutionStatus(status),
		Jobs:   jobIDs,
	}, nil
}

// GetSubmissionFiles returns the file bundle originally submitted with
// pipeline id, keyed by each project's declared binary path.
func (s *SQLiteStore) GetSubmissionFiles(ctx context.Context, id uint32) (map[string][]byte, error) {
	var blob []byte
	row := s.db.QueryRowContext(ctx, `SELECT submission FROM pipelines WHERE id = ?`, id)
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, NotFoundf("pipeline %d", id)
		}
		return nil, Databasef("get submission: %v", err)
	}
	var sub Submission
	if err := json.Unmarshal(blob, &sub); err != nil {
		return nil, Internalf("unmarshal submission: %v", err)
	}
	return sub.Files, nil
}

func (s *SQLiteStore) ListPipelines(ctx context.Context) ([]uint32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM pipelines ORDER BY id ASC`)
	if err != nil {
		return nil, Databasef("list pipelines: %v", err)
	}
	defer rows.Close()
	var ids []uint32
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, Databasef("scan pipeline id: %v", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *SQLiteStore) SetPipelineStatus(ctx context.Context, id uint32, status ExecutionStatus) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE pipelines SET status = ? WHERE id = ?`, string(status), id); err != nil {
		return Databasef("set pipeline status: %v", err)
	}
	return nil
}

func (s *SQLiteStore) CancelPipeline(ctx context.Context, id uint32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Databasef("begin tx: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE pipelines SET status = 'Cancelled' WHERE id = ?`, id); err != nil {
		return Databasef("cancel pipeline: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status = 'Cancelled' WHERE pipeline_id = ?`, id); err != nil {
		return Databasef("cancel pipeline jobs: %v", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE steps SET status = 'Cancelled' WHERE job_id IN (SELECT id FROM jobs WHERE pipeline_id = ?)`, id); err != nil {
		return Databasef("cancel pipeline steps: %v", err)
	}
	if err := tx.Commit(); err != nil {
		return Databasef("commit: %v", err)
	}
	return nil
}

func (s *SQLiteStore) DeletePipeline(ctx context.Context, id uint32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Databasef("begin tx: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM steps WHERE job_id IN (SELECT id FROM jobs WHERE pipeline_id = ?)`, id); err != nil {
		return Databasef("delete steps: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE pipeline_id = ?`, id); err != nil {
		return Databasef("delete jobs: %v", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM pipelines WHERE id = ?`, id)
	if err != nil {
		return Databasef("delete pipeline: %v", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFoundf("pipeline %d", id)
	}
	if err := tx.Commit(); err != nil {
		return Databasef("commit: %v", err)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id uint32) (*JobStatus, error) {
	var pipelineID uint32
	var configJSON, status string
	var currentStep sql.NullInt64
	row := s.db.QueryRowContext(ctx,
		`SELECT pipeline_id, config, status, current_step FROM jobs WHERE id = ?`, id)
	if err := row.Scan(&pipelineID, &configJSON, &status, &currentStep); err != nil {
		if err == sql.ErrNoRows {
			return nil, NotFoundf("job %d", id)
		}
		return nil, Databasef("get job: %v", err)
	}

	var cfg Job
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, Internalf("unmarshal job config: %v", err)
	}

	steps, err := s.listSteps(ctx, id)
	if err != nil {
		return nil, err
	}

	js := &JobStatus{
		ID:         id,
		PipelineID: pipelineID,
		Config:     cfg,
		Status:     ExecutionStatus(status),
		Steps:      steps,
	}
	if currentStep.Valid {
		v := uint32(currentStep.Int64)
		js.CurrentStep = &v
	}
	return js, nil
}

func (s *SQLiteStore) listSteps(ctx context.Context, jobID uint32) ([]StepStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pipeline_id, name, call, args, io, status, log, output FROM steps WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, Databasef("list steps: %v", err)
	}
	defer rows.Close()

	var steps []StepStatus
	for rows.Next() {
		var st StepStatus
		var name, call, argsJSON, ioJSON, status string
		var log, output []byte
		if err := rows.Scan(&st.ID, &st.PipelineID, &name, &call, &argsJSON, &ioJSON, &status, &log, &output); err != nil {
			return nil, Databasef("scan step: %v", err)
		}
		var args map[string]ArgValue
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, Internalf("unmarshal step args: %v", err)
		}
		var io map[string]string
		if err := json.Unmarshal([]byte(ioJSON), &io); err != nil {
			return nil, Internalf("unmarshal step io: %v", err)
		}
		st.JobID = jobID
		st.Config = Step{Name: name, Call: call, Args: args, IO: io}
		st.Status = ExecutionStatus(status)
		st.Log = log
		st.Output = output
		steps = append(steps, st)
	}
	return steps, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context) ([]uint32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM jobs ORDER BY id ASC`)
	if err != nil {
		return nil, Databasef("list jobs: %v", err)
	}
	defer rows.Close()
	var ids []uint32
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, Databasef("scan job id: %v", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *SQLiteStore) SetJobStatus(ctx context.Context, id uint32, status ExecutionStatus) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE id = ?`, string(status), id); err != nil {
		return Databasef("set job status: %v", err)
	}
	return nil
}

func (s *SQLiteStore) CancelJob(ctx context.Context, id uint32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Databasef("begin tx: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status = 'Cancelled' WHERE id = ?`, id); err != nil {
		return Databasef("cancel job: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE steps SET status = 'Cancelled' WHERE job_id = ?`, id); err != nil {
		return Databasef("cancel job steps: %v", err)
	}
	if err := tx.Commit(); err != nil {
		return Databasef("commit: %v", err)
	}
	return nil
}

func (s *SQLiteStore) SetStepStatus(ctx context.Context, id uint32, status ExecutionStatus) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE steps SET status = ? WHERE id = ?`, string(status), id); err != nil {
		return Databasef("set step status: %v", err)
	}
	return nil
}

func (s *SQLiteStore) SetStepLog(ctx context.Context, id uint32, log []byte) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE steps SET log = ? WHERE id = ?`, log, id); err != nil {
		return Databasef("set step log: %v", err)
	}
	return nil
}

func (s *SQLiteStore) GetStepLog(ctx context.Context, id uint32) ([]byte, error) {
	var log []byte
	row := s.db.QueryRowContext(ctx, `SELECT log FROM steps WHERE id = ?`, id)
	if err := row.Scan(&log); err != nil {
		if err == sql.ErrNoRows {
			return nil, NotFoundf("step %d", id)
		}
		return nil, Databasef("get step log: %v", err)
	}
	return log, nil
}

// IsStepCancelled reports whether the step, its job, or its pipeline
// has been marked Cancelled.
func (s *SQLiteStore) IsStepCancelled(ctx context.Context, id uint32) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			steps.status = 'Cancelled'
			OR jobs.status = 'Cancelled'
			OR pipelines.status = 'Cancelled'
		FROM steps
		JOIN jobs ON jobs.id = steps.job_id
		JOIN pipelines ON pipelines.id = steps.pipeline_id
		WHERE steps.id = ?`, id)
	var cancelled bool
	if err := row.Scan(&cancelled); err != nil {
		if err == sql.ErrNoRows {
			return false, NotFoundf("step %d", id)
		}
		return false, Databasef("is step cancelled: %v", err)
	}
	return cancelled, nil
}

func (s *SQLiteStore) PutObject(ctx context.Context, namespace string, key, value []byte) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO objects (namespace, key, value) VALUES (?, ?, ?)`,
		namespace, key, value); err != nil {
		return Databasef("put object: %v", err)
	}
	return nil
}

func (s *SQLiteStore) GetObject(ctx context.Context, namespace string, key []byte) ([]byte, error) {
	var value []byte
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM objects WHERE namespace = ? AND key = ?`, namespace, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, NotFoundf("object %s/%x", namespace, key)
		}
		return nil, Databasef("get object: %v", err)
	}
	return value, nil
}

// RecordError sets the pipeline to Failed and appends a global-error
// row, in one transaction. If the transaction itself fails, the error
// is still surfaced to the caller, which is expected to log it as a
// last resort (mirrors the original's backup eprintln on store failure).
func (s *SQLiteStore) RecordError(ctx context.Context, pipelineID uint32, message string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Databasef("begin tx: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE pipelines SET status = 'Failed' WHERE id = ?`, pipelineID); err != nil {
		return Databasef("record error status: %v", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO global_errors (pipeline_id, error_message) VALUES (?, ?)`, pipelineID, message); err != nil {
		return Databasef("record error row: %v", err)
	}
	if err := tx.Commit(); err != nil {
		return Databasef("commit: %v", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
var _ fmt.Stringer = ExecutionStatus("")

func (s ExecutionStatus) String() string { return string(s) }
