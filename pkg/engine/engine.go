// Package engine implements the Executor Engine: it drives one
// pipeline through its jobs and steps in declared order, in its own
// goroutine, enforcing cancel dominance and terminal stickiness.
package engine

import (
	"context"
	"time"

	"github.com/twizmwazin/pap/pkg/common/metrics"
	"github.com/twizmwazin/pap/pkg/registry"
	"github.com/twizmwazin/pap/pkg/runtime"
	"github.com/twizmwazin/pap/pkg/store"
	"go.uber.org/zap"
)

// Run drives pipelineID through its jobs and steps to a terminal
// state. Intended to be invoked as `go engine.Run(...)` by the Server
// Facade immediately after a successful InsertPipeline.
func Run(ctx context.Context, db store.Store, reg *registry.Registry, m *metrics.Collector, logger *zap.Logger, pipelineID uint32) {
	logger = logger.With(zap.Uint32("pipeline_id", pipelineID))
	start := time.Now()
	m.PipelinesInFlight.Inc()
	defer m.PipelinesInFlight.Dec()

	pipeline, err := db.GetPipeline(ctx, pipelineID)
	if err != nil {
		logger.Error("failed to read pipeline", zap.Error(err))
		recordFatal(ctx, db, logger, pipelineID, err)
		m.RecordPipelineFinished(string(store.StatusFailed), time.Since(start))
		return
	}
	if pipeline.Status == store.StatusCancelled {
		logger.Info("pipeline already cancelled before engine started")
		m.RecordPipelineFinished(string(store.StatusCancelled), time.Since(start))
		return
	}

	if err := db.SetPipelineStatus(ctx, pipelineID, store.StatusRunning); err != nil {
		logger.Error("failed to mark pipeline running", zap.Error(err))
		recordFatal(ctx, db, logger, pipelineID, err)
		m.RecordPipelineFinished(string(store.StatusFailed), time.Since(start))
		return
	}

	for _, jobID := range pipeline.Jobs {
		current, err := db.GetPipeline(ctx, pipelineID)
		if err != nil {
			logger.Error("failed to re-read pipeline status", zap.Error(err))
			recordFatal(ctx, db, logger, pipelineID, err)
			m.RecordPipelineFinished(string(store.StatusFailed), time.Since(start))
			return
		}
		if current.Status == store.StatusCancelled {
			logger.Info("pipeline cancelled before job started", zap.Uint32("job_id", jobID))
			m.RecordPipelineFinished(string(store.StatusCancelled), time.Since(start))
			return
		}

		if err := runJob(ctx, db, reg, m, logger, *pipeline, jobID); err != nil {
			// runJob already recorded the failure at the step/job/pipeline
			// level; a non-nil error here only means the engine should
			// stop driving further jobs.
			m.RecordPipelineFinished(string(store.StatusFailed), time.Since(start))
			return
		}
	}

	final, err := db.GetPipeline(ctx, pipelineID)
	if err != nil {
		logger.Error("failed to re-read pipeline before final transition", zap.Error(err))
		recordFatal(ctx, db, logger, pipelineID, err)
		m.RecordPipelineFinished(string(store.StatusFailed), time.Since(start))
		return
	}
	if final.Status != store.StatusCancelled {
		if err := db.SetPipelineStatus(ctx, pipelineID, store.StatusCompleted); err != nil {
			logger.Error("failed to mark pipeline completed", zap.Error(err))
			recordFatal(ctx, db, logger, pipelineID, err)
			m.RecordPipelineFinished(string(store.StatusFailed), time.Since(start))
			return
		}
		m.RecordPipelineFinished(string(store.StatusCompleted), time.Since(start))
	} else {
		m.RecordPipelineFinished(string(store.StatusCancelled), time.Since(start))
	}
}

// runJob drives one job's steps in order. A non-nil return means the
// job (and its owning pipeline) has already been marked Failed and the
// caller should stop driving subsequent jobs.
func runJob(ctx context.Context, db store.Store, reg *registry.Registry, m *metrics.Collector, logger *zap.Logger, pipeline store.PipelineStatus, jobID uint32) error {
	logger = logger.With(zap.Uint32("job_id", jobID))

	job, err := db.GetJob(ctx, jobID)
	if err != nil {
		logger.Error("failed to read job", zap.Error(err))
		fail(ctx, db, logger, pipeline.ID, jobID, 0, err)
		return err
	}
	if err := db.SetJobStatus(ctx, jobID, store.StatusRunning); err != nil {
		logger.Error("failed to mark job running", zap.Error(err))
		fail(ctx, db, logger, pipeline.ID, jobID, 0, err)
		return err
	}

	for _, step := range job.Steps {
		current, err := db.GetJob(ctx, jobID)
		if err != nil {
			logger.Error("failed to re-read job status", zap.Error(err))
			fail(ctx, db, logger, pipeline.ID, jobID, step.ID, err)
			return err
		}
		if current.Status == store.StatusCancelled {
			logger.Info("job cancelled, stopping step loop", zap.Uint32("step_id", step.ID))
			break
		}

		if err := runStep(ctx, db, reg, m, logger, pipeline, step); err != nil {
			fail(ctx, db, logger, pipeline.ID, jobID, step.ID, err)
			return err
		}
	}

	after, err := db.GetJob(ctx, jobID)
	if err != nil {
		logger.Error("failed to re-read job before final transition", zap.Error(err))
		fail(ctx, db, logger, pipeline.ID, jobID, 0, err)
		return err
	}
	if after.Status != store.StatusCancelled {
		if err := db.SetJobStatus(ctx, jobID, store.StatusCompleted); err != nil {
			logger.Error("failed to mark job completed", zap.Error(err))
			fail(ctx, db, logger, pipeline.ID, jobID, 0, err)
			return err
		}
	}
	return nil
}

// runStep executes a single step, always persisting its log
// afterward. A non-nil return means the step has failed; the caller is
// responsible for cascading the failure to job/pipeline.
func runStep(ctx context.Context, db store.Store, reg *registry.Registry, m *metrics.Collector, logger *zap.Logger, pipeline store.PipelineStatus, step store.StepStatus) error {
	logger = logger.With(zap.Uint32("step_id", step.ID), zap.String("call", step.Config.Call))

	if err := db.SetStepStatus(ctx, step.ID, store.StatusRunning); err != nil {
		return err
	}

	executor, ok := reg.Get(step.Config.Call)
	if !ok {
		err := store.Configurationf("step executor not found: %s", step.Config.Call)
		db.SetStepStatus(ctx, step.ID, store.StatusFailed)
		return err
	}

	files, err := db.GetSubmissionFiles(ctx, pipeline.ID)
	if err != nil {
		db.SetStepStatus(ctx, step.ID, store.StatusFailed)
		return err
	}

	rt := runtime.New(ctx, db, step, pipeline, files)
	start := time.Now()
	execErr := executor.Execute(rt)
	duration := time.Since(start)

	// Persist the step log regardless of outcome.
	if err := db.SetStepLog(ctx, step.ID, rt.TakeLog()); err != nil {
		logger.Error("failed to persist step log", zap.Error(err))
	}

	// A cancel that arrived while the step ran stays sticky: the step's
	// own outcome is not written over it and no failure is cascaded.
	if cancelled, err := db.IsStepCancelled(ctx, step.ID); err == nil && cancelled {
		logger.Info("step cancelled while running", zap.Duration("duration", duration))
		m.RecordStep(step.Config.Call, string(store.StatusCancelled), duration)
		return db.SetStepStatus(ctx, step.ID, store.StatusCancelled)
	}

	if execErr != nil {
		logger.Warn("step failed", zap.Error(execErr), zap.Duration("duration", duration))
		m.RecordStep(step.Config.Call, string(store.StatusFailed), duration)
		db.SetStepStatus(ctx, step.ID, store.StatusFailed)
		return execErr
	}

	logger.Debug("step completed", zap.Duration("duration", duration))
	m.RecordStep(step.Config.Call, string(store.StatusCompleted), duration)
	return db.SetStepStatus(ctx, step.ID, store.StatusCompleted)
}

// fail cascades a step/job failure up to the job and pipeline, and
// appends a global-error row, matching the original's
// step-Failed/job-Failed/pipeline-Failed/error-row sequence.
func fail(ctx context.Context, db store.Store, logger *zap.Logger, pipelineID, jobID, stepID uint32, cause error) {
	if stepID != 0 {
		db.SetStepStatus(ctx, stepID, store.StatusFailed)
	}
	db.SetJobStatus(ctx, jobID, store.StatusFailed)
	db.SetPipelineStatus(ctx, pipelineID, store.StatusFailed)
	if err := db.RecordError(ctx, pipelineID, cause.Error()); err != nil {
		logger.Error("failed to record error row (store write failed)", zap.Error(err), zap.String("original_cause", cause.Error()))
	}
}

// recordFatal handles a framework-level error (a Store failure outside
// any single step) by recording a global-error row directly.
func recordFatal(ctx context.Context, db store.Store, logger *zap.Logger, pipelineID uint32, cause error) {
	if err := db.RecordError(ctx, pipelineID, cause.Error()); err != nil {
		logger.Error("failed to record fatal error row", zap.Error(err), zap.String("original_cause", cause.Error()))
	}
}
