package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelgen/internal/logging"
	"reelgen/internal/publish"
	"reelgen/internal/queue"
	"reelgen/internal/services"
	"reelgen/internal/stage"
)

func (m *Manager) processJob(ctx context.Context, job *queue.Job) error {
	stg, ok := m.stageByStart[job.Status]
	if !ok {
		m.logger.Warn("no stage configured for status", logging.String("status", string(job.Status)))
		m.waitForJobOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := services.WithJobID(ctx, job.ID)
	stageCtx = services.WithStage(stageCtx, stg.name)
	stageCtx = services.WithRequestID(stageCtx, requestID)
	stageLogger := logging.WithContext(stageCtx, m.logger)

	if err := m.transitionToProcessing(stageCtx, stg, job); err != nil {
		stageLogger.Error("failed to transition job to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}
	return m.executeStage(stageCtx, stageLogger, stg, job)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, job *queue.Job) error {
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("prompt", strings.TrimSpace(job.Prompt)),
	)

	if err := stg.handler.Prepare(ctx, job); err != nil {
		m.handleStageFailure(ctx, stg.name, job, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, job); err != nil {
		stageLogger.Error("failed to persist stage preparation", logging.Error(err))
		m.setLastError(err)
		return err
	}

	execErr := m.executeWithHeartbeat(ctx, stg, job)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, job, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if job.Status == stg.processingStatus || job.Status == "" {
		job.Status = stg.doneStatus
	}
	job.LastHeartbeat = nil
	if job.Status == queue.StatusCompleted {
		job.SetProgress("Completed", "Video ready", 100)
	}
	if err := m.store.Update(ctx, job); err != nil {
		stageLogger.Error("failed to persist stage result", logging.Error(err))
		m.setLastError(err)
		return err
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(job.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)

	if job.Status == queue.StatusCompleted {
		m.publishReceipt(ctx, stageLogger, job)
	}
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, stg pipelineStage, job *queue.Job) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	execErr := stg.handler.Execute(ctx, job)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) transitionToProcessing(ctx context.Context, stg pipelineStage, job *queue.Job) error {
	now := time.Now().UTC()
	job.Status = stg.processingStatus
	job.InitProgress(stageLabel(stg.processingStatus), stageLabel(stg.processingStatus)+" started")
	job.LastHeartbeat = &now
	return m.store.Update(ctx, job)
}

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, job *queue.Job, err error) {
	details := services.DetailsOf(err)
	job.SetFailed(details.Message)
	if updateErr := m.store.Update(ctx, job); updateErr != nil {
		m.logger.Error("failed to persist job failure",
			logging.Error(updateErr),
			logging.Int64(logging.FieldJobID, job.ID),
		)
	}
	m.logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failed"),
		logging.String(logging.FieldStage, stageName),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Bool("retryable", services.IsRetryable(err)),
		logging.Error(err),
	)
}

func (m *Manager) publishReceipt(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	audio, err := stageAudioDuration(job)
	if err != nil {
		audio = 0
	}
	receipt := publish.Receipt{
		JobID:           job.ID,
		Prompt:          job.Prompt,
		Fingerprint:     job.Fingerprint,
		OutputPath:      job.FinalFile,
		DurationSeconds: audio,
		PartialFailure:  job.PartialFailure(),
		CompletedAt:     time.Now().UTC(),
	}
	if err := m.publisher.Publish(ctx, receipt); err != nil {
		logger.Warn("failed to publish completion receipt", logging.Error(err))
	}
	raw, err := json.Marshal(receipt)
	if err != nil {
		logger.Warn("failed to encode completion receipt", logging.Error(err))
		return
	}
	job.ReceiptJSON = string(raw)
	if err := m.store.Update(ctx, job); err != nil {
		logger.Warn("failed to persist completion receipt", logging.Error(err))
	}
}

func stageLabel(status queue.Status) string {
	switch status {
	case queue.StatusScripting:
		return "Generating script"
	case queue.StatusSynthesizing:
		return "Synthesizing narration"
	case queue.StatusComposing:
		return "Composing captions and footage"
	case queue.StatusRendering:
		return "Rendering final video"
	default:
		return strings.ReplaceAll(string(status), "_", " ")
	}
}

// stageAudioDuration reads the narration duration off a finished job for
// receipt reporting.
func stageAudioDuration(job *queue.Job) (float64, error) {
	audio, err := stage.ParseAudio(job.AudioJSON)
	if err != nil {
		return 0, err
	}
	return audio.Duration, nil
}
