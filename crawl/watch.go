package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/webhook"
)

// StartWatch re-peels a URL on an interval and records content changes.
// The loop runs until the job is cancelled or expires.
func (m *Manager) StartWatch(req *models.WatchRequest) (*models.JobResponse, error) {
	if err := models.ValidateURL(req.URL); err != nil {
		return nil, err
	}
	interval := defaultWatchInterval
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}

	job := m.newJob(models.JobKindWatch)
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel

	go m.runWatch(ctx, job, interval, req)

	return &models.JobResponse{ID: job.ID, Status: models.JobStatusProcessing}, nil
}

func (m *Manager) runWatch(ctx context.Context, job *Job, interval time.Duration, req *models.WatchRequest) {
	// Baseline peel; later iterations bypass the cache so the pipeline
	// compares against this result instead of replaying it.
	peelReq := req.Options
	peelReq.URL = req.URL
	if _, err := m.peeler.Peel(ctx, &peelReq); err != nil {
		slog.Warn("watch baseline failed", "job", job.ID, "url", req.URL, "error", err)
		job.finish(models.JobStatusFailed, 0)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			snap := job.snapshot()
			job.finish(models.JobStatusCompleted, snap.Completed)
			logJobDone(job)
			return
		case <-ticker.C:
			m.watchOnce(ctx, job, req)
		}
	}
}

func (m *Manager) watchOnce(ctx context.Context, job *Job, req *models.WatchRequest) {
	peelReq := req.Options
	peelReq.URL = req.URL
	peelReq.NoCache = true

	res, err := m.peeler.Peel(ctx, &peelReq)
	if err != nil {
		slog.Warn("watch check failed", "job", job.ID, "url", req.URL, "error", err)
		return
	}
	if res.ChangeTracking == nil || res.ChangeTracking.Change == "same" {
		return
	}

	job.mu.Lock()
	job.changes = append(job.changes, res.ChangeTracking)
	job.results = append(job.results, res)
	job.completed = len(job.results)
	job.mu.Unlock()

	slog.Info("watch detected change",
		"job", job.ID, "url", req.URL,
		"change", res.ChangeTracking.Change, "distance", res.ChangeTracking.Distance,
	)
	if req.WebhookURL != "" {
		webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
			Type:      webhook.EventWatchChanged,
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data: map[string]any{
				"url":    req.URL,
				"change": res.ChangeTracking,
			},
		})
	}
}
