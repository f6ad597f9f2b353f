// Package crawl runs the async multi-page jobs: BFS crawls, batch
// peels, watch loops, URL mapping and deep fetches. Jobs live in
// memory and expire after an hour.
package crawl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webpeel/webpeel/models"
)

const (
	jobTTL          = 1 * time.Hour
	cleanupInterval = 5 * time.Minute

	defaultMaxDepth      = 3
	defaultMaxPages      = 100
	defaultScope         = "subdomain"
	defaultConcurrency   = 5
	defaultWatchInterval = 60 * time.Second
)

// Peeler is the single-URL pipeline the jobs fan out over.
type Peeler interface {
	Peel(ctx context.Context, req *models.PeelRequest) (*models.PeelResult, error)
}

// Job is one async unit of work. Mutable fields are guarded by mu.
type Job struct {
	ID        string
	Kind      string
	CreatedAt time.Time

	mu        sync.Mutex
	status    string
	completed int
	total     int
	results   []*models.PeelResult
	changes   []*models.ChangeTracking

	cancel context.CancelFunc
}

func (j *Job) snapshot() *models.JobStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &models.JobStatusResponse{
		ID:        j.ID,
		Kind:      j.Kind,
		Status:    j.status,
		Completed: j.completed,
		Total:     j.total,
		Results:   append([]*models.PeelResult(nil), j.results...),
		Changes:   append([]*models.ChangeTracking(nil), j.changes...),
	}
}

func (j *Job) addResult(res *models.PeelResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, res)
	j.completed = len(j.results)
}

func (j *Job) finish(status string, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.total = total
}

// Manager owns the job store and its expiry loop.
type Manager struct {
	peeler      Peeler
	concurrency int

	jobs sync.Map // id -> *Job
	done chan struct{}
}

// NewManager starts a Manager around the given pipeline.
func NewManager(p Peeler) *Manager {
	m := &Manager{
		peeler:      p,
		concurrency: defaultConcurrency,
		done:        make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Close cancels all running jobs and stops the expiry loop.
func (m *Manager) Close() {
	close(m.done)
	m.jobs.Range(func(_, value any) bool {
		if job := value.(*Job); job.cancel != nil {
			job.cancel()
		}
		return true
	})
}

// Status returns the current snapshot of a job.
func (m *Manager) Status(id string) (*models.JobStatusResponse, bool) {
	val, ok := m.jobs.Load(id)
	if !ok {
		return nil, false
	}
	return val.(*Job).snapshot(), true
}

func (m *Manager) newJob(kind string) *Job {
	job := &Job{
		ID:        kind + "-" + uuid.NewString(),
		Kind:      kind,
		CreatedAt: time.Now(),
		status:    models.JobStatusProcessing,
	}
	m.jobs.Store(job.ID, job)
	return job
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-jobTTL)
			m.jobs.Range(func(key, value any) bool {
				job := value.(*Job)
				if job.CreatedAt.Before(cutoff) {
					if job.cancel != nil {
						job.cancel()
					}
					m.jobs.Delete(key)
				}
				return true
			})
		}
	}
}

// finishStatus grades a result set: all failures fail the job, partial
// failures mark it partial.
func finishStatus(results []*models.PeelResult, attempted int) string {
	switch {
	case len(results) == 0 && attempted > 0:
		return models.JobStatusFailed
	case len(results) < attempted:
		return models.JobStatusPartial
	default:
		return models.JobStatusCompleted
	}
}

func logJobDone(job *Job) {
	snap := job.snapshot()
	slog.Info("job finished", "id", snap.ID, "kind", snap.Kind, "status", snap.Status, "total", snap.Total)
}
