package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daftar-erp/daftar/internal/id"
)

// JobStatus is where an analysis job stands.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is an asynchronous analysis polled by ID.
type Job struct {
	ID        string            `json:"id"`
	Status    JobStatus         `json:"status"`
	Progress  int               `json:"progress"`
	Result    *ExtractedInvoice `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Runner performs one analysis.
type Runner interface {
	Analyze(ctx context.Context, text string, stage Stage) (ExtractedInvoice, error)
}

// Jobs runs analyses in the background. Finished jobs are kept for ttl.
type Jobs struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	runner Runner
	ctx    context.Context
	log    logrus.FieldLogger
	ttl    time.Duration
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewJobs creates a job tracker. Jobs stop when ctx is cancelled.
func NewJobs(ctx context.Context, runner Runner, log logrus.FieldLogger) *Jobs {
	return &Jobs{
		jobs:   make(map[string]*Job),
		runner: runner,
		ctx:    ctx,
		log:    log,
		ttl:    time.Hour,
		now:    time.Now,
	}
}

// Submit queues text for analysis and returns the job at 0%.
func (j *Jobs) Submit(text string) Job {
	j.mu.Lock()
	j.prune()
	now := j.now().UTC()
	job := &Job{ID: id.New(), Status: JobQueued, CreatedAt: now, UpdatedAt: now}
	j.jobs[job.ID] = job
	snapshot := *job
	j.mu.Unlock()

	j.wg.Add(1)
	go j.run(job.ID, text)
	return snapshot
}

func (j *Jobs) run(jobID, text string) {
	defer j.wg.Done()
	j.update(jobID, func(job *Job) { job.Status = JobRunning })

	result, err := j.runner.Analyze(j.ctx, text, func(progress int) {
		j.update(jobID, func(job *Job) { job.Progress = progress })
	})
	if err != nil {
		j.log.WithError(err).WithField("job", jobID).Warn("invoice analysis failed")
		j.update(jobID, func(job *Job) {
			job.Status = JobFailed
			job.Error = err.Error()
		})
		return
	}
	j.update(jobID, func(job *Job) {
		job.Status = JobCompleted
		job.Progress = 100
		job.Result = &result
	})
}

func (j *Jobs) update(jobID string, fn func(*Job)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if job, ok := j.jobs[jobID]; ok {
		fn(job)
		job.UpdatedAt = j.now().UTC()
	}
}

// Get returns a copy of a job.
func (j *Jobs) Get(jobID string) (Job, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Wait blocks until every submitted job has finished.
func (j *Jobs) Wait() {
	j.wg.Wait()
}

// prune drops finished jobs older than ttl. Callers hold mu.
func (j *Jobs) prune() {
	cutoff := j.now().Add(-j.ttl)
	for jobID, job := range j.jobs {
		if (job.Status == JobCompleted || job.Status == JobFailed) && job.UpdatedAt.Before(cutoff) {
			delete(j.jobs, jobID)
		}
	}
}
