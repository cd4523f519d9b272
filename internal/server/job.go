package server

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/imgdist/internal/store"
)

// JobState represents the current state of a comparison job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// CompareRequest is the payload accepted by POST /api/compare. Image paths
// are interpreted relative to the server's image root. Zero-valued tuning
// fields fall back to the engine defaults.
type CompareRequest struct {
	Ref             string  `json:"ref"`
	Dist            string  `json:"dist"`
	HFAsymmetry     float32 `json:"hfAsymmetry,omitempty"`
	XMul            float32 `json:"xmul,omitempty"`
	IntensityTarget float32 `json:"intensityTarget,omitempty"`
}

// Job tracks a single comparison from submission to completion
type Job struct {
	ID        string         `json:"id"`
	State     JobState       `json:"state"`
	Request   CompareRequest `json:"request"`
	Result    *store.Result  `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	StartTime time.Time      `json:"startTime"`
	EndTime   *time.Time     `json:"endTime,omitempty"`
}

// JobManager manages all comparison jobs and fans state transitions out to
// stream subscribers. Slots bound how many jobs run at once; jobs beyond
// the bound stay pending until a slot frees up.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
	slots       chan struct{}
}

// NewJobManager creates a new job manager with the given worker bound.
// A bound of zero or less uses one slot per available CPU.
func NewJobManager(maxWorkers int) *JobManager {
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
		slots:       make(chan struct{}, maxWorkers),
	}
}

// CreateJob creates a new pending job for the given request. The cancel
// handle is invoked when the job is cancelled through CancelJob.
func (jm *JobManager) CreateJob(req CompareRequest, cancel context.CancelFunc) *Job {
	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Request:   req,
		StartTime: time.Now(),
	}

	jm.mu.Lock()
	jm.jobs[job.ID] = job
	if cancel != nil {
		jm.cancels[job.ID] = cancel
	}
	jm.mu.Unlock()

	snapshot := *job
	return &snapshot
}

// GetJob returns a copy of a job by ID, so callers can serialize it
// without racing the worker.
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// ListJobs returns copies of all jobs, newest first
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	jm.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].StartTime.Equal(jobs[j].StartTime) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].StartTime.After(jobs[j].StartTime)
	})
	return jobs
}

// UpdateJob updates a job using the provided update function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job %s not found", id)
	}

	updateFn(job)
	return nil
}

// CancelJob stops a pending or running job. The worker observes the
// cancelled context and finalizes the job state itself.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	job, exists := jm.jobs[id]
	if !exists {
		jm.mu.Unlock()
		return fmt.Errorf("job %s not found", id)
	}
	if job.State != StatePending && job.State != StateRunning {
		jm.mu.Unlock()
		return fmt.Errorf("job %s is already %s", id, job.State)
	}
	cancel := jm.cancels[id]
	jm.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// releaseCancel drops the cancel handle once a job has reached a final
// state. CancelJob rejects finished jobs before it would look one up.
func (jm *JobManager) releaseCancel(id string) {
	jm.mu.Lock()
	delete(jm.cancels, id)
	jm.mu.Unlock()
}

// acquireSlot blocks until a worker slot is free or ctx is cancelled
func (jm *JobManager) acquireSlot(ctx context.Context) error {
	select {
	case jm.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// releaseSlot returns a worker slot to the pool
func (jm *JobManager) releaseSlot() {
	<-jm.slots
}

// publish broadcasts the job's current state to stream subscribers
func (jm *JobManager) publish(id string) {
	job, exists := jm.GetJob(id)
	if !exists {
		return
	}

	event := JobEvent{
		JobID:     job.ID,
		State:     job.State,
		Error:     job.Error,
		Timestamp: time.Now(),
	}
	if job.Result != nil {
		event.Distance = job.Result.Distance
		event.PSNR = job.Result.PSNR
	}
	jm.broadcaster.Broadcast(event)
}
