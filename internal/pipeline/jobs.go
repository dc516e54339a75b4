package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/omrgest/internal/omr"
)

// JobStatus represents the state of a scan job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusNormalizing JobStatus = "normalizing"
	StatusAnalyzing   JobStatus = "analyzing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
)

// Terminal reports whether no further transitions will happen.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks one uploaded answer sheet through recognition.
type Job struct {
	mu sync.Mutex

	ID          string `json:"job_id"`
	UserID      string `json:"user_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	result   *omr.Result
	errors   []string
}

// NewJob creates a queued job with a fresh ID.
func NewJob(userID, filename, contentType string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		UserID:      userID,
		Filename:    filename,
		ContentType: contentType,
		Status:      StatusQueued,
		Phase:       "queued",
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// SetResult stores the recognition result and drops the upload bytes.
func (j *Job) SetResult(res omr.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = &res
	j.fileData = nil
	j.UpdatedAt = time.Now()
}

// Result returns the recognition result, or nil while the job is running.
func (j *Job) Result() *omr.Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.result == nil {
		return nil
	}
	res := *j.result
	return &res
}

// FileData returns the raw upload bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string      `json:"job_id"`
	UserID    string      `json:"user_id,omitempty"`
	Filename  string      `json:"filename"`
	Status    JobStatus   `json:"status"`
	Phase     string      `json:"phase"`
	Errors    []string    `json:"errors"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Result    *omr.Result `json:"result,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.errors...)
	snap := JobSnapshot{
		ID:        j.ID,
		UserID:    j.UserID,
		Filename:  j.Filename,
		Status:    j.Status,
		Phase:     j.Phase,
		Errors:    errs,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.result != nil {
		res := *j.result
		snap.Result = &res
	}
	return snap
}
