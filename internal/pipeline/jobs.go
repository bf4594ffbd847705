package pipeline

import (
	"sync"
	"time"
)

// JobStatus represents the state of a reconciliation job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusParsing     JobStatus = "parsing"
	StatusMapping     JobStatus = "mapping"
	StatusReconciling JobStatus = "reconciling"
	StatusReporting   JobStatus = "reporting"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
)

// Job tracks the state of a single reconciliation run.
type Job struct {
	mu sync.Mutex

	ID string `json:"job_id"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	DSDFilename    string `json:"dsd_filename"`
	TargetFilename string `json:"target_filename"`

	Progress Progress `json:"progress"`

	OutputPath string    `json:"output_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Internal: not serialized.
	dsdData    []byte
	targetData []byte
	errors     []string
}

// Progress tracks reconciliation progress and the final tallies.
type Progress struct {
	TotalSections int      `json:"total_sections"`
	SectionsDone  int      `json:"sections_done"`
	TotalCells    int      `json:"total_cells"`
	Matched       int      `json:"matched"`
	Mismatched    int      `json:"mismatched"`
	Unverifiable  int      `json:"unverifiable"`
	Errors        []string `json:"errors"`
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
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
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
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotalSections records the mapped section count.
func (j *Job) SetTotalSections(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalSections = n
	j.UpdatedAt = time.Now()
}

// SetSectionsDone records reconciliation progress.
func (j *Job) SetSectionsDone(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SectionsDone = n
	j.UpdatedAt = time.Now()
}

// SetTallies records the final verification counts.
func (j *Job) SetTallies(total, matched, mismatched, unverifiable int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalCells = total
	j.Progress.Matched = matched
	j.Progress.Mismatched = mismatched
	j.Progress.Unverifiable = unverifiable
	j.UpdatedAt = time.Now()
}

// SetOutputPath records where the rendered workbook was written.
func (j *Job) SetOutputPath(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = path
	j.UpdatedAt = time.Now()
}

// OutputFile returns the workbook path, empty until reporting finishes.
func (j *Job) OutputFile() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.OutputPath
}

// SetFileData sets the raw upload bytes for processing.
func (j *Job) SetFileData(dsd, target []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.dsdData = dsd
	j.targetData = target
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID             string    `json:"job_id"`
	Status         JobStatus `json:"status"`
	Phase          string    `json:"phase"`
	DSDFilename    string    `json:"dsd_filename"`
	TargetFilename string    `json:"target_filename"`
	Progress       Progress  `json:"progress"`
	OutputReady    bool      `json:"output_ready"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:             j.ID,
		Status:         j.Status,
		Phase:          j.Phase,
		DSDFilename:    j.DSDFilename,
		TargetFilename: j.TargetFilename,
		Progress:       p,
		OutputReady:    j.Status == StatusCompleted && j.OutputPath != "",
	}
}
