package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/dshills/coldstart/internal/indexer"
)

// Job states
const (
	JobPending  = "pending"
	JobRunning  = "running"
	JobComplete = "complete"
	JobError    = "error"
)

// Job is the status of one asynchronous index run
type Job struct {
	ID          string              `json:"id"`
	Collection  string              `json:"collection"`
	Paths       []string            `json:"paths"`
	Status      string              `json:"status"`
	Stats       *indexer.Statistics `json:"stats,omitempty"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	StartedAt   time.Time           `json:"started_at,omitzero"`
	CompletedAt time.Time           `json:"completed_at,omitzero"`
}

// Done reports whether the job reached a final state
func (j *Job) Done() bool {
	return j.Status == JobComplete || j.Status == JobError
}

// JobTracker keeps index jobs in memory and fans status changes out to
// subscribers
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	subs map[string][]chan Job
}

// NewJobTracker creates an empty tracker
func NewJobTracker() *JobTracker {
	return &JobTracker{
		jobs: make(map[string]*Job),
		subs: make(map[string][]chan Job),
	}
}

// Create registers a pending job
func (t *JobTracker) Create(id, collection string, paths []string) Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	job := &Job{
		ID:         id,
		Collection: collection,
		Paths:      paths,
		Status:     JobPending,
		CreatedAt:  time.Now(),
	}
	t.jobs[id] = job
	return *job
}

// Start marks a job running
func (t *JobTracker) Start(id string) {
	t.update(id, func(j *Job) {
		j.Status = JobRunning
		j.StartedAt = time.Now()
	})
}

// Finish records the outcome of a job
func (t *JobTracker) Finish(id string, stats *indexer.Statistics, err error) {
	t.update(id, func(j *Job) {
		j.CompletedAt = time.Now()
		j.Stats = stats
		if err != nil {
			j.Status = JobError
			j.Error = err.Error()
			return
		}
		j.Status = JobComplete
	})
}

func (t *JobTracker) update(id string, fn func(*Job)) {
	t.mu.Lock()
	job, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	fn(job)
	snapshot := *job
	subs := append([]chan Job(nil), t.subs[id]...)
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Get returns a snapshot of a job
func (t *JobTracker) Get(id string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns every job, newest first
func (t *JobTracker) List() []Job {
	t.mu.RLock()
	out := make([]Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, *j)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

// Subscribe returns a channel receiving the job's status changes
func (t *JobTracker) Subscribe(id string) chan Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Job, 10)
	t.subs[id] = append(t.subs[id], ch)
	return ch
}

// Unsubscribe removes and closes a subscription
func (t *JobTracker) Unsubscribe(id string, ch chan Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[id]
	for i, s := range subs {
		if s == ch {
			t.subs[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(t.subs[id]) == 0 {
		delete(t.subs, id)
	}
	close(ch)
}

// streamJob writes job updates as server-sent events until the job is done
func (s *Server) streamJob(c fiber.Ctx) error {
	id := c.Params("id")
	job, ok := s.jobs.Get(id)
	if !ok {
		return &Error{Status: fiber.StatusNotFound, Message: "Job not found", Details: map[string]any{"id": id}}
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	if job.Done() {
		return c.SendString(sseEvent(job.Status, job))
	}

	ch := s.jobs.Subscribe(id)
	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer s.jobs.Unsubscribe(id, ch)

		// re-read after subscribing so a finish in between is not lost
		current, _ := s.jobs.Get(id)
		fmt.Fprint(w, sseEvent("progress", current))
		if err := w.Flush(); err != nil || current.Done() {
			return
		}

		timeout := time.After(s.opts.StreamTimeout)
		for {
			select {
			case update := <-ch:
				event := "progress"
				if update.Done() {
					event = update.Status
				}
				fmt.Fprint(w, sseEvent(event, update))
				if err := w.Flush(); err != nil || update.Done() {
					return
				}
			case <-timeout:
				s.logger.Warn("job stream timeout", "job_id", id)
				return
			case <-s.ctx.Done():
				return
			}
		}
	})
}

func sseEvent(event string, job Job) string {
	data, _ := json.Marshal(job)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}
