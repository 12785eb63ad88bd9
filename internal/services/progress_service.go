// internal/services/progress_service.go
package services

import (
	"sync"
	"time"
)

// ProgressUpdate is one progress notification pushed to subscribers.
type ProgressUpdate struct {
	Progress int    `json:"progress"` // percent, 0-100
	Message  string `json:"message"`
	Status   string `json:"status"` // running, completed, failed, canceled
}

// ProgressTracker tracks one long-running task and fans updates out to
// subscriber channels.
type ProgressTracker struct {
	TaskID      string
	Progress    int
	Message     string
	Status      string
	StartTime   time.Time
	UpdateTime  time.Time
	Subscribers map[chan ProgressUpdate]bool
	Done        chan struct{}
	mutex       sync.Mutex
}

// ProgressService owns all live trackers.
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

// NewProgressService creates an empty progress service.
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// CreateTracker returns the tracker for taskID, creating it when absent.
func (s *ProgressService) CreateTracker(taskID string) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, exists := s.trackers[taskID]; exists {
		return tracker
	}

	tracker := &ProgressTracker{
		TaskID:      taskID,
		Progress:    0,
		Message:     "starting",
		Status:      "running",
		StartTime:   time.Now(),
		UpdateTime:  time.Now(),
		Subscribers: make(map[chan ProgressUpdate]bool),
		Done:        make(chan struct{}),
	}

	s.trackers[taskID] = tracker
	return tracker
}

// GetTracker looks up a live tracker.
func (s *ProgressService) GetTracker(taskID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[taskID]
	return tracker, exists
}

// RemoveTracker drops a finished tracker.
func (s *ProgressService) RemoveTracker(taskID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.trackers, taskID)
}

// UpdateProgress advances the tracker and notifies subscribers. Progress
// never moves backwards.
func (t *ProgressTracker) UpdateProgress(progress int, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()

	t.notifyLocked()
}

// Complete marks the task finished.
func (t *ProgressTracker) Complete(message string) {
	t.finish("completed", message, 100)
}

// Fail marks the task failed.
func (t *ProgressTracker) Fail(message string) {
	t.finish("failed", message, t.Progress)
}

// Cancel marks the task canceled by the caller.
func (t *ProgressTracker) Cancel(message string) {
	t.finish("canceled", message, t.Progress)
}

func (t *ProgressTracker) finish(status, message string, progress int) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Status != "running" {
		return
	}
	t.Status = status
	t.Progress = progress
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()

	t.notifyLocked()
	close(t.Done)
}

// Subscribe registers a channel for updates. The caller owns the channel's
// lifetime and must Unsubscribe when done.
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	ch := make(chan ProgressUpdate, 16)
	t.Subscribers[ch] = true

	// Seed with the current state so late subscribers see something
	ch <- ProgressUpdate{Progress: t.Progress, Message: t.Message, Status: t.Status}
	return ch
}

// Unsubscribe removes a subscriber channel.
func (t *ProgressTracker) Unsubscribe(ch chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Subscribers[ch] {
		delete(t.Subscribers, ch)
		close(ch)
	}
}

func (t *ProgressTracker) notifyLocked() {
	update := ProgressUpdate{Progress: t.Progress, Message: t.Message, Status: t.Status}
	for subscriber := range t.Subscribers {
		// Non-blocking send; slow subscribers miss intermediate updates
		select {
		case subscriber <- update:
		default:
		}
	}
}
