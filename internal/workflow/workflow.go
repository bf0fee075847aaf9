// Package workflow tracks a user's progress through an analysis session:
// which step they are on, where they have been, and what the recommended
// next step is given the session's state. Sessions are held in memory
// with a sliding TTL and reaped by a background sweeper.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Step is one stage of the analysis workflow.
type Step string

const (
	StepStart            Step = "start"
	StepUploadData       Step = "upload_data"
	StepCheckAssumptions Step = "check_assumptions"
	StepSelectTest       Step = "select_test"
	StepRunAnalysis      Step = "run_analysis"
	StepReviewResults    Step = "review_results"
	StepExport           Step = "export"
)

var validSteps = map[Step]bool{
	StepStart:            true,
	StepUploadData:       true,
	StepCheckAssumptions: true,
	StepSelectTest:       true,
	StepRunAnalysis:      true,
	StepReviewResults:    true,
	StepExport:           true,
}

var (
	// ErrSessionNotFound covers both unknown and expired sessions.
	ErrSessionNotFound = errors.New("workflow: session not found")
	// ErrUnknownStep is returned when advancing to a step outside the map.
	ErrUnknownStep = errors.New("workflow: unknown step")
)

// Session is one user's pass through the workflow.
type Session struct {
	ID          string `json:"id"`
	CurrentStep Step   `json:"current_step"`
	History     []Step `json:"history"`

	HasData        bool   `json:"has_data"`
	GuardianPassed bool   `json:"guardian_passed"`
	TestSelected   string `json:"test_selected,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Recommendation is the decision table's answer for a session.
type Recommendation struct {
	Step   Step   `json:"step"`
	Reason string `json:"reason"`
}

// Update carries partial session state; nil fields are left untouched.
type Update struct {
	HasData        *bool
	GuardianPassed *bool
	TestSelected   *string
}

// Store keeps live sessions in memory with a sliding TTL.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore creates a session store. Sessions expire ttl after their last
// access; call Sweep periodically or run StartSweeper.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Create starts a new session at the first step.
func (s *Store) Create() *Session {
	now := s.now().UTC()
	sess := &Session{
		ID:          uuid.NewString(),
		CurrentStep: StepStart,
		History:     []Step{StepStart},
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Debug("workflow session created", "session_id", sess.ID)
	return sess
}

// Get returns a copy of the session and refreshes its TTL.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.liveLocked(id)
	if err != nil {
		return nil, err
	}
	return snapshot(sess), nil
}

// Advance moves the session to the given step, appending to its history.
func (s *Store) Advance(id string, step Step) (*Session, error) {
	if !validSteps[step] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.liveLocked(id)
	if err != nil {
		return nil, err
	}
	sess.CurrentStep = step
	sess.History = append(sess.History, step)
	sess.UpdatedAt = s.now().UTC()
	return snapshot(sess), nil
}

// Apply merges the update into the session state.
func (s *Store) Apply(id string, u Update) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.liveLocked(id)
	if err != nil {
		return nil, err
	}
	if u.HasData != nil {
		sess.HasData = *u.HasData
	}
	if u.GuardianPassed != nil {
		sess.GuardianPassed = *u.GuardianPassed
	}
	if u.TestSelected != nil {
		sess.TestSelected = *u.TestSelected
	}
	sess.UpdatedAt = s.now().UTC()
	return snapshot(sess), nil
}

// NextStep runs the decision table against the session's current state.
func (s *Store) NextStep(id string) (*Recommendation, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	rec := recommend(sess)
	return &rec, nil
}

// recommend is the decision table: current step plus session flags decide
// the next step.
func recommend(sess *Session) Recommendation {
	switch sess.CurrentStep {
	case StepStart:
		return Recommendation{StepUploadData, "start by uploading a dataset"}
	case StepUploadData:
		if !sess.HasData {
			return Recommendation{StepUploadData, "no dataset attached yet"}
		}
		return Recommendation{StepCheckAssumptions, "data is in, validate assumptions next"}
	case StepCheckAssumptions:
		if !sess.HasData {
			return Recommendation{StepUploadData, "dataset missing, upload before checking assumptions"}
		}
		if !sess.GuardianPassed {
			return Recommendation{StepSelectTest, "assumption failures suggest a nonparametric alternative"}
		}
		return Recommendation{StepSelectTest, "assumptions hold, choose a parametric test"}
	case StepSelectTest:
		if sess.TestSelected == "" {
			return Recommendation{StepSelectTest, "no test chosen yet"}
		}
		return Recommendation{StepRunAnalysis, fmt.Sprintf("run the selected %s", sess.TestSelected)}
	case StepRunAnalysis:
		return Recommendation{StepReviewResults, "analysis complete, review the output"}
	case StepReviewResults:
		return Recommendation{StepExport, "export the results when satisfied"}
	default:
		return Recommendation{StepExport, "workflow complete"}
	}
}

// Delete removes a session immediately.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("workflow sessions swept", "removed", removed, "remaining", len(s.sessions))
	}
	return removed
}

// StartSweeper reaps expired sessions every interval until ctx ends.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// liveLocked fetches a session, treating expired ones as gone, and slides
// the expiry forward. Caller holds the write lock.
func (s *Store) liveLocked(id string) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := s.now()
	if now.After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	sess.ExpiresAt = now.Add(s.ttl).UTC()
	return sess, nil
}

func snapshot(sess *Session) *Session {
	cp := *sess
	cp.History = append([]Step(nil), sess.History...)
	return &cp
}
