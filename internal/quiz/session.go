package quiz

import (
	"sync"
	"time"

	"quiz-competition-service/internal/domain"
)

// DefaultQuestionDuration is the per-question countdown when none is configured.
const DefaultQuestionDuration = 60 * time.Second

// SessionState is the phase of one student's traversal of the question sequence.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionInProgress SessionState = "in_progress"
	SessionFinished   SessionState = "finished"
)

// Commit is the outcome of passing one question, either by explicit advance
// or by countdown expiry.
type Commit struct {
	Record   domain.AnswerRecord
	Finished bool
}

// Snapshot is a point-in-time view of a session for transport layers.
type Snapshot struct {
	State     SessionState        `json:"state"`
	Index     int                 `json:"index"`
	Total     int                 `json:"total"`
	Remaining int                 `json:"remaining"` // seconds left on the current question
	Question  domain.QuestionView `json:"question,omitempty"`
}

// Session tracks one student's progress through the question sequence: the
// current index, the per-question countdown, and the answers recorded so far.
// Timer ticks and explicit user actions are serialized by the session mutex;
// the committed-index guard collapses a racing timeout-commit and explicit
// advance for the same question into exactly one commit.
type Session struct {
	userID    string
	questions []domain.Question
	duration  int // seconds per question
	now       func() time.Time

	mu              sync.Mutex
	state           SessionState
	index           int
	committed       int // highest question index already committed
	remaining       int
	answers         map[string]domain.AnswerRecord
	startedAt       time.Time
	questionStarted time.Time
	finalized       bool
}

// NewSession builds an Idle session over the given question sequence.
// durationSeconds <= 0 falls back to DefaultQuestionDuration.
func NewSession(userID string, questions []domain.Question, durationSeconds int) *Session {
	return NewSessionWithClock(userID, questions, durationSeconds, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(userID string, questions []domain.Question, durationSeconds int, now func() time.Time) *Session {
	if durationSeconds <= 0 {
		durationSeconds = int(DefaultQuestionDuration / time.Second)
	}
	return &Session{
		userID:    userID,
		questions: questions,
		duration:  durationSeconds,
		now:       now,
		state:     SessionIdle,
		committed: -1,
		answers:   make(map[string]domain.AnswerRecord),
	}
}

// Begin moves the session from Idle to InProgress and arms the countdown for
// the first question. Fails when the question bank is empty. Calling Begin on
// a session that already left Idle is a no-op.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.questions) == 0 {
		return domain.ErrEmptyQuestionBank
	}
	if s.state != SessionIdle {
		return nil
	}
	s.state = SessionInProgress
	s.remaining = s.duration
	s.startedAt = s.now()
	s.questionStarted = s.startedAt
	return nil
}

// CurrentQuestion returns the question at the current index. Callers must
// check for a finished session first; asking past the end is a programmer
// error reported as ErrOutOfRange.
func (s *Session) CurrentQuestion() (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index >= len(s.questions) {
		return domain.Question{}, domain.ErrOutOfRange
	}
	return s.questions[s.index], nil
}

// RecordAnswer stores or overwrites the answer for the current question
// without advancing. Only the value present at commit time counts. Valid only
// while InProgress and only for the current question; anything else is a
// stale submission.
func (s *Session) RecordAnswer(questionID string, option *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionInProgress || s.index >= len(s.questions) {
		return domain.ErrStaleSubmission
	}
	current := s.questions[s.index]
	if current.ID != questionID {
		return domain.ErrStaleSubmission
	}
	s.answers[questionID] = domain.AnswerRecord{
		UserID:       s.userID,
		QuestionID:   questionID,
		Option:       option,
		ResponseTime: s.now().Sub(s.questionStarted),
	}
	return nil
}

// Advance commits the question at the given index (with whatever answer was
// last recorded, or a skip), moves to the next question, and resets the
// countdown. The index is the one the caller observed in its last snapshot;
// when the session has already moved past it (a countdown expiry won the
// race) the call is a no-op, so the next question is never committed unseen.
// Calling Advance on a finished session reports the terminal state without
// committing anything.
func (s *Session) Advance(index int) (Commit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(index)
}

// Tick decrements the countdown by one second. When the countdown reaches
// zero the session auto-commits the active question exactly as Advance would.
// The boolean reports whether a commit happened on this tick.
func (s *Session) Tick() (Commit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionInProgress {
		return Commit{Finished: s.state == SessionFinished}, false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		return Commit{}, false
	}
	return s.commitLocked(s.index)
}

// commitLocked performs the single authoritative commit for question index
// `expected`. A commit advances the index, so a second attempt carrying the
// old index (timeout racing an explicit advance) finds expected != s.index
// and becomes a no-op; the committed high-water mark backstops the same
// invariant.
func (s *Session) commitLocked(expected int) (Commit, bool) {
	if s.state != SessionInProgress {
		return Commit{Finished: s.state == SessionFinished}, false
	}
	if expected != s.index || s.committed >= s.index {
		return Commit{}, false
	}

	question := s.questions[s.index]
	rec, ok := s.answers[question.ID]
	if !ok {
		rec = domain.AnswerRecord{
			UserID:       s.userID,
			QuestionID:   question.ID,
			ResponseTime: s.now().Sub(s.questionStarted),
		}
	}
	rec.Correct = rec.Option != nil && *rec.Option == question.CorrectOption
	s.answers[question.ID] = rec

	s.committed = s.index
	s.index++
	s.remaining = s.duration
	s.questionStarted = s.now()

	finished := s.index >= len(s.questions)
	if finished {
		s.state = SessionFinished
	}
	return Commit{Record: rec, Finished: finished}, true
}

// UserID identifies the session's owner.
func (s *Session) UserID() string {
	return s.userID
}

// Questions returns the question sequence the session was built over.
func (s *Session) Questions() []domain.Question {
	return s.questions
}

// Answers returns a copy of the committed and in-flight answer records.
func (s *Session) Answers() map[string]domain.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]domain.AnswerRecord, len(s.answers))
	for id, rec := range s.answers {
		out[id] = rec
	}
	return out
}

// Elapsed is the wall-clock duration since Begin.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return s.now().Sub(s.startedAt)
}

// State reports the session phase.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FinalizeOnce returns true exactly once, on the first call after the session
// finished. Duplicate finish signals observe false and must not persist a
// second Result.
func (s *Session) FinalizeOnce() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionFinished || s.finalized {
		return false
	}
	s.finalized = true
	return true
}

// RetryFinalize re-arms the finalize latch after a failed result save so a
// later finish signal can retry the submission.
func (s *Session) RetryFinalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = false
}

// Snapshot captures the session for clients. The question view is only
// populated while the index is in range.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:     s.state,
		Index:     s.index,
		Total:     len(s.questions),
		Remaining: s.remaining,
	}
	if s.index < len(s.questions) {
		snap.Question = s.questions[s.index].View()
	}
	return snap
}
