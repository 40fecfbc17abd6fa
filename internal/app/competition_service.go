package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"quiz-competition-service/internal/domain"
	"quiz-competition-service/internal/quiz"
)

// BankProvider loads question banks (from cache/backing store).
type BankProvider interface {
	GetBank(ctx context.Context, bankID string) (domain.QuestionBank, error)
}

// AnswerStore persists committed answer records, upsert by (userID, questionID).
type AnswerStore interface {
	SaveAnswer(ctx context.Context, record domain.AnswerRecord) error
	ListAnswers(ctx context.Context, userID string) ([]domain.AnswerRecord, error)
	ClearAnswers(ctx context.Context) error
}

// ResultStore persists finalized results, upsert by userID. ListResults
// returns results ordered by rank, with ranks recomputed from the full set.
type ResultStore interface {
	SaveResult(ctx context.Context, result domain.Result) (domain.Result, error)
	ListResults(ctx context.Context) ([]domain.Result, error)
	ClearResults(ctx context.Context) error
}

// Event is pushed to global subscribers whenever the lifecycle or the
// leaderboard changes.
type Event struct {
	Lifecycle   *domain.LifecycleSnapshot `json:"lifecycle,omitempty"`
	Leaderboard *domain.Leaderboard       `json:"leaderboard,omitempty"`
}

// Options tune the competition; zero values pick defaults.
type Options struct {
	BankID           string
	QuestionDuration int           // seconds per question, default 60
	TickInterval     time.Duration // countdown granularity, default 1s
	Clock            func() time.Time
}

// CompetitionService owns the global lifecycle, the per-student sessions and
// their countdown tickers, and funnels every shared mutation (start, reset,
// save-result) through a single serialization point.
type CompetitionService struct {
	banks     BankProvider
	answers   AnswerStore
	results   ResultStore
	lifecycle *quiz.Lifecycle

	bankID   string
	duration int
	tick     time.Duration
	now      func() time.Time

	mu          sync.Mutex
	runners     map[string]*runner
	subscribers map[chan Event]struct{}
}

func NewCompetitionService(banks BankProvider, answers AnswerStore, results ResultStore, opts Options) *CompetitionService {
	if opts.QuestionDuration <= 0 {
		opts.QuestionDuration = int(quiz.DefaultQuestionDuration / time.Second)
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.BankID == "" {
		opts.BankID = "default"
	}
	return &CompetitionService{
		banks:       banks,
		answers:     answers,
		results:     results,
		lifecycle:   quiz.NewLifecycleWithClock(opts.Clock),
		bankID:      opts.BankID,
		duration:    opts.QuestionDuration,
		tick:        opts.TickInterval,
		now:         opts.Clock,
		runners:     make(map[string]*runner),
		subscribers: make(map[chan Event]struct{}),
	}
}

// runner pairs one student's session with its countdown ticker and the
// channels of clients watching that session.
type runner struct {
	session  *quiz.Session
	epoch    uint64
	stop     chan struct{}
	stopOnce sync.Once

	mu   sync.Mutex
	subs map[chan quiz.Snapshot]struct{}
}

func (r *runner) halt() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *runner) push(snap quiz.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot so a slow client never blocks the ticker
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (r *runner) subscribe() (<-chan quiz.Snapshot, func()) {
	ch := make(chan quiz.Snapshot, 8)

	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	ch <- r.session.Snapshot()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subs[ch]; ok {
			delete(r.subs, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// StartQuiz moves the lifecycle to started. Repeated starts overwrite the
// start timestamp rather than failing.
func (s *CompetitionService) StartQuiz(_ context.Context) domain.LifecycleSnapshot {
	s.mu.Lock()
	snap := s.lifecycle.Start()
	s.mu.Unlock()

	s.broadcast(Event{Lifecycle: &snap})
	return snap
}

// CompleteQuiz marks a started quiz as completed.
func (s *CompetitionService) CompleteQuiz(_ context.Context) domain.LifecycleSnapshot {
	s.mu.Lock()
	snap := s.lifecycle.Complete()
	s.mu.Unlock()

	s.broadcast(Event{Lifecycle: &snap})
	return snap
}

// ResetQuiz stops every session ticker, clears all answers and results, and
// returns the lifecycle to waiting. The epoch bump fences out any in-flight
// result from the old run.
func (s *CompetitionService) ResetQuiz(ctx context.Context) error {
	s.mu.Lock()
	snap := s.lifecycle.Reset()
	for _, r := range s.runners {
		r.halt()
	}
	s.runners = make(map[string]*runner)

	var answersErr, resultsErr error
	if err := s.answers.ClearAnswers(ctx); err != nil {
		answersErr = fmt.Errorf("clear answers: %w: %v", domain.ErrPersistenceFailure, err)
	}
	if err := s.results.ClearResults(ctx); err != nil {
		resultsErr = fmt.Errorf("clear results: %w: %v", domain.ErrPersistenceFailure, err)
	}
	s.mu.Unlock()

	s.broadcast(Event{
		Lifecycle:   &snap,
		Leaderboard: &domain.Leaderboard{Entries: []domain.Result{}, UpdatedAt: s.now()},
	})
	if answersErr != nil {
		return answersErr
	}
	return resultsErr
}

// Lifecycle reports the current global phase; clients poll this while waiting.
func (s *CompetitionService) Lifecycle() domain.LifecycleSnapshot {
	return s.lifecycle.Snapshot()
}

// Join creates (or returns) the student's session once the quiz has started
// and the question bank is non-empty, and arms its countdown ticker.
// Rejoining keeps the existing progress.
func (s *CompetitionService) Join(ctx context.Context, userID string) (quiz.Snapshot, error) {
	if s.lifecycle.Snapshot().State != domain.LifecycleStarted {
		return quiz.Snapshot{}, domain.ErrQuizNotStarted
	}

	s.mu.Lock()
	if r, ok := s.runners[userID]; ok {
		s.mu.Unlock()
		return r.session.Snapshot(), nil
	}
	s.mu.Unlock()

	// Bank load happens outside the service lock; it may hit a backing store.
	bank, err := s.banks.GetBank(ctx, s.bankID)
	if err != nil {
		return quiz.Snapshot{}, err
	}
	if len(bank.Questions) == 0 {
		return quiz.Snapshot{}, domain.ErrEmptyQuestionBank
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runners[userID]; ok {
		return r.session.Snapshot(), nil
	}

	session := quiz.NewSessionWithClock(userID, bank.Questions, s.duration, s.now)
	if err := session.Begin(); err != nil {
		return quiz.Snapshot{}, err
	}
	r := &runner{
		session: session,
		epoch:   s.lifecycle.Epoch(),
		stop:    make(chan struct{}),
		subs:    make(map[chan quiz.Snapshot]struct{}),
	}
	s.runners[userID] = r
	go s.runTicker(r)
	return session.Snapshot(), nil
}

// SubmitAnswer records or overwrites the answer for the student's current
// question without advancing. Stale submissions are reported but never fatal.
func (s *CompetitionService) SubmitAnswer(_ context.Context, userID, questionID string, option *string) error {
	r, err := s.runner(userID)
	if err != nil {
		return err
	}
	return r.session.RecordAnswer(questionID, option)
}

// AdvanceQuestion commits the answer for the question index the client last
// observed and moves the student on. When the countdown already committed
// that index the call is a no-op; the client catches up from the returned
// snapshot. Advancing a finished session reports the terminal snapshot.
func (s *CompetitionService) AdvanceQuestion(ctx context.Context, userID string, index int) (quiz.Snapshot, error) {
	r, err := s.runner(userID)
	if err != nil {
		return quiz.Snapshot{}, err
	}

	commit, committed := r.session.Advance(index)
	if committed {
		s.handleCommit(ctx, r, commit)
		r.push(r.session.Snapshot())
	} else if r.session.State() == quiz.SessionFinished {
		// A finished session may still owe its Result if an earlier save failed.
		s.finalize(ctx, r)
	}
	return r.session.Snapshot(), nil
}

// Session reports the student's current progress; used for state polls.
func (s *CompetitionService) Session(userID string) (quiz.Snapshot, error) {
	r, err := s.runner(userID)
	if err != nil {
		return quiz.Snapshot{}, err
	}
	return r.session.Snapshot(), nil
}

// Leaderboard returns the ranked results of the current run.
func (s *CompetitionService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	entries, err := s.results.ListResults(ctx)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("list results: %w: %v", domain.ErrPersistenceFailure, err)
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: s.now()}, nil
}

// UserResult returns the finalized result for one user.
func (s *CompetitionService) UserResult(ctx context.Context, userID string) (domain.Result, error) {
	entries, err := s.results.ListResults(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("list results: %w: %v", domain.ErrPersistenceFailure, err)
	}
	for _, result := range entries {
		if result.UserID == userID {
			return result, nil
		}
	}
	return domain.Result{}, domain.ErrSessionNotFound
}

// Subscribe returns a channel of lifecycle/leaderboard events. The caller
// must invoke the cancel function to avoid leaks.
func (s *CompetitionService) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeSession returns a channel of progress snapshots for one student,
// fed by both the countdown ticker and explicit advances.
func (s *CompetitionService) SubscribeSession(userID string) (<-chan quiz.Snapshot, func(), error) {
	r, err := s.runner(userID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := r.subscribe()
	return ch, cancel, nil
}

func (s *CompetitionService) runner(userID string) (*runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[userID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return r, nil
}

// runTicker drives the one-second countdown for a session. It stops
// permanently once the session finishes or the quiz is reset; a stale ticker
// can never fire a commit against a cleared session.
func (s *CompetitionService) runTicker(r *runner) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			commit, committed := r.session.Tick()
			if committed {
				s.handleCommit(context.Background(), r, commit)
			}
			r.push(r.session.Snapshot())
			if r.session.State() == quiz.SessionFinished {
				return
			}
		case <-r.stop:
			return
		}
	}
}

// handleCommit persists the committed answer and finalizes the run when the
// last question was passed. The epoch fence drops writes from a run the
// admin has already reset, so a cleared answer store stays cleared. A failed
// answer write is advisory: the countdown continues and the in-memory record
// remains authoritative.
func (s *CompetitionService) handleCommit(ctx context.Context, r *runner, commit quiz.Commit) {
	s.mu.Lock()
	stale := r.epoch != s.lifecycle.Epoch()
	if !stale {
		if err := s.answers.SaveAnswer(ctx, commit.Record); err != nil {
			log.Printf("save answer user=%s question=%s: %v", commit.Record.UserID, commit.Record.QuestionID, err)
		}
	}
	s.mu.Unlock()
	if stale {
		log.Printf("drop answer user=%s question=%s: %v", commit.Record.UserID, commit.Record.QuestionID, domain.ErrStaleEpoch)
		return
	}
	if commit.Finished {
		s.finalize(ctx, r)
	}
}

// finalize scores the session and persists its Result exactly once. The
// epoch fence drops results produced before the last reset, and a failed save
// re-arms the latch so a later signal can retry.
func (s *CompetitionService) finalize(ctx context.Context, r *runner) {
	if !r.session.FinalizeOnce() {
		if r.session.State() == quiz.SessionFinished {
			log.Printf("finalize user=%s: %v", r.session.UserID(), domain.ErrDuplicateResult)
		}
		return
	}

	summary := quiz.Score(r.session.Questions(), r.session.Answers())
	result := domain.Result{
		UserID:              r.session.UserID(),
		Score:               summary.Score,
		CorrectCount:        summary.CorrectCount,
		IncorrectCount:      summary.IncorrectCount,
		SkippedCount:        summary.SkippedCount,
		AverageResponseTime: summary.AverageResponseTime,
		CompletionTime:      int(r.session.Elapsed().Seconds()),
		CreatedAt:           s.now(),
	}

	s.mu.Lock()
	if r.epoch != s.lifecycle.Epoch() {
		s.mu.Unlock()
		log.Printf("drop result user=%s: %v", result.UserID, domain.ErrStaleEpoch)
		return
	}
	_, err := s.results.SaveResult(ctx, result)
	s.mu.Unlock()

	if err != nil {
		r.session.RetryFinalize()
		log.Printf("save result user=%s: %v", result.UserID, err)
		return
	}

	if lb, lbErr := s.Leaderboard(ctx); lbErr == nil {
		s.broadcast(Event{Leaderboard: &lb})
	}
}

func (s *CompetitionService) broadcast(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// drop the stale event so a slow client never blocks a mutation
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
