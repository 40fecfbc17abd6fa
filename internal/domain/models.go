package domain

import "time"

// Option labels for the four answer choices of every question.
const (
	OptionA = "A"
	OptionB = "B"
	OptionC = "C"
	OptionD = "D"
)

// Option is one labeled answer choice.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Question models an MCQ question with four options labeled A-D and exactly
// one correct label. Immutable for the duration of a quiz run.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []Option `json:"options"`
	CorrectOption string   `json:"correctOption"`
}

// View strips the correct-option label so the question can be sent to clients.
func (q Question) View() QuestionView {
	return QuestionView{ID: q.ID, Text: q.Text, Options: q.Options}
}

// QuestionView is the client-safe projection of a Question.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// QuestionBank is an ordered collection of questions; order is stable within
// one quiz run.
type QuestionBank struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// AnswerRecord is the stored choice of one user on one question. A nil Option
// means the question was skipped. At most one record exists per (user,
// question) pair; later submissions overwrite earlier ones.
type AnswerRecord struct {
	UserID       string        `json:"userId"`
	QuestionID   string        `json:"questionId"`
	Option       *string       `json:"option"`
	Correct      bool          `json:"correct"`
	ResponseTime time.Duration `json:"responseTime"`
}

// Skipped reports whether the record counts as a skip rather than an answer.
func (r AnswerRecord) Skipped() bool {
	return r.Option == nil
}

// Summary is the aggregate output of the scoring engine for one user.
type Summary struct {
	Score               int `json:"score"`
	CorrectCount        int `json:"correctCount"`
	IncorrectCount      int `json:"incorrectCount"`
	SkippedCount        int `json:"skippedCount"`
	AverageResponseTime int `json:"averageResponseTime"` // seconds
}

// Result is the finalized per-user outcome of a quiz run. Exactly one Result
// exists per user per run; resubmission replaces it. Rank is derived by the
// ranking engine and recomputed whenever the Result set changes.
type Result struct {
	UserID              string    `json:"userId"`
	Score               int       `json:"score"`
	CorrectCount        int       `json:"correctCount"`
	IncorrectCount      int       `json:"incorrectCount"`
	SkippedCount        int       `json:"skippedCount"`
	AverageResponseTime int       `json:"averageResponseTime"` // seconds
	CompletionTime      int       `json:"completionTime"`      // seconds
	Rank                int       `json:"rank"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Leaderboard captures the ranked scoreboard for the current quiz run.
type Leaderboard struct {
	Entries   []Result  `json:"entries"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LifecycleState is the single global phase of the competition.
type LifecycleState string

const (
	LifecycleWaiting   LifecycleState = "waiting"
	LifecycleStarted   LifecycleState = "started"
	LifecycleCompleted LifecycleState = "completed"
)

// LifecycleSnapshot is a point-in-time view of the global quiz lifecycle.
// Epoch increments on every reset; results carrying a stale epoch are
// rejected rather than leaking into the new run.
type LifecycleSnapshot struct {
	State     LifecycleState `json:"state"`
	StartTime time.Time      `json:"startTime"`
	ResetTime time.Time      `json:"resetTime"`
	Epoch     uint64         `json:"epoch"`
}

// Identity is the opaque role-tagged identity supplied by the authentication
// collaborator. The core trusts it without re-validating.
type Identity struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Roles recognized by the transport layer.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)
