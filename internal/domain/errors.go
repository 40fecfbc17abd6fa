package domain

import "errors"

var (
	// ErrOutOfRange is returned when the current question index is past the
	// end of the bank. Callers must check for a finished session first.
	ErrOutOfRange = errors.New("question index out of range")
	// ErrStaleSubmission indicates an answer for a question that is no longer
	// current. Never fatal to the session.
	ErrStaleSubmission = errors.New("submission does not match the current question")
	// ErrDuplicateResult indicates a second finish signal for an
	// already-finalized user; treated as a no-op by callers.
	ErrDuplicateResult = errors.New("result already recorded for user")
	// ErrStaleEpoch indicates a result produced before the last reset.
	ErrStaleEpoch = errors.New("result belongs to a previous quiz run")
	// ErrPersistenceFailure wraps a failed collaborator save or read. The
	// session keeps its in-memory progress; the caller may retry.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrQuizNotStarted is returned when a student acts before the
	// administrator has started the quiz.
	ErrQuizNotStarted = errors.New("quiz has not started")
	// ErrSessionNotFound is returned when a user acts before joining.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrEmptyQuestionBank indicates the bank has no questions to serve.
	ErrEmptyQuestionBank = errors.New("question bank is empty")
	// ErrBankNotFound indicates the question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
)
