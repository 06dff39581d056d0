package training

import (
	"errors"
	"time"

	"github.com/resqtap/resqtap/internal/ulid"
)

// Quiz state machine errors
var (
	ErrQuizComplete    = errors.New("quiz session already complete")
	ErrInvalidChoice   = errors.New("choice index out of range")
	ErrQuizNotFinished = errors.New("quiz session has unanswered questions")
	ErrNoQuestions     = errors.New("quiz requires at least one question")
)

const unanswered = -1

// Question is a quiz question supplied by the caller; the question bank
// content itself lives outside this package.
type Question struct {
	ID          string
	Prompt      string
	Options     []string
	Answer      int // Index of the correct option
	Explanation string
}

// Feedback describes the outcome of answering one question
type Feedback struct {
	Correct       bool
	CorrectAnswer int
	Explanation   string
}

// Quiz drives one training session from start to completion. All state
// transitions go through its methods; the completed Session is produced
// exactly once by Complete.
type Quiz struct {
	id        string
	kind      SessionType
	questions []Question
	answers   []int
	index     int
	startedAt time.Time
	complete  bool
	now       func() time.Time
}

// NewQuiz starts a quiz session over the given questions
func NewQuiz(kind SessionType, questions []Question) (*Quiz, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	answers := make([]int, len(questions))
	for i := range answers {
		answers[i] = unanswered
	}

	q := &Quiz{
		id:        ulid.SessionID(),
		kind:      kind,
		questions: questions,
		answers:   answers,
		now:       time.Now,
	}
	q.startedAt = q.now().UTC()
	return q, nil
}

// ID returns the session identifier assigned at start
func (q *Quiz) ID() string {
	return q.id
}

// Current returns the question awaiting an answer, and its index
func (q *Quiz) Current() (Question, int) {
	return q.questions[q.index], q.index
}

// Answer records the choice for the current question and advances to
// the next one.
func (q *Quiz) Answer(choice int) (*Feedback, error) {
	if q.complete || q.Remaining() == 0 {
		return nil, ErrQuizComplete
	}
	question := q.questions[q.index]
	if choice < 0 || choice >= len(question.Options) {
		return nil, ErrInvalidChoice
	}

	q.answers[q.index] = choice
	if q.index < len(q.questions)-1 {
		q.index++
	}

	return &Feedback{
		Correct:       choice == question.Answer,
		CorrectAnswer: question.Answer,
		Explanation:   question.Explanation,
	}, nil
}

// Remaining returns the number of unanswered questions
func (q *Quiz) Remaining() int {
	remaining := 0
	for _, a := range q.answers {
		if a == unanswered {
			remaining++
		}
	}
	return remaining
}

// Complete finishes the session and returns the immutable Session
// record ready for the history.
func (q *Quiz) Complete() (Session, error) {
	if q.complete {
		return Session{}, ErrQuizComplete
	}
	if q.Remaining() > 0 {
		return Session{}, ErrQuizNotFinished
	}

	score := 0
	questionIDs := make([]string, len(q.questions))
	correctAnswers := make([]int, len(q.questions))
	for i, question := range q.questions {
		questionIDs[i] = question.ID
		correctAnswers[i] = question.Answer
		if q.answers[i] == question.Answer {
			score++
		}
	}

	q.complete = true

	return Session{
		ID:             q.id,
		Type:           q.kind,
		StartedAt:      q.startedAt,
		FinishedAt:     q.now().UTC(),
		Score:          score,
		Total:          len(q.questions),
		QuestionIDs:    questionIDs,
		Answers:        append([]int(nil), q.answers...),
		CorrectAnswers: correctAnswers,
	}, nil
}
