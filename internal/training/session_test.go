package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quizQuestions() []Question {
	return []Question{
		{ID: "q1", Prompt: "First?", Options: []string{"a", "b", "c"}, Answer: 1, Explanation: "because"},
		{ID: "q2", Prompt: "Second?", Options: []string{"a", "b"}, Answer: 0},
		{ID: "q3", Prompt: "Third?", Options: []string{"a", "b", "c", "d"}, Answer: 3},
	}
}

func TestNewQuizRequiresQuestions(t *testing.T) {
	_, err := NewQuiz(TypeAdult, nil)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestQuizFlow(t *testing.T) {
	quiz, err := NewQuiz(TypeChild, quizQuestions())
	require.NoError(t, err)
	assert.NotEmpty(t, quiz.ID())
	assert.Equal(t, 3, quiz.Remaining())

	current, idx := quiz.Current()
	assert.Equal(t, "q1", current.ID)
	assert.Equal(t, 0, idx)

	fb, err := quiz.Answer(1)
	require.NoError(t, err)
	assert.True(t, fb.Correct)
	assert.Equal(t, "because", fb.Explanation)

	fb, err = quiz.Answer(1)
	require.NoError(t, err)
	assert.False(t, fb.Correct)
	assert.Equal(t, 0, fb.CorrectAnswer)

	fb, err = quiz.Answer(3)
	require.NoError(t, err)
	assert.True(t, fb.Correct)
	assert.Equal(t, 0, quiz.Remaining())

	session, err := quiz.Complete()
	require.NoError(t, err)
	assert.Equal(t, quiz.ID(), session.ID)
	assert.Equal(t, TypeChild, session.Type)
	assert.Equal(t, 2, session.Score)
	assert.Equal(t, 3, session.Total)
	assert.Equal(t, []string{"q1", "q2", "q3"}, session.QuestionIDs)
	assert.Equal(t, []int{1, 1, 3}, session.Answers)
	assert.False(t, session.FinishedAt.Before(session.StartedAt))
	require.NoError(t, session.Validate())

	_, err = quiz.Complete()
	assert.ErrorIs(t, err, ErrQuizComplete, "Completing twice must fail")
	_, err = quiz.Answer(0)
	assert.ErrorIs(t, err, ErrQuizComplete)
}

func TestQuizRejectsOutOfRangeChoice(t *testing.T) {
	quiz, err := NewQuiz(TypeAdult, quizQuestions())
	require.NoError(t, err)

	_, err = quiz.Answer(-1)
	assert.ErrorIs(t, err, ErrInvalidChoice)
	_, err = quiz.Answer(3)
	assert.ErrorIs(t, err, ErrInvalidChoice, "q1 has three options")
	assert.Equal(t, 3, quiz.Remaining(), "Bad choices should not advance")
}

func TestQuizAnswerRejectedOnceAllAnswered(t *testing.T) {
	quiz, err := NewQuiz(TypeAdult, quizQuestions())
	require.NoError(t, err)

	for _, choice := range []int{1, 0, 3} {
		_, err = quiz.Answer(choice)
		require.NoError(t, err)
	}

	// A further answer must not overwrite the final question's choice
	_, err = quiz.Answer(0)
	assert.ErrorIs(t, err, ErrQuizComplete)

	session, err := quiz.Complete()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 3}, session.Answers)
	assert.Equal(t, 3, session.Score)
}

func TestQuizCompleteRequiresAllAnswers(t *testing.T) {
	quiz, err := NewQuiz(TypeAdult, quizQuestions())
	require.NoError(t, err)

	_, err = quiz.Answer(0)
	require.NoError(t, err)

	_, err = quiz.Complete()
	assert.ErrorIs(t, err, ErrQuizNotFinished)
}
