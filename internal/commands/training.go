package commands

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/resqtap/resqtap/internal/app"
	"github.com/resqtap/resqtap/internal/training"
)

// TrainingCommand returns the CLI command for quiz training
func TrainingCommand() *cli.Command {
	return &cli.Command{
		Name:        "training",
		Usage:       "Run quizzes and review training history",
		Description: "Take first-aid quizzes, review past sessions, and track training progress",
		Subcommands: []*cli.Command{
			{
				Name:        "run",
				Usage:       "Run an interactive quiz",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Question pool: adult, child, infant, or mixed",
						Value: string(training.TypeMixed),
					},
				},
				Action: trainingRunAction,
			},
			{
				Name:   "history",
				Usage:  "Show past sessions",
				Action: trainingHistoryAction,
			},
			{
				Name:   "stats",
				Usage:  "Show training progress",
				Action: trainingStatsAction,
			},
			{
				Name:   "clear",
				Usage:  "Clear the local training history",
				Action: trainingClearAction,
			},
		},
		Action: trainingHistoryAction,
	}
}

// builtinQuestions is a small embedded pool; a full question bank ships
// with the app content, not with this binary.
func builtinQuestions(kind training.SessionType) []training.Question {
	pool := map[training.SessionType][]training.Question{
		training.TypeAdult: {
			{
				ID:          "adult-cpr-rate",
				Prompt:      "What is the recommended chest compression rate for adult CPR?",
				Options:     []string{"60-80 per minute", "100-120 per minute", "140-160 per minute"},
				Answer:      1,
				Explanation: "Guidelines recommend 100 to 120 compressions per minute for adults.",
			},
			{
				ID:          "adult-choking",
				Prompt:      "A conscious adult is choking and cannot speak. What do you do first?",
				Options:     []string{"Give abdominal thrusts", "Give five back blows", "Offer water"},
				Answer:      1,
				Explanation: "Start with up to five back blows, then alternate with abdominal thrusts.",
			},
		},
		training.TypeChild: {
			{
				ID:          "child-cpr-depth",
				Prompt:      "How deep should chest compressions be for a child?",
				Options:     []string{"About one third of the chest depth", "As deep as for an adult", "One centimetre"},
				Answer:      0,
				Explanation: "Compress about one third of the chest depth, roughly 5 cm for a child.",
			},
		},
		training.TypeInfant: {
			{
				ID:          "infant-compressions",
				Prompt:      "How do you give chest compressions to an infant?",
				Options:     []string{"With the heel of one hand", "With two fingers", "With both hands interlocked"},
				Answer:      1,
				Explanation: "Use two fingers in the centre of the chest, just below the nipple line.",
			},
		},
	}

	if kind == training.TypeMixed {
		var all []training.Question
		for _, t := range []training.SessionType{training.TypeAdult, training.TypeChild, training.TypeInfant} {
			all = append(all, pool[t]...)
		}
		return all
	}
	return pool[kind]
}

func trainingRunAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	kind := training.SessionType(strings.ToLower(c.String("type")))
	questions := builtinQuestions(kind)
	quiz, err := training.NewQuiz(kind, questions)
	if err != nil {
		return fmt.Errorf("starting quiz: %w", err)
	}

	headerColor.Printf("Training quiz (%s), %d questions\n\n", kind, len(questions))
	reader := bufio.NewReader(os.Stdin)

	for quiz.Remaining() > 0 {
		question, idx := quiz.Current()
		fmt.Printf("%d. %s\n", idx+1, question.Prompt)
		for i, option := range question.Options {
			fmt.Printf("   %d) %s\n", i+1, option)
		}

		choice, err := readChoice(reader, len(question.Options))
		if err != nil {
			return err
		}

		feedback, err := quiz.Answer(choice)
		if err != nil {
			return err
		}

		if feedback.Correct {
			successColor.Println("   Correct!")
		} else {
			errorColor.Printf("   Not quite, the answer was %d)\n", feedback.CorrectAnswer+1)
		}
		if feedback.Explanation != "" {
			dimColor.Printf("   %s\n", feedback.Explanation)
		}
		fmt.Println()
	}

	session, err := quiz.Complete()
	if err != nil {
		return err
	}
	if err := application.Training.AddSession(c.Context, session); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	headerColor.Printf("Done! Score: %d/%d\n", session.Score, session.Total)
	return nil
}

func readChoice(reader *bufio.Reader, options int) (int, error) {
	for {
		fmt.Print("Your answer: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("reading answer: %w", err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= 1 && n <= options {
			return n - 1, nil
		}
		warnColor.Printf("Please enter a number between 1 and %d\n", options)
	}
}

func trainingHistoryAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	sessions := application.Training.Sessions(c.Context)
	if len(sessions) == 0 {
		dimColor.Println("No training sessions yet. Use 'resqtap training run' to take a quiz.")
		return nil
	}

	headerColor.Printf("Training history (%d sessions)\n", len(sessions))
	t := newTable()
	t.AppendHeader(table.Row{"Finished", "Type", "Score"})
	for _, s := range sessions {
		t.AppendRow(table.Row{
			s.FinishedAt.Local().Format("2006-01-02 15:04"),
			string(s.Type),
			fmt.Sprintf("%d/%d", s.Score, s.Total),
		})
	}
	t.Render()

	return nil
}

func trainingStatsAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	summary := application.Training.Progress(c.Context, application.Config.Training.RefreshMonths)

	headerColor.Println("Training progress")
	t := newTable()
	t.AppendRow(table.Row{"Total sessions", summary.TotalSessions})
	if summary.LastTrainingDate != nil {
		t.AppendRow(table.Row{"Last session", summary.LastTrainingDate.Local().Format("2006-01-02")})
	} else {
		t.AppendRow(table.Row{"Last session", "-"})
	}
	t.AppendRow(table.Row{"Average score", fmt.Sprintf("%.0f%%", summary.AverageScore*100)})
	t.Render()

	if len(summary.MonthlyCounts) > 0 {
		months := make([]string, 0, len(summary.MonthlyCounts))
		for month := range summary.MonthlyCounts {
			months = append(months, month)
		}
		sort.Strings(months)

		mt := newTable()
		mt.AppendHeader(table.Row{"Month", "Sessions"})
		for _, month := range months {
			mt.AppendRow(table.Row{month, summary.MonthlyCounts[month]})
		}
		mt.Render()
	}

	if summary.RefreshOverdue {
		warnColor.Println("A refresher is overdue. Consider running a quiz.")
	}
	return nil
}

func trainingClearAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if err := application.Training.ClearHistory(c.Context); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	successColor.Println("Training history cleared")
	return nil
}
