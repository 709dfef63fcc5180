package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/quizora/exam-agent/internal/config"
	"github.com/quizora/exam-agent/internal/examapi"
	"github.com/quizora/exam-agent/internal/logger"
	"github.com/quizora/exam-agent/internal/model"
	"github.com/quizora/exam-agent/internal/session"
)

// examcli takes an exam from the terminal, driving the session
// controller directly instead of going through the HTTP bridge.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		fmt.Println("Usage: examcli <exam-id>")
		os.Exit(1)
	}
	examID := os.Args[1]

	// ─── Token Input (no echo) ─────────────────────────────────────────
	fmt.Print("Access token: ")
	tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error: could not read token:", err)
		os.Exit(1)
	}
	token := strings.TrimSpace(string(tokenBytes))

	if err := examapi.CheckCredential(token); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	// ─── Session Controller ────────────────────────────────────────────
	apiClient := examapi.NewClient(cfg.ExamAPIBase, cfg.HTTPTimeout, log)
	ctrl := session.New(apiClient, session.NotifierFunc(printNotice), session.Options{
		WarningMarks:          cfg.WarningMarks,
		TabSwitchLimit:        cfg.TabSwitchLimit,
		AutoSubmitGrace:       cfg.AutoSubmitGrace,
		ResumeOnSubmitFailure: cfg.ResumeOnSubmitFailure,
	}, log)

	paper, err := ctrl.Start(context.Background(), examID, token)
	if err != nil {
		fmt.Println("Error: could not start the exam:", err)
		os.Exit(1)
	}

	fmt.Printf("\n=== %s ===\n", paper.Title)
	fmt.Printf("%d question(s), %d minute(s)\n", len(paper.Questions), paper.DurationSeconds/60)
	fmt.Println("Type an answer, or a command: :next :prev :goto N :status :submit :quit")

	runPrompt(ctrl, paper)
}

func runPrompt(ctrl *session.Controller, paper *model.ExamPaper) {
	reader := bufio.NewReader(os.Stdin)
	current := 0

	for {
		if ctrl.Status() == model.SessionStatusCompleted {
			printResult(ctrl.Snapshot().Result)
			return
		}

		showQuestion(ctrl, paper, current)
		fmt.Printf("[%d/%d]> ", current+1, len(paper.Questions))
		line, err := reader.ReadString('\n')
		if err != nil {
			_ = ctrl.Abandon()
			return
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			current = next(current, len(paper.Questions))
		case strings.HasPrefix(line, ":"):
			if done := runCommand(ctrl, paper, reader, line, &current); done {
				return
			}
		default:
			if err := ctrl.SetAnswer(current, line); err != nil {
				fmt.Println("Error:", err)
				continue
			}
			current = next(current, len(paper.Questions))
		}
	}
}

// runCommand executes one ":" command; returns true when the session is over.
func runCommand(ctrl *session.Controller, paper *model.ExamPaper, reader *bufio.Reader, line string, current *int) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":next", ":n":
		*current = next(*current, len(paper.Questions))
	case ":prev", ":p":
		if *current > 0 {
			*current--
		}
	case ":goto", ":g":
		if len(fields) < 2 {
			fmt.Println("Usage: :goto N")
			return false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(paper.Questions) {
			fmt.Printf("Question number must be 1..%d\n", len(paper.Questions))
			return false
		}
		*current = n - 1
	case ":status":
		printStatus(ctrl.Snapshot())
	case ":submit":
		return submit(ctrl, reader)
	case ":quit", ":q":
		fmt.Print("Abandon the exam without submitting? [y/N]: ")
		if confirmed, _ := reader.ReadString('\n'); strings.TrimSpace(strings.ToLower(confirmed)) == "y" {
			_ = ctrl.Abandon()
			fmt.Println("Exam abandoned.")
			return true
		}
	default:
		fmt.Println("Unknown command:", fields[0])
	}
	return false
}

// submit runs the manual submission flow, asking for confirmation when
// unanswered questions remain. Returns true when the session is over.
func submit(ctrl *session.Controller, reader *bufio.Reader) bool {
	confirmed := false
	for {
		result, err := ctrl.RequestSubmission(context.Background(), session.ReasonManual, confirmed)
		if err == nil {
			printResult(result)
			return true
		}

		var confirmErr *session.ConfirmationRequiredError
		switch {
		case errors.As(err, &confirmErr):
			fmt.Printf("You have %d unanswered question(s). Submit anyway? [y/N]: ", confirmErr.Unanswered)
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(strings.ToLower(answer)) != "y" {
				return false
			}
			confirmed = true
		case examapi.IsRecoverable(err):
			fmt.Println("Submission failed:", err)
			fmt.Print("Retry now? [Y/n]: ")
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(strings.ToLower(answer)) == "n" {
				fmt.Println("Answers are kept. Use :submit to retry.")
				_ = ctrl.Resume()
				return false
			}
			_ = ctrl.Resume()
		default:
			fmt.Println("Submission failed:", err)
			return false
		}
	}
}

func showQuestion(ctrl *session.Controller, paper *model.ExamPaper, index int) {
	q := paper.Questions[index]
	fmt.Println()
	if q.Section != nil {
		fmt.Printf("-- %s --\n", q.Section.Title)
	}
	fmt.Printf("Q%d (%d mark(s)): %s\n", index+1, q.Marks, q.Prompt)
	if len(q.Options) > 0 {
		labels := make([]string, 0, len(q.Options))
		for label := range q.Options {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			fmt.Printf("  %s) %s\n", label, q.Options[label])
		}
	}
	if answer, ok := ctrl.Answer(index); ok {
		fmt.Printf("  (current answer: %s)\n", answer)
	}
}

func printStatus(snap session.Snapshot) {
	fmt.Printf("\nStatus: %s | remaining: %s | answered: %d/%d\n",
		snap.Status, formatClock(snap.RemainingSeconds), snap.AnsweredCount, snap.TotalQuestions)
	fmt.Printf("Violations: %d tab switch(es), %d copy, %d paste, %d right-click\n",
		snap.Integrity.TabSwitches, snap.Integrity.CopyAttempts,
		snap.Integrity.PasteAttempts, snap.Integrity.RightClickAttempts)
}

func printNotice(n session.Notice) {
	fmt.Printf("\n*** %s\n", n.Message)
	if n.Kind == session.NoticeSubmitted && n.Result != nil {
		printResult(n.Result)
	}
}

func printResult(result *model.ExamResult) {
	if result == nil {
		return
	}
	fmt.Println("\n=== Result ===")
	fmt.Printf("Score: %.1f / %.1f (%.1f%%)\n", result.Score, result.TotalMarks, result.Percentage)
	fmt.Printf("Correct answers: %d\n", result.CorrectAnswers)
	fmt.Printf("Time taken: %s\n", formatClock(result.TimeTaken))
}

func next(current, total int) int {
	if current+1 < total {
		return current + 1
	}
	return current
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
