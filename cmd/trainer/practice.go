package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zulandar/trainer/internal/dialogue"
	"github.com/zulandar/trainer/internal/richtext"
	"github.com/zulandar/trainer/internal/trainer"
)

const practiceHelp = `Commands:
  <text>          reply to the client
  /html <markup>  reply with formatted text (b, i, u, s, lists)
  /pause          pause the session
  /resume         resume a paused session
  /finish         finish and analyse the session
  /finish-now     finish early after confirmation
  /back           return to topic selection
  /branches       list sessions
  /switch <id>    focus another session
  /status         show phase, timer and finish availability
  /help           show this help
  /quit           leave the trainer`

var stepLabels = map[trainer.Step]string{
	trainer.StepAnalyze:  "Анализ ответов...",
	trainer.StepSnapshot: "Формирование отчёта...",
	trainer.StepPersist:  "Сохранение результатов...",
	trainer.StepComplete: "Готово.",
}

func newPracticeCmd() *cobra.Command {
	var (
		configPath string
		topicID    string
	)

	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Run an interactive practice session in the terminal",
		Long:  "Starts a dialogue on a topic and reads replies and slash commands from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(ctx context.Context, a *app) error {
				return runPractice(ctx, cmd, a, topicID)
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&topicID, "topic", "t", "", "topic id to start with")
	return cmd
}

// session is the terminal front end of one controller.
type session struct {
	ctx  context.Context
	a    *app
	out  io.Writer
	in   *bufio.Scanner
	tty  bool
	quit bool
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runPractice(ctx context.Context, cmd *cobra.Command, a *app, topicID string) error {
	s := &session{
		ctx: ctx,
		a:   a,
		out: cmd.OutOrStdout(),
		in:  bufio.NewScanner(cmd.InOrStdin()),
		tty: isTerminal(cmd.InOrStdin()),
	}

	cancel := a.ctrl.Subscribe(s.onEvent)
	defer cancel()

	if topicID == "" {
		writeTopics(s.out, a.catalog.Recommended(userContext(a.cfg)))
		line, ok := s.readLine("topic> ")
		if !ok {
			return nil
		}
		topicID = strings.TrimSpace(line)
	}
	if err := s.start(topicID); err != nil {
		return err
	}

	for !s.quit {
		line, ok := s.readLine("> ")
		if !ok {
			break
		}
		if err := s.handle(strings.TrimSpace(line)); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
	return nil
}

func (s *session) readLine(prompt string) (string, bool) {
	if s.tty {
		fmt.Fprint(s.out, prompt)
	}
	if !s.in.Scan() {
		return "", false
	}
	return s.in.Text(), true
}

func (s *session) start(topicID string) error {
	b, err := s.a.ctrl.Select(topicID)
	if err != nil {
		return err
	}
	t, _ := s.a.catalog.Get(b.TopicID)
	fmt.Fprintf(s.out, "Session %s: %s\n", b.ID, t.Name)
	for _, m := range s.a.ctrl.Snapshot().Messages {
		s.printMessage(m)
	}
	return nil
}

func (s *session) handle(line string) error {
	ctrl := s.a.ctrl
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		_, err := ctrl.Send(line)
		return err
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/html":
		_, err := ctrl.SendRich(richtext.NewBuffer(arg))
		return err
	case "/pause":
		return ctrl.Pause()
	case "/resume":
		return ctrl.Resume()
	case "/finish":
		id, err := ctrl.Finish(s.ctx, s.a.cfg.Scoring.Finish)
		return s.report(id, err)
	case "/finish-now":
		id, err := ctrl.FinishNow(s.ctx, s.a.cfg.Scoring.FinishNow, s.confirm)
		if errors.Is(err, trainer.ErrNotConfirmed) {
			fmt.Fprintln(s.out, "Cancelled.")
			return nil
		}
		return s.report(id, err)
	case "/back":
		return ctrl.Back()
	case "/branches":
		s.printBranches()
		return nil
	case "/switch":
		if arg == "" {
			return errors.New("usage: /switch <id>")
		}
		if err := ctrl.SelectBranch(arg); err != nil {
			return err
		}
		for _, m := range ctrl.Snapshot().Messages {
			s.printMessage(m)
		}
		return nil
	case "/status":
		s.printStatus()
		return nil
	case "/help":
		fmt.Fprintln(s.out, practiceHelp)
		return nil
	case "/quit", "/exit":
		s.quit = true
		return nil
	default:
		return fmt.Errorf("unknown command %s (try /help)", name)
	}
}

func (s *session) confirm(prompt string) bool {
	line, ok := s.readLine(prompt + " [y/N] ")
	if !s.tty {
		fmt.Fprintln(s.out, prompt)
	}
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "д", "да":
		return true
	}
	return false
}

func (s *session) report(id string, err error) error {
	if err != nil {
		return err
	}
	if id == "" {
		fmt.Fprintln(s.out, "No active session to finish.")
		return nil
	}
	e, ok := s.a.ctrl.HistoryEntry(s.ctx, id)
	if !ok {
		// The entry may not have been persisted; the session is still completed.
		fmt.Fprintf(s.out, "Session completed (%s), result not available from storage.\n", id)
		return nil
	}
	writeEntry(s.out, e)
	return nil
}

func (s *session) onEvent(ev trainer.Event) {
	switch ev.Kind {
	case trainer.EventPhase:
		fmt.Fprintf(s.out, "-- %s\n", ev.Phase)
	case trainer.EventAnalysisStep:
		if label, ok := stepLabels[ev.Step]; ok {
			fmt.Fprintf(s.out, "   %s\n", label)
		}
	}
}

func (s *session) printMessage(m dialogue.Message) {
	who := "Клиент"
	if m.Role == dialogue.RoleSpecialist {
		who = "Вы"
	}
	fmt.Fprintf(s.out, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), who, m.Content)
}

func (s *session) printBranches() {
	for _, b := range s.a.ctrl.Snapshot().Branches {
		marker := " "
		if b.Current {
			marker = "*"
		}
		fmt.Fprintf(s.out, "%s %s  %-12s %s\n", marker, b.ID, b.StatusLabel, b.TopicName)
	}
}

func (s *session) printStatus() {
	snap := s.a.ctrl.Snapshot()
	fmt.Fprintf(s.out, "Phase:      %s\n", snap.Phase)
	if snap.Current != nil {
		fmt.Fprintf(s.out, "Session:    %s (%s)\n", snap.Current.ID, snap.Current.Status.Label())
		fmt.Fprintf(s.out, "Elapsed:    %s\n", snap.Elapsed.Truncate(time.Second))
	}
	fmt.Fprintf(s.out, "Can finish: %t\n", snap.CanFinish)
}
