package main

import (
	"strings"
	"testing"

	"github.com/zulandar/trainer/internal/analysis"
)

func TestPractice_FinishWritesHistory(t *testing.T) {
	cfg := writeConfig(t, "")
	input := strings.Join([]string{
		"Здравствуйте! Сейчас помогу заблокировать карту.",
		"/status",
		"/finish",
		"/quit",
	}, "\n")

	out, err := run(t, input, "practice", "-c", cfg, "--topic", "card-block")
	if err != nil {
		t.Fatalf("practice: %v", err)
	}
	for _, want := range []string{
		"Session br-",
		"Клиент: Добрый день!",
		"Can finish: true",
		"Анализ ответов...",
		"Готово.",
		analysis.SummaryPositive,
		"5/5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	hist, err := run(t, "", "history", "list", "-c", cfg)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	if !strings.Contains(hist, "Блокировка карты") {
		t.Errorf("history should list the finished session:\n%s", hist)
	}
}

func TestPractice_FinishNowDeclined(t *testing.T) {
	cfg := writeConfig(t, "")
	input := "Добрый день!\n/finish-now\nn\n/status\n"

	out, err := run(t, input, "practice", "-c", cfg, "-t", "card-block")
	if err != nil {
		t.Fatalf("practice: %v", err)
	}
	if !strings.Contains(out, "Завершить диалог сейчас?") {
		t.Errorf("expected confirmation prompt:\n%s", out)
	}
	if !strings.Contains(out, "Cancelled.") {
		t.Errorf("expected cancellation:\n%s", out)
	}
	if !strings.Contains(out, "Phase:      dialogue") {
		t.Errorf("session should still be in dialogue:\n%s", out)
	}
}

func TestPractice_FinishNowConfirmed(t *testing.T) {
	cfg := writeConfig(t, "")
	input := "Добрый день!\n/finish-now\nда\n"

	out, err := run(t, input, "practice", "-c", cfg, "-t", "card-block")
	if err != nil {
		t.Fatalf("practice: %v", err)
	}
	if !strings.Contains(out, analysis.SummaryPositive) || !strings.Contains(out, "4/5") {
		t.Errorf("finish-now score 70 should give level 4 blocks:\n%s", out)
	}
}

func TestPractice_PauseBlocksMessages(t *testing.T) {
	cfg := writeConfig(t, "")
	input := "/pause\nпривет\n/resume\nпривет\n/branches\n"

	out, err := run(t, input, "practice", "-c", cfg, "-t", "card-block")
	if err != nil {
		t.Fatalf("practice: %v", err)
	}
	if !strings.Contains(out, "-- paused") || !strings.Contains(out, "-- dialogue") {
		t.Errorf("expected phase changes:\n%s", out)
	}
	if strings.Count(out, "error:") != 1 {
		t.Errorf("expected exactly one rejected message while paused:\n%s", out)
	}
	if !strings.Contains(out, "* br-") || !strings.Contains(out, "Активная") {
		t.Errorf("expected current active branch in list:\n%s", out)
	}
}

func TestPractice_TopicFromStdin(t *testing.T) {
	cfg := writeConfig(t, "")
	out, err := run(t, "pin-change\n/back\n/status\n", "practice", "-c", cfg)
	if err != nil {
		t.Fatalf("practice: %v", err)
	}
	if !strings.Contains(out, "Session br-") {
		t.Errorf("expected session start:\n%s", out)
	}
	if !strings.Contains(out, "Phase:      welcome") {
		t.Errorf("/back should return to welcome:\n%s", out)
	}
}

func TestPractice_UnknownTopic(t *testing.T) {
	_, err := run(t, "", "practice", "-c", writeConfig(t, ""), "-t", "no-such-topic")
	if err == nil {
		t.Fatal("expected error for unknown topic")
	}
}

func TestPractice_UnknownCommand(t *testing.T) {
	out, err := run(t, "/dance\n/finish\n", "practice", "-c", writeConfig(t, ""), "-t", "card-block")
	if err != nil {
		t.Fatalf("practice: %v", err)
	}
	if !strings.Contains(out, "unknown command /dance") {
		t.Errorf("expected unknown command error:\n%s", out)
	}
}

func TestPractice_HTMLReply(t *testing.T) {
	out, err := run(t, "/html <b>Готово</b><script>x</script>\n/switch\n", "practice", "-c", writeConfig(t, ""), "-t", "card-block")
	if err != nil {
		t.Fatalf("practice: %v", err)
	}
	if strings.Contains(out, "error: ") && !strings.Contains(out, "usage: /switch") {
		t.Errorf("unexpected error:\n%s", out)
	}
}
