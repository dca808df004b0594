package branch

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/trainer/internal/clock"
	"github.com/zulandar/trainer/internal/dialogue"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	fc := clock.NewFake(t0)
	r, err := NewRegistry(RegistryOpts{Log: dialogue.NewLog(fc), Clock: fc})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func mustCreate(t *testing.T, r *Registry, topicID string) Branch {
	t.Helper()
	b, err := r.Create(topicID)
	if err != nil {
		t.Fatalf("Create(%s): %v", topicID, err)
	}
	return b
}

func TestGenerateID_Format(t *testing.T) {
	for i := 0; i < 50; i++ {
		id, err := GenerateID()
		if err != nil {
			t.Fatalf("GenerateID: %v", err)
		}
		if !strings.HasPrefix(id, "br-") || len(id) != 11 {
			t.Fatalf("id %q, want br- plus 8 hex chars", id)
		}
		for _, c := range id[3:] {
			if !strings.ContainsRune("0123456789abcdef", c) {
				t.Errorf("ID %q contains non-hex char %c", id, c)
			}
		}
	}
}

func TestNewRegistry_RequiresLog(t *testing.T) {
	if _, err := NewRegistry(RegistryOpts{}); err == nil {
		t.Fatal("expected error for nil log")
	}
}

func TestValidTransitions_AllStatusesPresent(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusPaused, StatusCompleted} {
		if _, ok := ValidTransitions[s]; !ok {
			t.Errorf("ValidTransitions missing key %q", s)
		}
	}
	if len(ValidTransitions[StatusCompleted]) != 0 {
		t.Error("completed must be terminal")
	}
}

func TestCreate_SeedsOneClientMessage(t *testing.T) {
	r := newTestRegistry(t)
	b := mustCreate(t, r, "card-block")

	if b.Status != StatusActive {
		t.Errorf("Status = %q, want active", b.Status)
	}
	if b.Score != nil {
		t.Errorf("Score = %v, want nil", *b.Score)
	}
	if !b.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want %v", b.CreatedAt, t0)
	}
	msgs := r.Messages(b.ID)
	if len(msgs) != 1 {
		t.Fatalf("seeded %d messages, want 1", len(msgs))
	}
	if msgs[0].Role != dialogue.RoleClient || msgs[0].Content != DefaultOpener {
		t.Errorf("opener = %+v", msgs[0])
	}
	if !slices.Equal(b.MessageIDs, []string{msgs[0].ID}) {
		t.Errorf("MessageIDs = %v, want [%s]", b.MessageIDs, msgs[0].ID)
	}
}

func TestCreate_OpenerOverride(t *testing.T) {
	fc := clock.NewFake(t0)
	r, err := NewRegistry(RegistryOpts{
		Log:   dialogue.NewLog(fc),
		Clock: fc,
		Opener: func(topicID string) string {
			if topicID == "loans" {
				return "Хочу взять кредит"
			}
			return ""
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	loans := mustCreate(t, r, "loans")
	other := mustCreate(t, r, "limits")

	if got := r.Messages(loans.ID)[0].Content; got != "Хочу взять кредит" {
		t.Errorf("loans opener = %q", got)
	}
	if got := r.Messages(other.ID)[0].Content; got != DefaultOpener {
		t.Errorf("fallback opener = %q", got)
	}
}

func TestCreate_EmptyTopic(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Create(""); err == nil {
		t.Fatal("expected error for empty topic id")
	}
	if len(r.List()) != 0 {
		t.Error("failed Create must not register a branch")
	}
}

func TestSend_AppendsSpecialistMessage(t *testing.T) {
	r := newTestRegistry(t)
	b := mustCreate(t, r, "card-block")

	msg, err := r.Send(b.ID, "  Сейчас заблокирую карту \n")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Role != dialogue.RoleSpecialist || msg.Content != "Сейчас заблокирую карту" {
		t.Errorf("msg = %+v", msg)
	}
	got, _ := r.Get(b.ID)
	if len(got.MessageIDs) != 2 || got.MessageIDs[1] != msg.ID {
		t.Errorf("MessageIDs = %v", got.MessageIDs)
	}
}

func TestSend_SoftFailures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(r *Registry, id string)
		id      string
		text    string
		wantErr error
	}{
		{"unknown branch", nil, "br-missing", "hi", ErrNotFound},
		{"empty text", nil, "", "   \t", ErrEmptyMessage},
		{"paused", func(r *Registry, id string) { _ = r.Pause(id) }, "", "hi", ErrInvalidTransition},
		{"completed", func(r *Registry, id string) { _ = r.Complete(id, 85) }, "", "hi", ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t)
			b := mustCreate(t, r, "card-block")
			if tt.prepare != nil {
				tt.prepare(r, b.ID)
			}
			before, _ := r.Get(b.ID)
			id := tt.id
			if id == "" {
				id = b.ID
			}

			_, err := r.Send(id, tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			after, _ := r.Get(b.ID)
			if len(r.Messages(b.ID)) != len(before.MessageIDs) {
				t.Error("message log grew on a failed send")
			}
			if after.Status != before.Status || !slices.Equal(after.MessageIDs, before.MessageIDs) {
				t.Errorf("branch changed: before %+v after %+v", before, after)
			}
		})
	}
}

func TestCanFinish(t *testing.T) {
	r := newTestRegistry(t)
	b := mustCreate(t, r, "card-block")
	if r.CanFinish(b.ID) {
		t.Error("CanFinish true with only the opener")
	}
	for i := 0; i < 3; i++ {
		if _, err := r.Send(b.ID, "ответ"); err != nil {
			t.Fatal(err)
		}
		if !r.CanFinish(b.ID) {
			t.Errorf("CanFinish false after %d sends", i+1)
		}
	}
	if r.CanFinish("br-missing") {
		t.Error("CanFinish true for unknown branch")
	}
}

func TestPauseResume_PreservesMessagesAndScore(t *testing.T) {
	r := newTestRegistry(t)
	b := mustCreate(t, r, "card-block")
	if _, err := r.Send(b.ID, "Сейчас заблокирую карту"); err != nil {
		t.Fatal(err)
	}
	before, _ := r.Get(b.ID)

	if err := r.Pause(b.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := r.Resume(b.ID); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	after, _ := r.Get(b.ID)
	if after.Status != StatusActive {
		t.Errorf("Status = %q, want active", after.Status)
	}
	if !slices.Equal(before.MessageIDs, after.MessageIDs) {
		t.Errorf("MessageIDs changed: %v -> %v", before.MessageIDs, after.MessageIDs)
	}
	if after.Score != nil {
		t.Error("Score set by pause/resume")
	}
}

func TestTransitions_Invalid(t *testing.T) {
	r := newTestRegistry(t)
	b := mustCreate(t, r, "card-block")

	if err := r.Resume(b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Resume(active) = %v, want ErrInvalidTransition", err)
	}
	if err := r.Pause(b.ID); err != nil {
		t.Fatal(err)
	}
	if err := r.Pause(b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Pause(paused) = %v, want ErrInvalidTransition", err)
	}
	if err := r.Complete(b.ID, 70); err != nil {
		t.Fatalf("Complete(paused): %v", err)
	}
	for name, fn := range map[string]func(string) error{"Pause": r.Pause, "Resume": r.Resume} {
		if err := fn(b.ID); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s(completed) = %v, want ErrInvalidTransition", name, err)
		}
	}
	if err := r.Complete(b.ID, 85); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Complete(completed) = %v, want ErrInvalidTransition", err)
	}
	got, _ := r.Get(b.ID)
	if got.Score == nil || *got.Score != 70 {
		t.Errorf("Score = %v, want 70", got.Score)
	}
	if err := r.Pause("br-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Pause(missing) = %v, want ErrNotFound", err)
	}
}

func TestComplete_ScoreRange(t *testing.T) {
	r := newTestRegistry(t)
	b := mustCreate(t, r, "card-block")
	for _, s := range []int{-1, 101} {
		if err := r.Complete(b.ID, s); !errors.Is(err, ErrInvalidScore) {
			t.Errorf("Complete(%d) = %v, want ErrInvalidScore", s, err)
		}
	}
	got, _ := r.Get(b.ID)
	if got.Status != StatusActive || got.Score != nil {
		t.Errorf("branch changed by invalid score: %+v", got)
	}
}

func TestScoreIffCompleted(t *testing.T) {
	r := newTestRegistry(t)
	mustCreate(t, r, "a")
	p := mustCreate(t, r, "p")
	c := mustCreate(t, r, "c")
	_ = r.Pause(p.ID)
	_ = r.Complete(c.ID, 0)

	for _, b := range r.List() {
		if (b.Score != nil) != (b.Status == StatusCompleted) {
			t.Errorf("branch %s: status %s with score %v", b.ID, b.Status, b.Score)
		}
	}
}

func TestDeleteAndList(t *testing.T) {
	r := newTestRegistry(t)
	a := mustCreate(t, r, "a")
	b := mustCreate(t, r, "b")
	c := mustCreate(t, r, "c")

	if err := r.Delete(b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var ids []string
	for _, br := range r.List() {
		ids = append(ids, br.ID)
	}
	if !slices.Equal(ids, []string{a.ID, c.ID}) {
		t.Errorf("List = %v, want [%s %s]", ids, a.ID, c.ID)
	}
	if _, ok := r.Get(b.ID); ok {
		t.Error("deleted branch still retrievable")
	}
	if len(r.Messages(b.ID)) != 0 {
		t.Error("messages of deleted branch still retrievable")
	}
	if err := r.Delete(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := newTestRegistry(t)
	b := mustCreate(t, r, "a")
	got, _ := r.Get(b.ID)
	got.MessageIDs[0] = "tampered"
	got.Status = StatusCompleted
	again, _ := r.Get(b.ID)
	if again.MessageIDs[0] == "tampered" || again.Status != StatusActive {
		t.Error("Get exposed internal state")
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[Status]string{
		StatusActive:    "Активная",
		StatusPaused:    "В процессе",
		StatusCompleted: "Завершена",
		Status("x"):     "x",
	}
	for s, want := range tests {
		if got := s.Label(); got != want {
			t.Errorf("%q.Label() = %q, want %q", s, got, want)
		}
	}
}
