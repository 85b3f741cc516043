package memory

import (
	"context"
	"testing"
)

func TestJournalRoundTrip(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()

	_ = j.Record(ctx, "alice:9", 1, "A")
	_ = j.Record(ctx, "alice:9", 2, "")
	_ = j.Record(ctx, "alice:9", 1, "B")
	_ = j.Record(ctx, "bob:9", 1, "C")

	got, err := j.Restore(ctx, "alice:9")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(got.Answers) != 2 || got.Answers[1] != "B" || got.Answers[2] != "" {
		t.Fatalf("unexpected journal %v", got.Answers)
	}
	if got.TimerSaved {
		t.Fatalf("expected no saved timer")
	}

	got.Answers[1] = "mutated"
	again, _ := j.Restore(ctx, "alice:9")
	if again.Answers[1] != "B" {
		t.Fatalf("restore must return a copy")
	}

	_ = j.RecordRemaining(ctx, "alice:9", 40)
	if again, _ := j.Restore(ctx, "alice:9"); !again.TimerSaved || again.Remaining != 40 {
		t.Fatalf("expected 40s saved, got %+v", again)
	}

	_ = j.Clear(ctx, "alice:9")
	if got, _ := j.Restore(ctx, "alice:9"); len(got.Answers) != 0 || got.TimerSaved {
		t.Fatalf("expected cleared journal, got %+v", got)
	}
	if got, _ := j.Restore(ctx, "bob:9"); got.Answers[1] != "C" {
		t.Fatalf("other journals must survive, got %v", got.Answers)
	}
}
