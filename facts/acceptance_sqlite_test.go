package facts_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"factmem/facts"
)

func openStore(t *testing.T, dsn string) (*facts.Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := facts.New(facts.WithStorageConn(db))
	if err := s.Storage.Build(); err != nil {
		t.Fatalf("migrate/build: %v", err)
	}
	return s, db
}

func TestAcceptance_SQLite_ExtractStorePrompt(t *testing.T) {
	s, _ := openStore(t, "file:factmem_test1?mode=memory&cache=shared")
	ctx := context.Background()

	ents, err := s.ProcessMessage(ctx, "user-123", "msg-1",
		"My name is John and I have two cats named Holly and Benny")
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	if len(ents) != 3 {
		t.Fatalf("expected 3 entities (name + two pets), got %d: %#v", len(ents), ents)
	}

	name, err := s.GetUserName(ctx, "user-123")
	if err != nil {
		t.Fatalf("get user name: %v", err)
	}
	if name != "John" {
		t.Fatalf("expected John, got %q", name)
	}

	pets, err := s.GetPetNames(ctx, "user-123")
	if err != nil {
		t.Fatalf("get pet names: %v", err)
	}
	if len(pets) != 2 {
		t.Fatalf("expected 2 pets, got %#v", pets)
	}

	res := s.GenerateSystemPromptWithFacts(ctx, "user-123", "You are a helpful assistant.\n\nExamples:\nUser: hi", nil)
	for _, want := range []string{"John", "Holly", "Benny", "## CRITICAL USER FACTS"} {
		if !strings.Contains(res.EnhancedPrompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, res.EnhancedPrompt)
		}
	}
	check := facts.ValidateFactInclusion(res.EnhancedPrompt, s.GetAllCriticalFacts(ctx, "user-123"))
	if !check.IsValid {
		t.Fatalf("generated prompt failed validation, missing: %v", check.MissingFacts)
	}
}

func TestAcceptance_SQLite_CorrectionAndCacheInvalidation(t *testing.T) {
	s, _ := openStore(t, "file:factmem_test2?mode=memory&cache=shared")
	ctx := context.Background()

	if _, err := s.ProcessMessage(ctx, "user-123", "msg-1", "My name is John"); err != nil {
		t.Fatalf("process message: %v", err)
	}
	// Warm the cache.
	if got := s.GetAllCriticalFacts(ctx, "user-123"); got["name"] != "John" {
		t.Fatalf("expected cached name John, got %#v", got)
	}

	if _, err := s.ProcessMessage(ctx, "user-123", "msg-2", "Call me Johnny"); err != nil {
		t.Fatalf("process correction: %v", err)
	}

	// A read strictly after a completed write observes it.
	name, err := s.GetUserName(ctx, "user-123")
	if err != nil {
		t.Fatalf("get user name: %v", err)
	}
	if name != "Johnny" {
		t.Fatalf("expected corrected name Johnny, got %q", name)
	}
	if got := s.GetAllCriticalFacts(ctx, "user-123"); got["name"] != "Johnny" {
		t.Fatalf("cache not invalidated, got %#v", got)
	}
}

func TestAcceptance_SQLite_ConfidenceMonotonic(t *testing.T) {
	s, db := openStore(t, "file:factmem_test3?mode=memory&cache=shared")
	ctx := context.Background()

	if _, err := s.ProcessMessage(ctx, "user-123", "msg-1", "My name is John"); err != nil {
		t.Fatalf("process message: %v", err)
	}
	if _, err := s.ProcessMessage(ctx, "user-123", "msg-2", "My name is John"); err != nil {
		t.Fatalf("repeat message: %v", err)
	}

	var count int
	var confidence float64
	err := db.QueryRow(`SELECT COUNT(*), MAX(confidence) FROM factmem_entity
		WHERE user_id = 'user-123' AND entity_type = 'person' AND is_active = 1`).Scan(&count, &confidence)
	if err != nil {
		t.Fatalf("query entities: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one active record, got %d", count)
	}
	if confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", confidence)
	}
}

func TestAcceptance_SQLite_IngestPipeline(t *testing.T) {
	s, _ := openStore(t, "file:factmem_test4?mode=memory&cache=shared")
	ctx := context.Background()

	s.Ingest.Enqueue(facts.IngestJob{
		UserID:    "user-123",
		MessageID: "msg-1",
		Text:      "My name is John and I live in Boston",
	})

	// Wait for async ingest to persist facts
	deadline := time.Now().Add(2 * time.Second)
	for {
		name, err := s.GetUserName(ctx, "user-123")
		if err == nil {
			if name != "John" {
				t.Fatalf("expected John, got %q", name)
			}
			return
		}
		if !errors.Is(err, facts.ErrNotFound) {
			t.Fatalf("get user name: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for ingest to persist facts")
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestAcceptance_SQLite_SearchFacts(t *testing.T) {
	s, _ := openStore(t, "file:factmem_test5?mode=memory&cache=shared")
	ctx := context.Background()

	if _, err := s.ProcessMessage(ctx, "user-123", "msg-1",
		"My name is John. I have a dog named Rex. I live in Boston."); err != nil {
		t.Fatalf("process message: %v", err)
	}

	got, err := s.SearchFacts(ctx, "user-123", "pet dog Rex", 3)
	if err != nil {
		t.Fatalf("search facts: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected recall results")
	}
	if got[0].Content != "Rex" {
		t.Fatalf("expected Rex first, got %#v", got)
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
