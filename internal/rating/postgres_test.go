package rating

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/park285/Cheese-Othello/internal/domain"
)

// Runs against a real database only when OTHELLO_TEST_DATABASE_URL is set.
func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("OTHELLO_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("OTHELLO_TEST_DATABASE_URL not set")
	}
	repo, err := NewPostgresRepository(dsn)
	if err != nil {
		t.Fatalf("NewPostgresRepository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	ctx := context.Background()
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	name := "test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _, _ = repo.db.ExecContext(ctx, `DELETE FROM othello_ratings WHERE name=$1`, name) })

	rec := &domain.RatingRecord{Name: name, Rating: 1015, Wins: 1, GamesPlayed: 1, LastResult: domain.OutcomeWin}
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rec.Rating, rec.Wins, rec.GamesPlayed = 1030, 2, 2
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	all, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	for _, r := range all {
		if r.Name == name {
			if r.Rating != 1030 || r.Wins != 2 {
				t.Fatalf("upsert did not overwrite: %+v", r)
			}
			return
		}
	}
	t.Fatalf("record %s not loaded", name)
}

func TestNewPostgresRepositoryRequiresURL(t *testing.T) {
	if _, err := NewPostgresRepository("  "); err == nil {
		t.Fatalf("expected error for empty DATABASE_URL")
	}
}
