// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"database/sql"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/pkg/database"
	"github.com/alimgiray/ideabase/pkg/logger"
)

// NewDB opens a migrated SQLite database in a temporary directory. A file is
// used instead of :memory: so every pooled connection sees the same data.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()
	logger.SetOutput(io.Discard)

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Candidate builds a valid trending candidate
func Candidate(owner, name string, stars int, observed time.Time) *models.CandidateProject {
	return &models.CandidateProject{
		Owner:         owner,
		Name:          name,
		Description:   "Description of " + name,
		Language:      "Go",
		StarsCount:    stars,
		RepositoryURL: "https://github.com/" + owner + "/" + name,
		TrendingDate:  observed,
	}
}
