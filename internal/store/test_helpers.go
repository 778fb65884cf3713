package store

import (
	"testing"
)

// SetupTestStore creates an in-memory SQLite store for testing
func SetupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close test store: %v", err)
		}
	})

	return s
}

// BeginTestBatch starts a batch that is rolled back automatically unless
// committed by the test
func BeginTestBatch(t *testing.T, s *Store) *Batch {
	t.Helper()

	b, err := s.Begin()
	if err != nil {
		t.Fatalf("Failed to begin test batch: %v", err)
	}
	t.Cleanup(func() {
		_ = b.Rollback()
	})

	return b
}
