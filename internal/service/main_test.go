package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/emrgen/identity/internal/model"
	"github.com/emrgen/identity/internal/store"
	"github.com/emrgen/identity/internal/tester"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.WarnLevel)
	code := m.Run()

	os.Exit(code)
}

func ptr(s string) *string { return &s }

func newTestStore(t *testing.T) *store.GormStore {
	return store.NewGormStore(tester.TestDB(t))
}

// seed inserts c with a fixed creation time so ordering is deterministic.
func seed(t *testing.T, s store.Store, c *model.Contact, at time.Time) *model.Contact {
	t.Helper()
	c.CreatedAt = at
	c.UpdatedAt = at
	require.NoError(t, s.CreateContact(context.TODO(), c))
	return c
}

func countContacts(t *testing.T, s *store.GormStore, email, phone *string) int {
	t.Helper()
	got, err := s.FindMatches(context.TODO(), email, phone)
	require.NoError(t, err)
	return len(got)
}
