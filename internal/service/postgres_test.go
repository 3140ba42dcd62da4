package service

import (
	"context"
	"testing"

	"github.com/emrgen/identity/internal/store"
	"github.com/emrgen/identity/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityService_Postgres(t *testing.T) {
	s := store.NewGormStore(tester.PostgresDB(t))
	svc := NewIdentityService(s)
	ctx := context.TODO()

	a, err := svc.Identify(ctx, &IdentifyRequest{Email: ptr("lorraine@hillvalley.edu"), PhoneNumber: ptr("123456")})
	require.NoError(t, err)

	b, err := svc.Identify(ctx, &IdentifyRequest{Email: ptr("mcfly@hillvalley.edu"), PhoneNumber: ptr("654321")})
	require.NoError(t, err)
	assert.NotEqual(t, a.PrimaryContactID, b.PrimaryContactID)

	// bridging evidence merges the later cluster into the earlier one
	merged, err := svc.Identify(ctx, &IdentifyRequest{Email: ptr("lorraine@hillvalley.edu"), PhoneNumber: ptr("654321")})
	require.NoError(t, err)
	assert.Equal(t, a.PrimaryContactID, merged.PrimaryContactID)
	assert.Equal(t, []string{"lorraine@hillvalley.edu", "mcfly@hillvalley.edu"}, merged.Emails)
	assert.Equal(t, []string{"123456", "654321"}, merged.PhoneNumbers)
	assert.Equal(t, []uint{b.PrimaryContactID}, merged.SecondaryContactIDs)

	again, err := svc.Identify(ctx, &IdentifyRequest{PhoneNumber: ptr("654321")})
	require.NoError(t, err)
	assert.Equal(t, merged, again)
}
