package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamoykinden/Final-project-auto-purch/internal/storage/postgres"
	"github.com/tamoykinden/Final-project-auto-purch/internal/storage/postgres/postgrestest"
)

func TestAdvisoryLocker_SharedAcrossInstances(t *testing.T) {
	db := postgrestest.Start(t)
	first := postgres.NewAdvisoryLocker(db, "cart")
	second := postgres.NewAdvisoryLocker(db, "cart")
	ctx := context.Background()

	unlock, err := first.Lock(ctx, "buyer")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = second.Lock(waitCtx, "buyer")
	assert.Error(t, err, "the key is held by the other instance")

	unlockOther, err := second.Lock(ctx, "other-buyer")
	require.NoError(t, err)
	unlockOther()

	unlock()
	unlock()

	unlockAgain, err := second.Lock(ctx, "buyer")
	require.NoError(t, err)
	unlockAgain()
}

func TestAdvisoryLocker_NamespacesDoNotCollide(t *testing.T) {
	db := postgrestest.Start(t)
	ctx := context.Background()

	unlock, err := postgres.NewAdvisoryLocker(db, "cart").Lock(ctx, "buyer")
	require.NoError(t, err)
	defer unlock()

	unlockOther, err := postgres.NewAdvisoryLocker(db, "report").Lock(ctx, "buyer")
	require.NoError(t, err)
	unlockOther()
}
