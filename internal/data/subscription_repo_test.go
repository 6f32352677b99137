package data

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/biz"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/constants"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/data/model"

	"github.com/glebarez/sqlite"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestData(t *testing.T) (*Data, log.Logger) {
	t.Helper()
	// A file-backed database: in-memory sqlite is per-connection, which
	// breaks under the sql pool once a transaction opens a second conn.
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "billing.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Subscription{}, &model.Payment{}, &model.Plan{}))

	logger := log.NewStdLogger(io.Discard)
	d, cleanup, err := NewData(nil, logger, db, nil)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return d, logger
}

func seedSubscription(t *testing.T, d *Data, m *model.Subscription) {
	t.Helper()
	require.NoError(t, d.db.Create(m).Error)
}

func TestSubscriptionGetNotFound(t *testing.T) {
	d, logger := newTestData(t)
	repo := NewSubscriptionRepo(d, logger)

	sub, err := repo.Get(context.Background(), "missing")
	require.NoError(t, err, "not found is not an error")
	assert.Nil(t, sub)
}

func TestSubscriptionActivateRoundTrip(t *testing.T) {
	d, logger := newTestData(t)
	repo := NewSubscriptionRepo(d, logger)
	seedSubscription(t, d, &model.Subscription{ID: "sub-1", UserID: "u1", Status: constants.StatusPendingPayment})

	now := time.Now().UTC().Truncate(time.Second)
	expires := now.AddDate(0, 1, 0)
	grace := expires.AddDate(0, 0, 7)
	require.NoError(t, repo.Activate(context.Background(), "sub-1", now, expires, grace, "PB-1"))

	sub, err := repo.Get(context.Background(), "sub-1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, constants.StatusActive, sub.Status)
	assert.Equal(t, constants.PaymentStatusCompleted, sub.PaymentStatus)
	assert.Equal(t, "PB-1", sub.PaymentReference)
	require.NotNil(t, sub.ExpiresAt)
	assert.True(t, sub.ExpiresAt.Equal(expires))
	require.NotNil(t, sub.GraceUntil)
	assert.True(t, sub.GraceUntil.Equal(grace))
}

func TestGetActiveByUserPicksLatestAndExcludes(t *testing.T) {
	d, logger := newTestData(t)
	repo := NewSubscriptionRepo(d, logger)
	now := time.Now().UTC()

	early := now.AddDate(0, 1, 0)
	late := now.AddDate(0, 3, 0)
	seedSubscription(t, d, &model.Subscription{ID: "sub-a", UserID: "u1", Status: constants.StatusActive, ExpiresAt: &early})
	seedSubscription(t, d, &model.Subscription{ID: "sub-b", UserID: "u1", Status: constants.StatusActive, ExpiresAt: &late})
	seedSubscription(t, d, &model.Subscription{ID: "sub-c", UserID: "u2", Status: constants.StatusActive, ExpiresAt: &late})

	sub, err := repo.GetActiveByUser(context.Background(), "u1", "")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "sub-b", sub.ID, "latest expiry wins")

	sub, err = repo.GetActiveByUser(context.Background(), "u1", "sub-b")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "sub-a", sub.ID, "exceptID excluded")
}

func TestExpireSiblingsLeavesTarget(t *testing.T) {
	d, logger := newTestData(t)
	repo := NewSubscriptionRepo(d, logger)
	seedSubscription(t, d, &model.Subscription{ID: "sub-1", UserID: "u1", Status: constants.StatusPendingPayment})
	seedSubscription(t, d, &model.Subscription{ID: "sub-2", UserID: "u1", Status: constants.StatusTrial})
	seedSubscription(t, d, &model.Subscription{ID: "sub-3", UserID: "u1", Status: constants.StatusActive})
	seedSubscription(t, d, &model.Subscription{ID: "sub-4", UserID: "u1", Status: constants.StatusExpired})

	n, err := repo.ExpireSiblings(context.Background(), "u1", "sub-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "only trial and active rows are displaced")

	sub, err := repo.Get(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPendingPayment, sub.Status)
}

func TestConditionalTransitions(t *testing.T) {
	d, logger := newTestData(t)
	repo := NewSubscriptionRepo(d, logger)
	seedSubscription(t, d, &model.Subscription{ID: "sub-1", UserID: "u1", Status: constants.StatusActive})

	grace := time.Now().UTC().AddDate(0, 0, 7)
	applied, err := repo.TransitionToGrace(context.Background(), "sub-1", grace)
	require.NoError(t, err)
	assert.True(t, applied)

	// Replaying the same transition finds the status gone and reports a
	// no-op instead of double-applying.
	applied, err = repo.TransitionToGrace(context.Background(), "sub-1", grace)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = repo.TransitionToExpired(context.Background(), "sub-1", constants.StatusGrace)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.TransitionToExpired(context.Background(), "sub-1", constants.StatusGrace)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestListInStatuses(t *testing.T) {
	d, logger := newTestData(t)
	repo := NewSubscriptionRepo(d, logger)
	seedSubscription(t, d, &model.Subscription{ID: "sub-1", UserID: "u1", Status: constants.StatusTrial})
	seedSubscription(t, d, &model.Subscription{ID: "sub-2", UserID: "u2", Status: constants.StatusExpired})
	seedSubscription(t, d, &model.Subscription{ID: "sub-3", UserID: "u3", Status: constants.StatusGrace})

	subs, err := repo.ListInStatuses(context.Background(), []string{constants.StatusTrial, constants.StatusGrace})
	require.NoError(t, err)
	require.Len(t, subs, 2)
}

func TestExecGroupsWrites(t *testing.T) {
	d, logger := newTestData(t)
	repo := NewSubscriptionRepo(d, logger)
	seedSubscription(t, d, &model.Subscription{ID: "sub-1", UserID: "u1", Status: constants.StatusPendingPayment})
	seedSubscription(t, d, &model.Subscription{ID: "sub-2", UserID: "u1", Status: constants.StatusActive})

	// A failure inside Exec rolls every grouped write back.
	sentinel := assert.AnError
	err := d.Exec(context.Background(), func(ctx context.Context) error {
		if _, err := repo.ExpireSiblings(ctx, "u1", "sub-1"); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	sub, err := repo.Get(context.Background(), "sub-2")
	require.NoError(t, err)
	assert.Equal(t, constants.StatusActive, sub.Status, "rolled back")

	// And a clean Exec commits.
	err = d.Exec(context.Background(), func(ctx context.Context) error {
		_, err := repo.ExpireSiblings(ctx, "u1", "sub-1")
		return err
	})
	require.NoError(t, err)

	sub, err = repo.Get(context.Background(), "sub-2")
	require.NoError(t, err)
	assert.Equal(t, constants.StatusExpired, sub.Status)
}

var _ biz.SubscriptionRepo = (*subscriptionRepo)(nil)
