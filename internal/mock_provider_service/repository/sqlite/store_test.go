package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
	"github.com/aradsms/mock_provider/internal/platform/database"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "mock.db"))
	require.NoError(t, err)

	repo, err := NewRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_SchemaIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, applySchema(repo.db))

	var version int
	require.NoError(t, repo.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestRepository_Resources(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	msg := domain.NewMessage("AC1", "+15550000000", "+15551234567", "héllo", "http://cb", now)
	call := domain.NewCall("AC1", "+15550000000", "+15551234567", "http://twiml", "", now.Add(time.Second))
	require.NoError(t, repo.CreateResource(ctx, msg))
	require.NoError(t, repo.CreateResource(ctx, call))
	require.Error(t, repo.CreateResource(ctx, msg), "duplicate sid")

	got, err := repo.GetResource(ctx, domain.ResourceKindMessage, msg.SID)
	require.NoError(t, err)
	assert.Equal(t, "héllo", got.Body)
	assert.Equal(t, "http://cb", got.CallbackURL)
	assert.Equal(t, domain.StatusQueued, got.Status)
	assert.True(t, now.Equal(got.CreatedAt))

	gotCall, err := repo.GetResource(ctx, domain.ResourceKindCall, call.SID)
	require.NoError(t, err)
	assert.Equal(t, "http://twiml", gotCall.TwimlURL)
	assert.Empty(t, gotCall.CallbackURL)

	_, err = repo.GetResource(ctx, domain.ResourceKindCall, msg.SID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.UpdateStatus(ctx, domain.ResourceKindCall, call.SID, domain.StatusRinging))
	gotCall, err = repo.GetResource(ctx, domain.ResourceKindCall, call.SID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRinging, gotCall.Status)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, domain.ResourceKindMessage, "SMmissing", domain.StatusSent), domain.ErrNotFound)

	list, err := repo.ListResources(ctx, domain.ResourceKindMessage, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, msg.SID, list[0].SID)
}

func TestRepository_EventsAndLogs(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()

	msg := domain.NewMessage("AC1", "+1", "+2", "x", "", now)
	require.NoError(t, repo.CreateResource(ctx, msg))

	for _, status := range []domain.Status{domain.StatusSent, domain.StatusDelivered} {
		ev := &domain.DeliveryEvent{ResourceSID: msg.SID, ResourceKind: msg.Kind, EventType: domain.EventTypeStatusUpdate, Status: status, CallbackSent: status == domain.StatusSent, CreatedAt: now}
		require.NoError(t, repo.CreateDeliveryEvent(ctx, ev))
		assert.NotZero(t, ev.ID)
	}
	events, err := repo.ListDeliveryEvents(ctx, msg.Kind, msg.SID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.StatusSent, events[0].Status)
	assert.True(t, events[0].CallbackSent)
	assert.Equal(t, domain.StatusDelivered, events[1].Status)
	assert.False(t, events[1].CallbackSent)

	code := 502
	withCode := &domain.CallbackLog{TargetURL: "http://cb", Payload: "{}", StatusCode: &code, ResponseBody: "bad gateway", AttemptNumber: 1, CreatedAt: now}
	noResponse := &domain.CallbackLog{TargetURL: "http://cb", Payload: "{}", ResponseBody: "Error: refused", AttemptNumber: 2, CreatedAt: now}
	require.NoError(t, repo.CreateCallbackLog(ctx, withCode))
	require.NoError(t, repo.CreateCallbackLog(ctx, noResponse))

	got, err := repo.GetCallbackLog(ctx, withCode.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StatusCode)
	assert.Equal(t, 502, *got.StatusCode)

	logs, err := repo.ListCallbackLogs(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, noResponse.ID, logs[0].ID)
	assert.Nil(t, logs[0].StatusCode)

	_, err = repo.GetCallbackLog(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepository_StatisticsAndClear(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateResource(ctx, domain.NewMessage("AC1", "+1", "+2", "x", "", now)))
	}
	call := domain.NewCall("AC1", "+1", "+2", "u", "", now)
	require.NoError(t, repo.CreateResource(ctx, call))
	require.NoError(t, repo.CreateDeliveryEvent(ctx, &domain.DeliveryEvent{ResourceSID: call.SID, ResourceKind: call.Kind, EventType: domain.EventTypeStatusUpdate, Status: domain.StatusRinging, CreatedAt: now}))
	require.NoError(t, repo.CreateCallbackLog(ctx, &domain.CallbackLog{TargetURL: "u", Payload: "{}", AttemptNumber: 1, CreatedAt: now}))

	stats, err := repo.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Statistics{Messages: 3, Calls: 1, Callbacks: 1}, stats)

	n, err := repo.ClearResources(ctx, domain.ResourceKindMessage)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	counts, err := repo.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ClearedCounts{Messages: 0, Calls: 1, Callbacks: 1}, counts)

	events, err := repo.ListDeliveryEvents(ctx, call.Kind, call.SID)
	require.NoError(t, err)
	assert.Empty(t, events)

	n, err = repo.ClearCallbackLogs(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
