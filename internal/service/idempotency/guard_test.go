package idempotency

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/storage/memory"
)

func TestGuardReplaysCompletedResponse(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository())
	ctx := context.Background()
	key := Key("user-1", "place-1")

	calls := 0
	run := func(context.Context) Response {
		calls++
		return Response{Body: []byte(`{"order_id":"ORD1"}`), Status: http.StatusCreated}
	}

	first, err := guard.Execute(ctx, key, "hash-a", run)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := guard.Execute(ctx, key, "hash-a", run)
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, http.StatusCreated, second.Status)
	require.JSONEq(t, `{"order_id":"ORD1"}`, string(second.Body))
	require.Equal(t, 1, calls)
}

func TestGuardReplaysWithFixedClock(t *testing.T) {
	fixed := time.Date(2024, 3, 5, 4, 30, 0, 0, time.UTC)
	now := func() time.Time { return fixed }
	guard := NewGuard(memory.NewIdempotencyRepository(memory.WithIdempotencyClock(now)), WithGuardClock(now))
	ctx := context.Background()
	run := func(context.Context) Response { return Response{Body: []byte(`{}`), Status: http.StatusCreated} }

	_, err := guard.Execute(ctx, Key("user-1", "k"), "hash", run)
	require.NoError(t, err)

	second, err := guard.Execute(ctx, Key("user-1", "k"), "hash", run)
	require.NoError(t, err)
	require.True(t, second.Replayed)
}

func TestGuardReplaysFailure(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository())
	ctx := context.Background()

	run := func(context.Context) Response {
		return Response{Body: []byte(`{"code":"out_of_service_area"}`), Status: http.StatusUnprocessableEntity}
	}
	_, err := guard.Execute(ctx, "user-1:k", "hash", run)
	require.NoError(t, err)

	replayed, err := guard.Execute(ctx, "user-1:k", "hash", run)
	require.NoError(t, err)
	require.True(t, replayed.Replayed)
	require.Equal(t, http.StatusUnprocessableEntity, replayed.Status)
}

func TestGuardRejectsDifferentPayload(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository())
	ctx := context.Background()
	ok := func(context.Context) Response { return Response{Status: http.StatusCreated} }

	_, err := guard.Execute(ctx, "user-1:k", "hash-a", ok)
	require.NoError(t, err)

	_, err = guard.Execute(ctx, "user-1:k", "hash-b", ok)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
}

func TestGuardRejectsInFlightDuplicate(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	guard := NewGuard(repo)
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, "user-1:k", "hash", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = guard.Execute(ctx, "user-1:k", "hash", func(context.Context) Response {
		t.Fatal("run must not be called for in-flight key")
		return Response{}
	})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
}

func TestKeysAreScopedByUser(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository())
	ctx := context.Background()
	calls := 0
	run := func(context.Context) Response {
		calls++
		return Response{Status: http.StatusCreated}
	}

	_, err := guard.Execute(ctx, Key("user-1", "same"), "h", run)
	require.NoError(t, err)
	_, err = guard.Execute(ctx, Key("user-2", "same"), "h", run)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestRequestHashIsStable(t *testing.T) {
	type req struct {
		A string `json:"a"`
		B int    `json:"b"`
	}
	h1, err := RequestHash(req{A: "x", B: 1})
	require.NoError(t, err)
	h2, err := RequestHash(req{A: "x", B: 1})
	require.NoError(t, err)
	h3, err := RequestHash(req{A: "x", B: 2})
	require.NoError(t, err)

	require.Equal(t, h1, h2)
	require.NotEqual(t, h1, h3)
	require.Len(t, h1, 64)
}
