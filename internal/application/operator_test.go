package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"road-inspector/internal/infrastructure/storage"
)

func TestOperatorService_SubscribeAndUnsubscribe(t *testing.T) {
	repo := storage.NewMemoryOperatorRepository()
	svc := NewOperatorService(repo)
	ctx := context.Background()

	op, err := svc.Subscribe(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, op.Subscribed)

	subs, err := svc.Subscribers(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, int64(10), subs[0].ChatID)

	op, err = svc.Unsubscribe(ctx, 1, 10)
	require.NoError(t, err)
	require.False(t, op.Subscribed)

	subs, err = svc.Subscribers(ctx)
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestOperatorService_SubscribeUpdatesChat(t *testing.T) {
	repo := storage.NewMemoryOperatorRepository()
	svc := NewOperatorService(repo)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, 2, 20)
	require.NoError(t, err)
	_, err = svc.Subscribe(ctx, 2, 21)
	require.NoError(t, err)

	subs, err := svc.Subscribers(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, int64(21), subs[0].ChatID)
}
