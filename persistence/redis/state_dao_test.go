package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/persistence"
	"github.com/waflow/waflow/util"
)

func newTestStateStore(t *testing.T) *redisStateStore {
	t.Helper()
	conf := Config{
		Addrs:     []string{"localhost:6379"},
		Namespace: "test",
	}
	store := NewRedisStateStore(conf, util.NewJsonEncoderDecoder[model.ContactState]())
	if err := store.redisClient.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	return store
}

func TestRedisStateStore(t *testing.T) {
	store := newTestStateStore(t)
	t.Cleanup(func() {
		_ = store.Delete("t-test", "5511999")
	})

	_, err := store.Get("t-test", "5511999")
	var notFound persistence.NotFoundError
	require.ErrorAs(t, err, &notFound)

	state := model.NewContactState("t-test", "5511999", "fl-1")
	state.WaitingForInput = true
	state.PendingVariable = "name"
	require.NoError(t, store.Put("t-test", "5511999", state))

	loaded, err := store.Get("t-test", "5511999")
	require.NoError(t, err)
	require.True(t, loaded.WaitingForInput)
	require.Equal(t, "name", loaded.PendingVariable)

	require.NoError(t, store.Delete("t-test", "5511999"))
	_, err = store.Get("t-test", "5511999")
	require.Error(t, err)
}
