package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentbridge/core"
)

var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_LazyCreateAndClone(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Equal(t, 1, store.Len())

	sess.ApplyStateDelta(map[string]any{"k": "local"})
	again, _ := store.Get("s1")
	assert.NotContains(t, again.State, "k", "mutating a snapshot must not leak into the store")
}

func TestInMemoryStore_AppendAndDelta(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.AppendContent("s1", core.NewTextContent(core.RoleUser, "hi")))
	require.NoError(t, store.ApplyDelta("s1", map[string]any{"turns": 1}))

	sess, _ := store.Get("s1")
	require.Len(t, sess.History, 1)
	assert.Equal(t, 1, sess.State["turns"])

	require.NoError(t, store.Delete("s1"))
	assert.ErrorIs(t, store.Delete("s1"), core.ErrSessionNotFound)
}

func TestInMemoryStore_ConcurrentAppend(t *testing.T) {
	store := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.AppendContent("s", core.NewTextContent(core.RoleUser, "x"))
		}()
	}
	wg.Wait()

	sess, _ := store.Get("s")
	assert.Len(t, sess.History, 50)
}
