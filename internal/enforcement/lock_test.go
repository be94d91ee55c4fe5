package enforcement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()

	_, unlock, err := m.Lock(context.Background(), "s1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		_, second, err := m.Lock(context.Background(), "s1")
		if err != nil {
			t.Errorf("second lock: %v", err)
			return
		}
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatalf("second lock acquired while first is held")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second lock was not acquired after unlock")
	}
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	m := NewKeyedMutex()

	_, unlockA, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, unlockB, err := m.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	m := NewKeyedMutex()

	_, unlock, err := m.Lock(context.Background(), "s1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err = m.Lock(ctx, "s1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks)
}

func TestKeyedMutex_HeldContextCancelledOnUnlock(t *testing.T) {
	m := NewKeyedMutex()

	held, unlock, err := m.Lock(context.Background(), "s1")
	require.NoError(t, err)
	require.NoError(t, held.Err())

	unlock()

	assert.ErrorIs(t, held.Err(), context.Canceled)
}
