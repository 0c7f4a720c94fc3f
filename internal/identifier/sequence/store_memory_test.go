package sequence

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	t.Run("starts at one and increments", func(t *testing.T) {
		v, err := store.Next(ctx, "application", 2026)
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		v, err = store.Next(ctx, "application", 2026)
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	})

	t.Run("schemes and years are independent", func(t *testing.T) {
		v, err := store.Next(ctx, "candidate", 2026)
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		v, err = store.Next(ctx, "application", 2027)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})

	t.Run("seed resumes from existing records", func(t *testing.T) {
		require.NoError(t, store.Seed("candidate", 2025, 41))
		v, err := store.Next(ctx, "candidate", 2025)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("seed cannot move backwards", func(t *testing.T) {
		assert.Error(t, store.Seed("candidate", 2025, 10))
	})
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	const goroutines = 100

	var mu sync.Mutex
	seen := make([]int, 0, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			v, err := store.Next(ctx, "candidate", 2026)
			assert.NoError(t, err)
			mu.Lock()
			seen = append(seen, v)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(seen)
	require.Len(t, seen, goroutines)
	for i, v := range seen {
		assert.Equal(t, i+1, v, "issued values must be dense with no duplicates")
	}
}
