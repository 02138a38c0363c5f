package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetOrCreate(t *testing.T) {
	t.Parallel()

	caches := func() map[string]Cache[string] {
		return map[string]Cache[string]{
			"basic": NewBasicCache[string](),
			"ttl":   NewTTLCache[string](time.Minute),
		}
	}

	for name, c := range caches() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			t.Run("creates once then hits", func(t *testing.T) {
				data, created, err := GetOrCreate(t.Context(), c, "evt_1", func() (string, error) {
					return "first", nil
				})
				require.NoError(t, err)
				require.True(t, created)
				require.Equal(t, "first", data)

				data, created, err = GetOrCreate(t.Context(), c, "evt_1", func() (string, error) {
					t.Fatal("create must not be called on a hit")
					return "", nil
				})
				require.NoError(t, err)
				require.False(t, created)
				require.Equal(t, "first", data)
			})

			t.Run("failed create releases the claim", func(t *testing.T) {
				_, created, err := GetOrCreate(t.Context(), c, "evt_2", func() (string, error) {
					return "", errors.New("downstream failure")
				})
				require.Error(t, err)
				require.False(t, created)

				data, created, err := GetOrCreate(t.Context(), c, "evt_2", func() (string, error) {
					return "retried", nil
				})
				require.NoError(t, err)
				require.True(t, created)
				require.Equal(t, "retried", data)
			})
		})
	}

	t.Run("concurrent callers share a single create", func(t *testing.T) {
		t.Parallel()

		for name, c := range caches() {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				for attempt := range 20 {
					key := fmt.Sprintf("evt_concurrent_%d", attempt)

					var calls atomic.Int32
					var createdCount atomic.Int32
					var wg sync.WaitGroup
					for range 10 {
						wg.Add(1)
						go func() {
							defer wg.Done()
							data, created, err := GetOrCreate(t.Context(), c, key, func() (string, error) {
								calls.Add(1)
								time.Sleep(time.Millisecond)
								return "applied", nil
							})
							if err != nil {
								t.Errorf("unexpected error: %v", err)
								return
							}
							if data != "applied" {
								t.Errorf("unexpected data: %s", data)
							}
							if created {
								createdCount.Add(1)
							}
						}()
					}
					wg.Wait()

					require.Equal(t, int32(1), calls.Load())
					require.Equal(t, int32(1), createdCount.Load())
				}
			})
		}
	})
}

func TestTTLCacheExpires(t *testing.T) {
	t.Parallel()

	c := NewTTLCache[string](20 * time.Millisecond)
	_, created, err := GetOrCreate(t.Context(), c, "evt", func() (string, error) { return "x", nil })
	require.NoError(t, err)
	require.True(t, created)

	require.Eventually(t, func() bool {
		return c.getOrClaim("evt").claimed
	}, time.Second, 10*time.Millisecond)
}
