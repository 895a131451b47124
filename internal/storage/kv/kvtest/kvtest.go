// Package kvtest is a conformance suite shared by every kv.Store backend.
package kvtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/eventeye/server/internal/storage/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) kv.Store

// Run exercises the kv.Store contract against the store built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s kv.Store)
	}{
		{"GetMissing", testGetMissing},
		{"SetThenGet", testSetThenGet},
		{"SetOverwrites", testSetOverwrites},
		{"SetIfAbsent", testSetIfAbsent},
		{"PrefixIsExact", testPrefixIsExact},
		{"PrefixIgnoresGlobCharacters", testPrefixIgnoresGlobCharacters},
		{"PrefixEmptyResult", testPrefixEmptyResult},
		{"ConcurrentSetIfAbsentSingleWinner", testConcurrentSetIfAbsent},
		{"ConcurrentWritesAndScans", testConcurrentWritesAndScans},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testGetMissing(t *testing.T, s kv.Store) {
	_, err := s.Get(context.Background(), "event:missing")
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func testSetThenGet(t *testing.T, s kv.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "event:1", []byte(`{"name":"Workshop"}`)))

	got, err := s.Get(ctx, "event:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Workshop"}`, string(got))
}

func testSetOverwrites(t *testing.T, s kv.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "event:1", []byte(`{"v":1}`)))
	require.NoError(t, s.Set(ctx, "event:1", []byte(`{"v":2}`)))

	got, err := s.Get(ctx, "event:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))

	entries, err := s.GetByPrefix(ctx, "event:")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func testSetIfAbsent(t *testing.T, s kv.Store) {
	ctx := context.Background()
	stored, err := s.SetIfAbsent(ctx, "code:ABC", []byte(`{"owner":"first"}`))
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = s.SetIfAbsent(ctx, "code:ABC", []byte(`{"owner":"second"}`))
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := s.Get(ctx, "code:ABC")
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"first"}`, string(got))
}

func testPrefixIsExact(t *testing.T, s kv.Store) {
	ctx := context.Background()
	keys := []string{"cert:a:1", "cert:a:2", "cert:ab:1", "cert:b:1", "event:a"}
	for _, key := range keys {
		require.NoError(t, s.Set(ctx, key, []byte(`{}`)))
	}

	entries, err := s.GetByPrefix(ctx, "cert:a:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cert:a:1", "cert:a:2"}, entryKeys(entries))

	entries, err = s.GetByPrefix(ctx, "cert:")
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func testPrefixIgnoresGlobCharacters(t *testing.T, s kv.Store) {
	ctx := context.Background()
	keys := []string{"idem:e:a*b", "idem:e:axb", "idem:e:a%b", "idem:e:a_b", "idem:e:a?b", "idem:e:a[b]"}
	for _, key := range keys {
		require.NoError(t, s.Set(ctx, key, []byte(`{}`)))
	}

	cases := map[string][]string{
		"idem:e:a*": {"idem:e:a*b"},
		"idem:e:a%": {"idem:e:a%b"},
		"idem:e:a_": {"idem:e:a_b"},
		"idem:e:a?": {"idem:e:a?b"},
		"idem:e:a[": {"idem:e:a[b]"},
	}
	for prefix, want := range cases {
		entries, err := s.GetByPrefix(ctx, prefix)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, entryKeys(entries), "prefix %q", prefix)
	}
}

func testPrefixEmptyResult(t *testing.T, s kv.Store) {
	entries, err := s.GetByPrefix(context.Background(), "verify:")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func testConcurrentSetIfAbsent(t *testing.T, s kv.Store) {
	ctx := context.Background()
	const workers = 16

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, err := s.SetIfAbsent(ctx, "code:RACE", []byte(fmt.Sprintf(`{"worker":%d}`, i)))
			assert.NoError(t, err)
			if stored {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func testConcurrentWritesAndScans(t *testing.T, s kv.Store) {
	ctx := context.Background()
	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				key := fmt.Sprintf("cert:e:%02d-%02d", w, i)
				assert.NoError(t, s.Set(ctx, key, []byte(`{}`)))
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			_, err := s.GetByPrefix(ctx, "cert:e:")
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	entries, err := s.GetByPrefix(ctx, "cert:e:")
	require.NoError(t, err)
	assert.Len(t, entries, writers*perWriter)
}

func testPing(t *testing.T, s kv.Store) {
	require.NoError(t, s.Ping(context.Background()))
}

func entryKeys(entries []kv.Entry) []string {
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.Key)
	}
	sort.Strings(keys)
	return keys
}
