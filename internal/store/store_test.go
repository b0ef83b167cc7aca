package store

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   int64
	Name string
}

func newRecordStore() *Store[int64, record] {
	return New(func(r record) int64 { return r.ID })
}

func ids(items []record) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestStore_UpsertInsertsAtFront(t *testing.T) {
	s := newRecordStore()
	s.Upsert(record{ID: 1})
	s.Upsert(record{ID: 2})
	s.Upsert(record{ID: 3})

	assert.Equal(t, []int64{3, 2, 1}, ids(s.Snapshot()))
}

func TestStore_UpsertReplacesInPlace(t *testing.T) {
	s := newRecordStore()
	s.ReplaceAll([]record{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"}})

	s.Upsert(record{ID: 2, Name: "B"})

	got := s.Snapshot()
	require.Equal(t, []int64{1, 2, 3}, ids(got))
	assert.Equal(t, "B", got[1].Name)
}

func TestStore_RemoveByIDIsIdempotent(t *testing.T) {
	s := newRecordStore()
	s.ReplaceAll([]record{{ID: 1}, {ID: 2}})

	s.RemoveByID(1)
	s.RemoveByID(1)
	s.RemoveByID(99)

	assert.Equal(t, []int64{2}, ids(s.Snapshot()))
}

func TestStore_ReplaceAllAcceptsEmptyAndDedupes(t *testing.T) {
	s := newRecordStore()
	s.ReplaceAll([]record{{ID: 1, Name: "first"}, {ID: 1, Name: "dup"}, {ID: 2}})
	got := s.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name)

	s.ReplaceAll(nil)
	assert.Empty(t, s.Snapshot())
	assert.Equal(t, 0, s.Len())
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := newRecordStore()
	s.Upsert(record{ID: 1, Name: "a"})

	snap := s.Snapshot()
	snap[0].Name = "mutated"

	got, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", got.Name)
}

func TestStore_SubscribersReceiveFullCollection(t *testing.T) {
	s := newRecordStore()
	var emissions [][]int64
	unsub := s.OnCollectionChange(func(items []record) {
		emissions = append(emissions, ids(items))
	})
	defer unsub()

	s.ReplaceAll([]record{{ID: 1}})
	s.Upsert(record{ID: 2})
	s.RemoveByID(1)

	assert.Equal(t, [][]int64{{}, {1}, {2, 1}, {2}}, emissions)
}

func TestStore_SubscriberCanReadSnapshot(t *testing.T) {
	s := newRecordStore()
	var lens []int
	s.OnCollectionChange(func([]record) { lens = append(lens, s.Len()) })
	s.Upsert(record{ID: 1})
	assert.Equal(t, []int{0, 1}, lens)
}

// Replays random operation logs and checks the id-uniqueness invariant and the
// resulting id set against a simple model.
func TestStore_RandomOperationLogKeepsIDsUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		s := newRecordStore()
		model := map[int64]bool{}

		for op := 0; op < 200; op++ {
			id := int64(rng.Intn(20))
			if rng.Intn(3) == 0 {
				s.RemoveByID(id)
				delete(model, id)
			} else {
				s.Upsert(record{ID: id})
				model[id] = true
			}
		}

		seen := map[int64]bool{}
		for _, it := range s.Snapshot() {
			require.False(t, seen[it.ID], "duplicate id %d", it.ID)
			seen[it.ID] = true
		}
		assert.Equal(t, model, seen)
	}
}
