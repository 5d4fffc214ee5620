package workers_test

import (
	"testing"

	"github.com/onenotify/onenotify/internal/workers"
)

func TestPoolKey(t *testing.T) {
	cases := []struct {
		polo string
		want string
	}{
		{"ATIVO", workers.PoolPoloAtivo},
		{"Polo Ativo", workers.PoolPoloAtivo},
		{"PASSIVO", workers.PoolGeneral},
		{"", workers.PoolGeneral},
		{"Réu", workers.PoolGeneral},
	}

	for _, c := range cases {
		if got := workers.PoolKey(c.polo); got != c.want {
			t.Errorf("PoolKey(%q) = %q, want %q", c.polo, got, c.want)
		}
	}
}

func TestNextInPool(t *testing.T) {
	pool := []workers.Worker{
		{ID: 1, Name: "ana"},
		{ID: 2, Name: "bruno"},
		{ID: 3, Name: "carla"},
	}

	t.Run("advances from cursor", func(t *testing.T) {
		got, ok := workers.NextInPool(pool, 1)
		if !ok || got.ID != 2 {
			t.Errorf("NextInPool = %+v ok=%v, want worker 2", got, ok)
		}
	})

	t.Run("wraps at end", func(t *testing.T) {
		got, ok := workers.NextInPool(pool, 3)
		if !ok || got.ID != 1 {
			t.Errorf("NextInPool = %+v ok=%v, want worker 1", got, ok)
		}
	})

	t.Run("unknown cursor starts over", func(t *testing.T) {
		got, ok := workers.NextInPool(pool, 99)
		if !ok || got.ID != 1 {
			t.Errorf("NextInPool = %+v ok=%v, want worker 1", got, ok)
		}
	})

	t.Run("zero cursor starts over", func(t *testing.T) {
		got, ok := workers.NextInPool(pool, 0)
		if !ok || got.ID != 1 {
			t.Errorf("NextInPool = %+v ok=%v, want worker 1", got, ok)
		}
	})

	t.Run("empty pool", func(t *testing.T) {
		if _, ok := workers.NextInPool(nil, 1); ok {
			t.Error("NextInPool returned a worker from an empty pool")
		}
	})

	t.Run("fair over repeated draws", func(t *testing.T) {
		counts := map[int64]int{}
		cursor := int64(0)
		for range 9 {
			w, ok := workers.NextInPool(pool, cursor)
			if !ok {
				t.Fatal("pool unexpectedly empty")
			}
			counts[w.ID]++
			cursor = w.ID
		}

		for _, w := range pool {
			if counts[w.ID] != 3 {
				t.Errorf("worker %d drew %d assignments, want 3", w.ID, counts[w.ID])
			}
		}
	})
}
