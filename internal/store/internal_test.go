package store

import (
	"sync"
	"testing"

	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
	"github.com/stretchr/testify/assert"
)

func TestGoroutineID(t *testing.T) {
	main := goroutineID()
	assert.Positive(t, main)
	assert.Equal(t, main, goroutineID(), "stable within a goroutine")

	var other int64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		other = goroutineID()
	}()
	wg.Wait()
	assert.Positive(t, other)
	assert.NotEqual(t, main, other)
}

func TestSameValue(t *testing.T) {
	s := []int{1, 2, 3}
	m := map[string]int{"a": 1}
	p := &struct{}{}
	type pair struct{ A, B int }
	type withSlice struct{ S []int }

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"both nil", nil, nil, true},
		{"one nil", nil, 0, false},
		{"equal ints", 3, 3, true},
		{"different types", 3, int64(3), false},
		{"same slice", s, s, true},
		{"resliced", s, s[:2], false},
		{"equal copy of slice", s, append([]int(nil), s...), false},
		{"same map", m, m, true},
		{"other map", m, map[string]int{"a": 1}, false},
		{"same pointer", p, p, true},
		{"comparable struct", pair{1, 2}, pair{1, 2}, true},
		{"incomparable struct", withSlice{s}, withSlice{s}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sameValue(tt.a, tt.b))
		})
	}
}

func TestReservedActions(t *testing.T) {
	init1, init2 := newInitAction(), newInitAction()
	assert.True(t, reducto.IsInitAction(init1))
	assert.NotEqual(t, init1.Kind(), init2.Kind())
	assert.False(t, reducto.IsInitAction(newProbeAction()))
	assert.Equal(t, reducto.InitActionPrefix, metricKind(init1))
	assert.Equal(t, "invalid", metricKind(nil))
}
