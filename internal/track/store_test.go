package track

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_StartsEmpty(t *testing.T) {
	s := NewStore()
	assert.Equal(t, "No track loaded", s.Current().Name)
	assert.Equal(t, uint64(0), s.Generation())
}

func TestStore_PublishInOrder(t *testing.T) {
	s := NewStore()
	g1 := s.Begin()
	g2 := s.Begin()

	assert.True(t, s.Publish(&Model{Name: "first"}, g1))
	assert.True(t, s.Publish(&Model{Name: "second"}, g2))
	assert.Equal(t, "second", s.Current().Name)
}

func TestStore_StaleLoadDiscarded(t *testing.T) {
	s := NewStore()
	older := s.Begin()
	newer := s.Begin()

	assert.True(t, s.Publish(&Model{Name: "newer"}, newer))
	assert.True(t, s.Superseded(older))
	assert.False(t, s.Publish(&Model{Name: "older"}, older))
	assert.Equal(t, "newer", s.Current().Name)
	assert.Equal(t, newer, s.Generation())
}

func TestStore_PublishNil(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Publish(nil, s.Begin()))
	assert.Equal(t, "No track loaded", s.Current().Name)
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.NotNil(t, s.Current())
			}
		}()
	}
	for i := 0; i < 20; i++ {
		s.Publish(&Model{Name: "m"}, s.Begin())
	}
	wg.Wait()
}
