package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresence_BindLookupUnbind(t *testing.T) {
	p := NewPresence(4)

	_, ok := p.Lookup("u1")
	require.False(t, ok)

	h1 := newFakeHandle(1)
	prev, superseded := p.Bind("u1", h1)
	require.False(t, superseded)
	require.Nil(t, prev)

	got, ok := p.Lookup("u1")
	require.True(t, ok)
	require.Same(t, h1, got)

	require.True(t, p.Unbind("u1", h1))
	_, ok = p.Lookup("u1")
	require.False(t, ok)
	require.False(t, p.Unbind("u1", h1))
}

func TestPresence_Supersede(t *testing.T) {
	p := NewPresence(4)
	h1, h2 := newFakeHandle(1), newFakeHandle(1)

	p.Bind("u1", h1)
	prev, superseded := p.Bind("u1", h2)
	require.True(t, superseded)
	require.Same(t, h1, prev)

	// A late disconnect of the old handle must not drop the new one.
	require.False(t, p.Unbind("u1", h1))
	got, ok := p.Lookup("u1")
	require.True(t, ok)
	require.Same(t, h2, got)

	// Rebinding the same handle is not a supersede.
	_, superseded = p.Bind("u1", h2)
	assert.False(t, superseded)
}

func TestPresence_Concurrent(t *testing.T) {
	p := NewPresence(8)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Go(func() {
			user := fmt.Sprintf("u%d", i)
			h := newFakeHandle(1)
			p.Bind(user, h)
			if i%2 == 0 {
				p.Unbind(user, h)
			}
		})
	}
	wg.Wait()

	for i := 0; i < 100; i++ {
		_, ok := p.Lookup(fmt.Sprintf("u%d", i))
		assert.Equal(t, i%2 != 0, ok, "user u%d", i)
	}
}
