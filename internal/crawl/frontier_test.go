package crawl

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrontierFIFO(t *testing.T) {
	f := NewFrontier()
	require.True(t, f.Push("http://example.com/a"))
	require.True(t, f.Push("http://example.com/b"))
	require.True(t, f.Push("http://example.com/c"))

	u, ok := f.Pop()
	require.True(t, ok)
	require.Equal(t, "http://example.com/a", u)
	u, _ = f.Pop()
	require.Equal(t, "http://example.com/b", u)
	u, _ = f.Pop()
	require.Equal(t, "http://example.com/c", u)

	_, ok = f.Pop()
	require.False(t, ok)
}

func TestFrontierAcceptsURLOnce(t *testing.T) {
	f := NewFrontier()
	require.True(t, f.Push("http://example.com/a"))
	require.False(t, f.Push("http://example.com/a"))

	// Popping does not make the URL eligible again.
	_, ok := f.Pop()
	require.True(t, ok)
	require.False(t, f.Push("http://example.com/a"))
	require.Equal(t, 0, f.Len())
	require.True(t, f.Seen("http://example.com/a"))
}

func TestFrontierConcurrentPush(t *testing.T) {
	f := NewFrontier()
	var wg sync.WaitGroup
	accepted := make(chan bool, 1000)
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				accepted <- f.Push(fmt.Sprintf("http://example.com/%d", i))
			}
		}()
	}
	wg.Wait()
	close(accepted)

	count := 0
	for ok := range accepted {
		if ok {
			count++
		}
	}
	require.Equal(t, 100, count, "each distinct URL accepted exactly once")
	require.Equal(t, 100, f.Len())
}
