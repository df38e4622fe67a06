package browser

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseQueueBounded(t *testing.T) {
	queue := NewResponseQueue(3)
	for i := 0; i < 5; i++ {
		queue.Push(ResponseEvent{Url: fmt.Sprintf("https://portal/roster/%d", i)})
	}

	events := queue.Drain()
	require.Len(t, events, 3)
	require.Equal(t, "https://portal/roster/0", events[0].Url)
	require.Equal(t, int64(2), queue.Dropped())
	require.Equal(t, int64(3), queue.Pushed())
	require.Empty(t, queue.Drain())
}

func TestResponseQueueConcurrentPush(t *testing.T) {
	queue := NewResponseQueue(64)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 16; j++ {
				queue.Push(ResponseEvent{})
			}
		}()
	}
	wg.Wait()

	require.Len(t, queue.Drain(), 64)
	require.Equal(t, int64(64), queue.Dropped())
}
