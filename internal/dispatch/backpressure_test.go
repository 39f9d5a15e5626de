package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emesal/ratatoskr/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedStream_DeliversInOrder(t *testing.T) {
	inner := source.NewSliceStream([]int{1, 2, 3, 4, 5}, nil)
	bs := NewBoundedStream[int](context.Background(), inner, 2)
	defer bs.Close()

	var got []int
	for {
		v, ok, err := bs.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestBoundedStream_PropagatesTerminalError(t *testing.T) {
	boom := errors.New("boom")
	inner := source.NewSliceStream([]int{1, 2}, boom)
	bs := NewBoundedStream[int](context.Background(), inner, 10)
	defer bs.Close()

	v, ok, err := bs.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, ok)

	v, ok, err = bs.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.True(t, ok)

	_, ok, err = bs.Next(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestBoundedStream_CloseStopsProducerPromptly(t *testing.T) {
	inner := source.NewSliceStream(make([]int, 1000), nil)
	bs := NewBoundedStream[int](context.Background(), inner, 1)

	_, ok, err := bs.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	bs.Close()
	bs.Close() // idempotent

	done := make(chan struct{})
	go func() {
		bs.group.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer did not stop promptly after Close")
	}
}
