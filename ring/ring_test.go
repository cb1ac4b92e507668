package ring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/sequence"
)

func TestNew(t *testing.T) {
	b, err := New[string](8)
	require.NoError(t, err)
	require.Equal(t, 8, b.Capacity())
	require.Equal(t, sequence.None, b.Sequence())
	require.Equal(t, sequence.None, b.Released())

	_, err = New[string](0)
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestBuffer_SetGet(t *testing.T) {
	b, err := New[string](4)
	require.NoError(t, err)

	require.NoError(t, b.Set(0, "a"))
	require.NoError(t, b.Set(2, "c"))
	require.Equal(t, int64(0), b.Sequence())

	require.NoError(t, b.Set(1, "b"))
	require.Equal(t, int64(2), b.Sequence())
	require.Equal(t, "a", b.Get(0))
	require.Equal(t, "b", b.Get(1))
	require.Equal(t, "c", b.Get(2))
	require.Equal(t, "", b.Get(-1))
}

func TestBuffer_WrapViolation(t *testing.T) {
	b, err := New[int](4)
	require.NoError(t, err)

	require.ErrorIs(t, b.Set(4, 4), errs.ErrSequenceWrap)
	require.NoError(t, b.Set(3, 3))

	for seq := range int64(3) {
		require.NoError(t, b.Set(seq, int(seq)))
	}
	require.Equal(t, int64(3), b.Sequence())

	// contiguous but not released: the slots still belong to 0..3
	require.ErrorIs(t, b.Set(4, 4), errs.ErrSequenceWrap)
	require.Equal(t, 0, b.Get(0), "a rejected set leaves the slot untouched")

	b.Release(1)
	require.Equal(t, int64(1), b.Released())
	require.NoError(t, b.Set(4, 4))
	require.NoError(t, b.Set(5, 5))
	require.ErrorIs(t, b.Set(6, 6), errs.ErrSequenceWrap)
	require.Equal(t, 4, b.Get(4))
	require.Equal(t, 5, b.Get(1), "sequence 5 reuses the slot of sequence 1")
}

func TestBuffer_StaleSequence(t *testing.T) {
	b, err := New[int](4)
	require.NoError(t, err)
	require.NoError(t, b.Set(0, 1))

	require.ErrorIs(t, b.Set(0, 2), errs.ErrStaleSequence)
	require.Equal(t, 1, b.Get(0))
	require.ErrorIs(t, b.Set(-1, 2), errs.ErrStaleSequence)
}

func TestBuffer_Release(t *testing.T) {
	b, err := New[int](4)
	require.NoError(t, err)

	b.Release(3)
	require.Equal(t, sequence.None, b.Released(), "release never passes the contiguous sequence")

	require.NoError(t, b.Set(0, 0))
	require.NoError(t, b.Set(1, 1))
	b.Release(5)
	require.Equal(t, int64(1), b.Released())

	b.Release(0)
	require.Equal(t, int64(1), b.Released(), "release never moves backwards")
}

func TestBuffer_WaitBlocksUntilContiguous(t *testing.T) {
	b, err := New[int](4)
	require.NoError(t, err)

	done := make(chan int64, 1)
	go func() {
		seq, err := b.Wait(context.Background(), sequence.None)
		assert.NoError(t, err)
		done <- seq
	}()

	require.NoError(t, b.Set(1, 1))
	select {
	case <-done:
		t.Fatal("wait returned before sequence 0 was stored")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, b.Set(0, 0))
	select {
	case seq := <-done:
		require.Equal(t, int64(1), seq)
	case <-time.After(time.Second):
		t.Fatal("wait did not wake up")
	}
}

func TestBuffer_WaitReturnsImmediately(t *testing.T) {
	b, err := New[int](4)
	require.NoError(t, err)
	require.NoError(t, b.Set(0, 0))

	seq, err := b.Wait(context.Background(), sequence.None)
	require.NoError(t, err)
	require.Equal(t, int64(0), seq)
}

func TestBuffer_WaitCancelled(t *testing.T) {
	b, err := New[int](4)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	seq, err := b.Wait(ctx, sequence.None)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, sequence.None, seq)
}

func TestBuffer_WaitWritable(t *testing.T) {
	b, err := New[int](2)
	require.NoError(t, err)
	require.NoError(t, b.Set(0, 0))
	require.NoError(t, b.Set(1, 1))

	require.NoError(t, b.WaitWritable(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, b.WaitWritable(ctx, 2), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- b.WaitWritable(context.Background(), 2) }()
	b.Release(0)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("release did not wake the writer")
	}
	require.NoError(t, b.Set(2, 2))
}

func TestBuffer_Recycle(t *testing.T) {
	b, err := New[[]byte](2, WithRecycle(CopyBytes))
	require.NoError(t, err)

	src := []byte("hello")
	require.NoError(t, b.Set(0, src))
	src[0] = 'j'
	require.Equal(t, []byte("hello"), b.Get(0), "the slot owns a copy")

	first := b.Get(0)
	require.NoError(t, b.Set(1, []byte("x")))
	b.Release(0)
	require.NoError(t, b.Set(2, []byte("abc")))

	reused := b.Get(2)
	require.Equal(t, []byte("abc"), reused)
	require.Same(t, &first[0], &reused[0], "the backing array of the previous occupant is reused")
}

func TestCopyBytes(t *testing.T) {
	require.Nil(t, CopyBytes([]byte("old"), nil))
	require.Equal(t, []byte("new"), CopyBytes(nil, []byte("new")))

	dst := make([]byte, 0, 2)
	got := CopyBytes(dst, []byte("longer"))
	require.Equal(t, []byte("longer"), got)
}

// Readers running concurrently with the writer only ever observe fully
// stored slots at or below the contiguous sequence.
func TestBuffer_ConcurrentVisibility(t *testing.T) {
	const total = 2000
	type item struct {
		seq  int64
		copy int64
	}

	b, err := New[item](64)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				hc := b.Sequence()
				rel := b.Released()
				for seq := rel + 1; seq <= hc; seq++ {
					it := b.Get(seq)
					if it.seq > seq {
						// overwritten after release raced past this reader
						continue
					}
					assert.Equal(t, it.seq, it.copy)
				}
			}
		}()
	}

	// consumer
	wg.Add(1)
	go func() {
		defer wg.Done()
		last := sequence.None
		for last < total-1 {
			seq, err := b.Wait(ctx, last)
			if err != nil {
				return
			}
			for s := last + 1; s <= seq; s++ {
				it := b.Get(s)
				assert.Equal(t, s, it.seq)
			}
			last = seq
			b.Release(last)
		}
	}()

	// writer, swapping each pair to exercise gaps
	for seq := int64(0); seq < total; seq += 2 {
		for _, s := range []int64{seq + 1, seq} {
			require.NoError(t, b.WaitWritable(ctx, s))
			require.NoError(t, b.Set(s, item{seq: s, copy: s}))
		}
	}

	require.Eventually(t, func() bool { return b.Released() == total-1 }, 5*time.Second, time.Millisecond)
	cancel()
	wg.Wait()
}
