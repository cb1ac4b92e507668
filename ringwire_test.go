package ringwire

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arloliu/ringwire/buffer"
	"github.com/arloliu/ringwire/codebook"
	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/sender"
	"github.com/arloliu/ringwire/transport"
	"github.com/arloliu/ringwire/transport/mem"
)

type quote struct {
	Symbol string
	Price  int64
}

const quoteTopic int32 = 7

func newBook(t *testing.T) *codebook.CodeBook {
	t.Helper()

	book := codebook.New()
	require.NoError(t, codebook.Register[quote](book, 1025, codebook.NewTyped(
		func(v quote, out *buffer.Output) error {
			if err := out.WriteString(v.Symbol); err != nil {
				return err
			}
			out.WriteInt64(v.Price)

			return nil
		},
		func(in *buffer.Input) (quote, error) {
			symbol, err := in.ReadString()
			if err != nil {
				return quote{}, err
			}
			price, err := in.ReadInt64()

			return quote{Symbol: symbol, Price: price}, err
		},
	)))
	book.Seal()

	return book
}

// listener collects the quotes delivered to a started member of bus.
type listener struct {
	mu     sync.Mutex
	quotes []quote
}

func listen(t *testing.T, bus *mem.Bus, book *codebook.CodeBook) *listener {
	t.Helper()

	l := &listener{}
	svc := bus.Service()
	require.NoError(t, svc.RegisterReceiver(quoteTopic, transport.ReceiverFunc(func(_ int32, payload []byte) {
		v, err := book.Unmarshal(payload)
		if err != nil {
			t.Errorf("unmarshal: %v", err)
			return
		}
		l.mu.Lock()
		l.quotes = append(l.quotes, v.(quote))
		l.mu.Unlock()
	})))
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	return l
}

func (l *listener) Quotes() []quote {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]quote(nil), l.quotes...)
}

func TestPublisher_EndToEnd(t *testing.T) {
	book := newBook(t)
	bus := mem.NewBus()
	l := listen(t, bus, book)

	pub, err := NewPublisher(book, bus.Service(), quoteTopic,
		WithCapacity(4),
		WithLogger(zaptest.NewLogger(t)),
		WithServiceLifecycle(),
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, pub.Start(ctx))

	var want []quote
	for i := range 10 {
		q := quote{Symbol: "ACME", Price: int64(100 + i)}
		seq, err := pub.PublishContext(ctx, q)
		require.NoError(t, err)
		require.Equal(t, int64(i), seq)
		want = append(want, q)
	}

	require.NoError(t, pub.Close(ctx))
	require.Equal(t, want, l.Quotes())
	require.Equal(t, int64(9), pub.LastSent())
	require.NoError(t, pub.Err())
}

func TestPublisher_PublishAtOutOfOrder(t *testing.T) {
	book := newBook(t)
	bus := mem.NewBus()
	l := listen(t, bus, book)

	pub, err := NewPublisher(book, bus.Service(), quoteTopic, WithServiceLifecycle())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, pub.Start(ctx))

	for _, seq := range []int64{2, 0, 3, 1} {
		require.NoError(t, pub.PublishAt(seq, quote{Symbol: "S", Price: seq}))
	}
	require.Equal(t, int64(3), pub.Sequence())

	require.NoError(t, pub.Close(ctx))
	require.Equal(t, []quote{
		{Symbol: "S", Price: 0},
		{Symbol: "S", Price: 1},
		{Symbol: "S", Price: 2},
		{Symbol: "S", Price: 3},
	}, l.Quotes())
}

func TestPublisher_FullRing(t *testing.T) {
	book := newBook(t)
	bus := mem.NewBus()
	l := listen(t, bus, book)

	pub, err := NewPublisher(book, bus.Service(), quoteTopic, WithCapacity(2), WithServiceLifecycle())
	require.NoError(t, err)

	for i := range 2 {
		seq, err := pub.Publish(quote{Price: int64(i)})
		require.NoError(t, err)
		require.Equal(t, int64(i), seq)
	}

	seq, err := pub.Publish(quote{Price: 2})
	require.ErrorIs(t, err, errs.ErrSequenceWrap)
	require.Equal(t, int64(2), seq, "a rejected publish does not consume its sequence")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err = pub.PublishContext(ctx, quote{Price: 2})
	cancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, pub.Start(context.Background()))

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seq, err = pub.PublishContext(ctx, quote{Price: 2})
	require.NoError(t, err)
	require.Equal(t, int64(2), seq)

	require.NoError(t, pub.Close(ctx))
	require.Len(t, l.Quotes(), 3)
}

func TestPublisher_DiscardOnClose(t *testing.T) {
	book := newBook(t)
	svc := mem.New()

	pub, err := NewPublisher(book, svc, quoteTopic,
		WithSenderOptions(sender.WithShutdownPolicy(sender.Discard)),
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Start(ctx))
	require.NoError(t, pub.Close(ctx), "close before start is a no-op")
	require.NoError(t, svc.Shutdown(ctx))
}

func TestPublisher_EncodingError(t *testing.T) {
	pub, err := NewPublisher(newBook(t), mem.New(), quoteTopic)
	require.NoError(t, err)

	_, err = pub.Publish(struct{ N int }{N: 1})
	require.ErrorIs(t, err, errs.ErrEncoding)
	require.Equal(t, int64(-1), pub.Sequence())

	seq, err := pub.Publish(quote{Symbol: "OK"})
	require.NoError(t, err)
	require.Equal(t, int64(0), seq)
}

func TestPublisher_InvalidConfiguration(t *testing.T) {
	book := newBook(t)

	_, err := NewPublisher(nil, mem.New(), quoteTopic)
	require.ErrorIs(t, err, errs.ErrConfiguration)

	_, err = NewPublisher(book, nil, quoteTopic)
	require.ErrorIs(t, err, errs.ErrConfiguration)

	_, err = NewPublisher(book, mem.New(), quoteTopic, WithCapacity(0))
	require.ErrorIs(t, err, errs.ErrConfiguration)
}
