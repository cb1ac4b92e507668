package mem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/transport"
)

type collector struct {
	payloads [][]byte
}

func (c *collector) Receive(_ int32, payload []byte) {
	c.payloads = append(c.payloads, payload)
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.Send(ctx, 1, []byte("early"))
	require.ErrorIs(t, err, errs.ErrTransport)

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Send(ctx, 1, []byte("ok")))

	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, s.Shutdown(ctx))
	require.ErrorIs(t, s.Send(ctx, 1, []byte("late")), errs.ErrTransport)
	require.ErrorIs(t, s.Start(ctx), errs.ErrTransport)
}

func TestService_Loopback(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := &collector{}
	require.NoError(t, s.RegisterReceiver(7, c))
	require.NoError(t, s.Start(ctx))

	payload := []byte("hello")
	require.NoError(t, s.Send(ctx, 7, payload))
	require.NoError(t, s.Send(ctx, 8, []byte("other topic")))

	payload[0] = 'j'
	require.Equal(t, [][]byte{[]byte("hello")}, c.payloads, "receivers get a copy")
}

func TestBus_DeliversToRunningMembers(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()
	a, b, idle := bus.Service(), bus.Service(), bus.Service()

	ca, cb, ci := &collector{}, &collector{}, &collector{}
	require.NoError(t, a.RegisterReceiver(1, ca))
	require.NoError(t, b.RegisterReceiver(1, cb))
	require.NoError(t, idle.RegisterReceiver(1, ci))
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))

	require.NoError(t, a.Send(ctx, 1, []byte("x")))
	require.Len(t, ca.payloads, 1)
	require.Len(t, cb.payloads, 1)
	require.Empty(t, ci.payloads)

	require.NoError(t, b.Shutdown(ctx))
	require.NoError(t, a.Send(ctx, 1, []byte("y")))
	require.Len(t, cb.payloads, 1)
	require.Len(t, ca.payloads, 2)
}

func TestService_RegisterNil(t *testing.T) {
	s := New()
	require.ErrorIs(t, s.RegisterReceiver(1, nil), errs.ErrConfiguration)
}

func TestService_CancelledContext(t *testing.T) {
	s := New()
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Send(ctx, 1, nil)
	require.ErrorIs(t, err, errs.ErrTransport)
	require.ErrorIs(t, err, context.Canceled)
}

var _ transport.Receiver = (*collector)(nil)
