package server

import (
	"context"
	"testing"
	"time"

	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_BlocksAtCapacity(t *testing.T) {
	d := &fakeDialer{}
	p := NewPool(1, d.dial, nil)
	ctx := context.Background()

	s1, err := p.Acquire(ctx)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(short)
	assert.True(t, errs.IsTimeout(err))

	p.Release(ctx, s1)
	s2, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, d.count())
	p.Release(ctx, s2)
}

func TestPool_DialErrorFreesSlot(t *testing.T) {
	d := &fakeDialer{fail: errs.New(errs.ErrKindConnectionFailed, "refused")}
	p := NewPool(1, d.dial, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := p.Acquire(ctx)
		assert.True(t, errs.IsConnectionFailed(err))
	}
}

func TestPool_Close(t *testing.T) {
	d := &fakeDialer{}
	p := NewPool(2, d.dial, nil)
	ctx := context.Background()

	idle, err := p.Acquire(ctx)
	require.NoError(t, err)
	busy, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(ctx, idle)

	p.Close(ctx)
	assert.True(t, d.sessions[0].closed)
	assert.False(t, d.sessions[1].closed)

	p.Release(ctx, busy)
	assert.True(t, d.sessions[1].closed)

	_, err = p.Acquire(ctx)
	assert.True(t, errs.IsMisuse(err))
}
