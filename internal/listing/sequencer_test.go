package listing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequencer_NewerRequestSupersedesOlder(t *testing.T) {
	s := NewSequencer()

	ctx1, t1 := s.Begin(context.Background(), "user:u-1|flyers")
	assert.True(t, t1.Current())

	ctx2, t2 := s.Begin(context.Background(), "user:u-1|flyers")

	assert.False(t, t1.Current())
	assert.True(t, t2.Current())
	assert.ErrorIs(t, ctx1.Err(), context.Canceled, "older request must be aborted")
	assert.NoError(t, ctx2.Err())

	t1.Done()
	assert.True(t, t2.Current(), "finishing a stale ticket must not release the newer one")
	assert.Equal(t, 1, s.Len())

	t2.Done()
	assert.Equal(t, 0, s.Len())
	assert.ErrorIs(t, ctx2.Err(), context.Canceled)
}

func TestSequencer_ViewsAreIndependent(t *testing.T) {
	s := NewSequencer()

	ctxA, a := s.Begin(context.Background(), "visitor:v-1|flyers")
	_, b := s.Begin(context.Background(), "visitor:v-1|coupons")

	assert.True(t, a.Current())
	assert.True(t, b.Current())
	assert.NoError(t, ctxA.Err())
	assert.Equal(t, 2, s.Len())
}

func TestSequencer_EmptyViewIsNotSequenced(t *testing.T) {
	s := NewSequencer()

	ctx1, t1 := s.Begin(context.Background(), "")
	_, t2 := s.Begin(context.Background(), "")

	assert.True(t, t1.Current())
	assert.True(t, t2.Current())
	assert.NoError(t, ctx1.Err())
	assert.Equal(t, 0, s.Len())

	t1.Done()
	t2.Done()
}

func TestSequencer_ParentCancellationPropagates(t *testing.T) {
	s := NewSequencer()
	parent, cancel := context.WithCancel(context.Background())

	ctx, tk := s.Begin(parent, "view")
	defer tk.Done()
	cancel()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, tk.Current(), "client disconnect is not supersession")
}
