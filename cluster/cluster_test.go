package cluster

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeServer struct {
	err     error
	started atomic.Bool
}

func (f *fakeServer) ListenAndServe(ctx context.Context) error {
	f.started.Store(true)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return nil
}

func TestRunCollectsFirstErrorWithoutCancellingSiblings(t *testing.T) {
	failing := &fakeServer{err: errors.New("bind failed")}
	healthy := &fakeServer{}

	c := &Cluster{Servers: []Server{failing, healthy}}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := c.Run(ctx)
	assert.Error(t, err)
	assert.True(t, failing.started.Load())
	assert.True(t, healthy.started.Load())
}

func TestRunReturnsNilWhenAllServersExitCleanly(t *testing.T) {
	a := &fakeServer{}
	b := &fakeServer{}
	c := &Cluster{Servers: []Server{a, b}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.NoError(t, c.Run(ctx))
}
