package safe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGoCtx_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	GoCtx(context.Background(), func(ctx context.Context) {
		defer close(done)
		panic("publish failed")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("协程没有执行")
	}
}

func TestRun_DoesNotPropagate(t *testing.T) {
	assert.NotPanics(t, func() {
		Run(context.Background(), func() { panic("x") })
	})
}
