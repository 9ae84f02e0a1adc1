package safe

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"

	"cashup.com/pkg/logger"
)

// Go 安全启动协程
func Go(fn func()) {
	GoCtx(context.Background(), func(context.Context) { fn() })
}

// GoCtx 安全启动携带 context 的协程，日志里保留请求链路信息
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer recovered(ctx)
		fn(ctx)
	}()
}

// Run 同步执行，panic 转成日志，不往外抛
func Run(ctx context.Context, fn func()) {
	defer recovered(ctx)
	fn()
}

func recovered(ctx context.Context) {
	if r := recover(); r != nil {
		logger.Error(ctx, "🚨 GOROUTINE PANIC RECOVERED",
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
