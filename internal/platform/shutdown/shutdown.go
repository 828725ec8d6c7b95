package shutdown

import (
	"context"
	"os/signal"
	"syscall"
)

func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Func releases a resource within the deadline carried by ctx.
type Func func(ctx context.Context) error

// Stack runs registered shutdown funcs in reverse registration order.
type Stack struct {
	funcs []namedFunc
}

type namedFunc struct {
	name string
	fn   Func
}

func (s *Stack) Push(name string, fn Func) {
	if fn == nil {
		return
	}
	s.funcs = append(s.funcs, namedFunc{name: name, fn: fn})
}

// Run calls every func even when earlier ones fail; onErr sees each failure.
func (s *Stack) Run(ctx context.Context, onErr func(name string, err error)) {
	for i := len(s.funcs) - 1; i >= 0; i-- {
		f := s.funcs[i]
		if err := f.fn(ctx); err != nil && onErr != nil {
			onErr(f.name, err)
		}
	}
	s.funcs = nil
}
