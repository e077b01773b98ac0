package generate

import (
	"context"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/resilience"
)

// Guard runs a generator through a resilience executor. Executor
// rejections (open circuit, full bulkhead, rate limit, timeout) come back
// as generation failures for the request's kind.
type Guard struct {
	next Generator
	exec *resilience.Executor
}

// NewGuard wraps next with exec. A nil exec passes calls straight through.
func NewGuard(next Generator, exec *resilience.Executor) *Guard {
	return &Guard{next: next, exec: exec}
}

// Generate calls the wrapped generator under the executor.
func (g *Guard) Generate(ctx context.Context, req Request) (string, error) {
	if g.exec == nil {
		payload, err := g.next.Generate(ctx, req)
		return payload, Wrap(req.Kind, err)
	}

	var payload string
	err := g.exec.Execute(ctx, func(ctx context.Context) error {
		p, err := g.next.Generate(ctx, req)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		return "", Wrap(req.Kind, err)
	}
	return payload, nil
}

// GuardSet wraps every generator in s with the same executor, so all kinds
// share one circuit, bulkhead and rate limit.
func GuardSet(s Set, exec *resilience.Executor) Set {
	return s.Wrap(func(_ artifact.Kind, g Generator) Generator {
		return NewGuard(g, exec)
	})
}

var _ Generator = (*Guard)(nil)
