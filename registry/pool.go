package registry

import (
	"context"
	"fmt"

	"github.com/das-labor/panopticon-sub002/absint"
	"github.com/das-labor/panopticon-sub002/arch"
	"github.com/das-labor/panopticon-sub002/function"
	"github.com/das-labor/panopticon-sub002/resolver"
	"github.com/das-labor/panopticon-sub002/rreil"
	"golang.org/x/sync/errgroup"
)

// Job describes one function to build, resolve, and publish: an entry address
// into region, decoded with a, with domain driving the resolver and enumerate
// extracting concrete addresses from its lattice elements.
type Job[C any, V absint.Value[V]] struct {
	Name      string
	Entry     uint64
	Arch      arch.Architecture[C]
	Region    arch.Region
	Domain    absint.Domain[V]
	Enumerate resolver.Enumerate[V]
}

// WorkerPool runs independent function analyses concurrently, publishing each
// completed Function to a shared Registry via a single mutex-guarded map, and
// fans the jobs out with golang.org/x/sync/errgroup so the first job's error
// cancels the rest.
type WorkerPool[C any, V absint.Value[V]] struct {
	reg *Registry
}

// NewWorkerPool returns a WorkerPool that publishes into reg.
func NewWorkerPool[C any, V absint.Value[V]](reg *Registry) *WorkerPool[C, V] {
	return &WorkerPool[C, V]{reg: reg}
}

// Run builds, resolves, and publishes every job concurrently, returning the
// first error encountered (places no ordering requirement across independent
// functions, so the first failure — not necessarily the first job — aborts the
// remaining work via ctx cancellation). A job's own Builder/Function are owned
// exclusively by its goroutine, matching the "single-threaded per function"
// rule; nothing here shares mutable state between jobs except the Registry
// itself.
func (p *WorkerPool[C, V]) Run(ctx context.Context, jobs []Job[C, V]) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			fn, err := p.runOne(j)
			if err != nil {
				return fmt.Errorf("%s: %w", j.Name, err)
			}
			p.reg.Put(fn)
			return nil
		})
	}
	return g.Wait()
}

// runOne builds then resolves j. Build's error return may carry aggregated,
// non-fatal DecodeErrors alongside an otherwise-usable Function (: DecodeError
// is recoverable); only a nil Function means Build hit a fatal error
// (EmptyRegion) and never produced one.
func (p *WorkerPool[C, V]) runOne(j Job[C, V]) (*rreil.Function, error) {
	b := function.New[C](j.Name, j.Arch, j.Region)
	fn, err := b.Build(j.Entry)
	if fn == nil {
		return nil, err
	}
	if err := resolver.Resolve[C, V](b, j.Domain, j.Enumerate); err != nil {
		return nil, err
	}
	return b.Function(), nil
}
