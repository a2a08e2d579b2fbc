package async

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/utils/errutil"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
)

// Group runs detached background jobs and lets the owner wait for them.
// The zero value is ready to use.
type Group struct {
	wg sync.WaitGroup
}

// Go runs job in a new goroutine on a context detached from ctx's
// cancellation. The logger of ctx is carried over. A failing or panicking job
// is logged and reported, never propagated.
func (g *Group) Go(ctx context.Context, name string, job func(ctx context.Context) error) {
	bgCtx := logging.With(context.WithoutCancel(ctx), logging.From(ctx).With("job", name))

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				_ = errutil.Handle(bgCtx, goerr.New("panic in background job", goerr.V("panic", r)), "background job panicked")
			}
		}()

		if err := job(bgCtx); err != nil {
			_ = errutil.Handle(bgCtx, err, "background job failed")
		}
	}()
}

// Wait blocks until every job started by Go has returned
func (g *Group) Wait() {
	g.wg.Wait()
}
