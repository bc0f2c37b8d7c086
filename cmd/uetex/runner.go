package main

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type jobFunc func(ctx context.Context, j job) error

// runJobs runs fn over jobs with at most workers in flight. The first
// failure cancels the rest.
func runJobs(ctx context.Context, jobs []job, workers int, fn jobFunc) (int, error) {
	var done atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, j); err != nil {
				return errors.Wrapf(err, "%s", j.File)
			}
			done.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(done.Load()), err
}
