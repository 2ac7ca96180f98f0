package worker

import "context"

// indexedJob carries its input position so results can be put back in order
type indexedJob[T, R any] struct {
	index int
	item  T
	fn    func(ctx context.Context, index int, item T) R
}

type indexedResult[R any] struct {
	index int
	value R
}

func (r *indexedResult[R]) GetError() error {
	return nil
}

func (j *indexedJob[T, R]) Execute(ctx context.Context) Result {
	return &indexedResult[R]{index: j.index, value: j.fn(ctx, j.index, j.item)}
}

// Map runs fn over items on a pool of workers and returns the results in input order
//
// fn must not share mutable state across items. Items never reached because
// ctx was cancelled keep the zero value of R.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, index int, item T) R) []R {
	out := make([]R, len(items))
	if len(items) == 0 {
		return out
	}

	if workers <= 1 || len(items) == 1 {
		for i, item := range items {
			if ctx.Err() != nil {
				break
			}
			out[i] = fn(ctx, i, item)
		}
		return out
	}

	if workers > len(items) {
		workers = len(items)
	}

	pool := NewPool(ctx, workers)
	pool.Start()

	go func() {
		for i, item := range items {
			pool.Submit(&indexedJob[T, R]{index: i, item: item, fn: fn})
		}
	}()

	collected := 0
	for collected < len(items) {
		select {
		case res, ok := <-pool.Results():
			if !ok {
				return out
			}
			r := res.(*indexedResult[R])
			out[r.index] = r.value
			collected++
		case <-ctx.Done():
			pool.Shutdown()
			return out
		}
	}

	pool.Shutdown()
	return out
}
