package sampler

import "context"

// PrefetchPass runs one pass with batch preparation decoupled from the
// consumer: a producer goroutine pads up to depth batches ahead while the
// consumer processes the current one. depth < 1 is treated as 1.
//
// The returned channel delivers exactly the batches of one Pass(), each fully
// padded before it is sent, and is closed when the pass is exhausted or ctx
// is cancelled. On cancellation the producer stops and releases its buffered
// batches without blocking; the consumer just ranges until the channel
// closes.
//
// The pass plan is drawn from the sampler's random state synchronously,
// before PrefetchPass returns, so interleaving prefetched and plain passes
// stays deterministic for a given construction seed.
func (s *Sampler) PrefetchPass(ctx context.Context, depth int) <-chan *Batch {
	if depth < 1 {
		depth = 1
	}
	plan := s.planPass()
	out := make(chan *Batch, depth)
	go func() {
		defer close(out)
		for _, batchIndices := range plan {
			batch := s.pad(batchIndices)
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
