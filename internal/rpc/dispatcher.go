package rpc

import (
	"sync"
	"time"

	"github.com/cuemby/nebulastore/internal/errs"
	"github.com/cuemby/nebulastore/pkg/metrics"
)

// maxRetries bounds the number of times the dispatcher will retry a
// single sub-request after a LeaderChanged error, per spec.md §4.7's
// "retries up to a bounded number of attempts".
const maxRetries = 2

// hostConcurrency caps how many sub-requests this host dispatches
// concurrently to the local partition set, per spec.md §4.7's
// "per-host concurrency cap".
const hostConcurrency = 32

// dispatch fans items out across a bounded worker pool, calling do
// once per item (retrying up to maxRetries times on LeaderChanged),
// and folds the per-item outcome into a BatchResponse keyed by
// whichever partition partitionOf resolves the item to. method names
// the metrics series; items whose partitionOf itself fails are
// recorded under partition 0 since no partition was ever resolved for
// them.
func dispatch[T any](method string, items []T, partitionOf func(T) (uint32, error), do func(T) error) *BatchResponse {
	resp := newBatchResponse()
	if len(items) == 0 {
		return resp
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, hostConcurrency)

	for _, item := range items {
		item := item
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			partID, err := partitionOf(item)
			if err != nil {
				mu.Lock()
				resp.record(0, err)
				mu.Unlock()
				recordRPCResult(method, err)
				return
			}

			start := time.Now()
			err = do(item)
			for attempt := 0; err != nil && errs.CodeOf(err) == errs.LeaderChanged && attempt < maxRetries; attempt++ {
				metrics.RPCRetriesTotal.WithLabelValues("leader_changed").Inc()
				err = do(item)
			}
			metrics.RPCRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
			recordRPCResult(method, err)

			mu.Lock()
			resp.record(partID, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	resp.finish(len(items))
	return resp
}

func recordRPCResult(method string, err error) {
	code := errs.Ok
	if err != nil {
		code = errs.CodeOf(err)
	}
	metrics.RPCRequestsTotal.WithLabelValues(method, string(code)).Inc()
}
