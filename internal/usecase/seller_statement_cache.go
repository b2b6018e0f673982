package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Seller statement reads are cached under the period's current generation. Every aggregate
// write moves the generation forward, so an entry filled by a read that raced the write is
// left behind under the old generation and expires unread.

const initialGeneration = "0"

func sellerStatementCacheKey(period, generation string) string {
	return "seller-statements:" + period + ":" + generation
}

func sellerStatementGenerationKey(period string) string {
	return "seller-statements:" + period + ":generation"
}

// currentGeneration reports false when the generation cannot be read; the caller then
// bypasses the cache.
func currentGeneration(ctx context.Context, cache Cache, period string) (string, bool, error) {
	data, err := cache.Get(ctx, sellerStatementGenerationKey(period))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return initialGeneration, true, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// advanceGeneration must run after the period's documents are written and while its lock is
// held. The generation key has no TTL.
func advanceGeneration(ctx context.Context, cache Cache, period string, now time.Time) error {
	next := now.UnixNano()
	if current, ok, err := currentGeneration(ctx, cache, period); err == nil && ok {
		if prev, err := strconv.ParseInt(current, 10, 64); err == nil && prev >= next {
			next = prev + 1
		}
	}
	return cache.Set(ctx, sellerStatementGenerationKey(period), []byte(strconv.FormatInt(next, 10)), 0)
}
