// Copyright 2025 AdMesh
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter enforces a per-client requests-per-minute cap on the
// orchestrate API using a sliding window.
//
// With Redis configured the window is shared across instances; without it
// (or on any Redis error) the limiter falls back to an in-memory window in
// this process. Redis errors fail open so a broken Redis never blocks
// traffic.
type RateLimiter struct {
	client         *redis.Client
	limitPerMinute int

	mu    sync.Mutex
	local map[string][]time.Time
}

// NewRateLimiter creates a rate limiter. An empty redisURL selects the
// in-memory window only.
func NewRateLimiter(redisURL string, limitPerMinute int) (*RateLimiter, error) {
	rl := &RateLimiter{
		limitPerMinute: limitPerMinute,
		local:          make(map[string][]time.Time),
	}

	if redisURL == "" {
		return rl, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rl.client = redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rl.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[RateLimiter] Redis connected: %s", redisURL)
	return rl, nil
}

// Allow returns an error when clientID has exceeded its per-minute budget
func (rl *RateLimiter) Allow(ctx context.Context, clientID string) error {
	if rl.limitPerMinute <= 0 {
		return nil
	}
	if rl.client == nil {
		return rl.allowLocal(clientID)
	}

	now := time.Now()
	key := fmt.Sprintf("ratelimit:%s", clientID)

	// Pipeline keeps the window operations atomic
	pipe := rl.client.Pipeline()
	minScore := now.Add(-time.Minute).Unix()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", minScore))
	pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.Unix()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, key, 2*time.Minute)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		// Fail open on Redis errors
		log.Printf("[RateLimiter] Redis check failed for %s: %v (failing open)", clientID, err)
		return nil
	}

	count := cmds[1].(*redis.IntCmd).Val()
	if count >= int64(rl.limitPerMinute) {
		return fmt.Errorf("rate limit exceeded: %d requests/minute (limit: %d)", count+1, rl.limitPerMinute)
	}
	return nil
}

// allowLocal is the in-memory sliding window fallback
func (rl *RateLimiter) allowLocal(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	window := rl.local[clientID]
	pruned := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= rl.limitPerMinute {
		rl.local[clientID] = pruned
		return fmt.Errorf("rate limit exceeded: %d requests/minute (limit: %d)", len(pruned)+1, rl.limitPerMinute)
	}

	rl.local[clientID] = append(pruned, now)
	return nil
}

// Status returns the request count in the current window for clientID
func (rl *RateLimiter) Status(ctx context.Context, clientID string) (int, error) {
	if rl.client == nil {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		cutoff := time.Now().Add(-time.Minute)
		count := 0
		for _, ts := range rl.local[clientID] {
			if ts.After(cutoff) {
				count++
			}
		}
		return count, nil
	}

	key := fmt.Sprintf("ratelimit:%s", clientID)
	minScore := time.Now().Add(-time.Minute).Unix()
	count, err := rl.client.ZCount(ctx, key, fmt.Sprintf("%d", minScore), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get rate limit status: %w", err)
	}
	return int(count), nil
}

// Close releases the Redis connection if one was opened
func (rl *RateLimiter) Close() error {
	if rl.client != nil {
		return rl.client.Close()
	}
	return nil
}
