// Package cache memoizes per (unit, lead) match results in Redis. Keys carry
// the version stamps of both records and the weights fingerprint, so an entry
// is never served after either side or the weighting changes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/denisok6893-rgb/condo-unit-matching/internal/domain"
	"github.com/denisok6893-rgb/condo-unit-matching/internal/matching"
)

const defaultTTL = 10 * time.Minute

// Ranker ranks units for a lead, scoring only the pairs missing from Redis.
type Ranker struct {
	client      *redis.Client
	engine      *matching.Engine
	ttl         time.Duration
	prefix      string
	fingerprint string
}

// NewRanker connects to redisURL and checks it is reachable.
func NewRanker(redisURL string, engine *matching.Engine, ttl time.Duration) (*Ranker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRankerWithClient(client, engine, ttl), nil
}

// NewRankerWithClient builds a Ranker on an existing client.
func NewRankerWithClient(client *redis.Client, engine *matching.Engine, ttl time.Duration) *Ranker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Ranker{
		client:      client,
		engine:      engine,
		ttl:         ttl,
		prefix:      "match:",
		fingerprint: engine.Weights().Fingerprint(),
	}
}

func (r *Ranker) key(lead domain.Lead, u domain.Unit) string {
	return r.prefix + r.fingerprint +
		":" + lead.ID + ":" + strconv.FormatInt(lead.UpdatedAt.UnixNano(), 10) +
		":" + u.ID + ":" + strconv.FormatInt(u.UpdatedAt.UnixNano(), 10)
}

// cacheable reports whether the pair has stable identities to key on. Ad-hoc
// snapshots without ids or stamps are always scored fresh.
func cacheable(lead domain.Lead, u domain.Unit) bool {
	return lead.ID != "" && u.ID != "" && !lead.UpdatedAt.IsZero() && !u.UpdatedAt.IsZero()
}

// RankLead returns the same ordering as matching.Engine.RankUnits. Redis
// failures are logged and fall back to scoring everything.
func (r *Ranker) RankLead(ctx context.Context, lead domain.Lead, units []domain.Unit) ([]domain.RankedUnit, error) {
	prefs := lead.Preferences()
	results := make([]domain.MatchResult, len(units))
	cached := make([]bool, len(units))

	keys := make([]string, 0, len(units))
	idx := make([]int, 0, len(units))
	for i, u := range units {
		if cacheable(lead, u) {
			keys = append(keys, r.key(lead, u))
			idx = append(idx, i)
		}
	}

	if len(keys) > 0 {
		vals, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			log.WithError(err).WithField("lead_id", lead.ID).Warn("match cache read failed")
		} else {
			for j, v := range vals {
				s, ok := v.(string)
				if !ok {
					continue
				}
				var res domain.MatchResult
				if err := json.Unmarshal([]byte(s), &res); err != nil {
					continue
				}
				results[idx[j]] = res
				cached[idx[j]] = true
			}
		}
	}

	pipe := r.client.Pipeline()
	misses := 0
	for i, u := range units {
		if cached[i] {
			continue
		}
		results[i] = r.engine.Score(u, prefs)
		if !cacheable(lead, u) {
			continue
		}
		b, err := json.Marshal(results[i])
		if err != nil {
			continue
		}
		pipe.Set(ctx, r.key(lead, u), b, r.ttl)
		misses++
	}
	if misses > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			log.WithError(err).WithField("lead_id", lead.ID).Warn("match cache write failed")
		}
	}

	log.WithFields(log.Fields{
		"lead_id": lead.ID,
		"units":   len(units),
		"hits":    len(units) - countFalse(cached),
	}).Debug("ranked lead")

	return matching.Rank(units, results), nil
}

func (r *Ranker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Ranker) Close() error {
	return r.client.Close()
}

func countFalse(bs []bool) int {
	n := 0
	for _, b := range bs {
		if !b {
			n++
		}
	}
	return n
}
