package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisPersister keeps each risk's history in a Redis list, with a set
// indexing the known risk ids.
type RedisPersister struct {
	client *redis.Client
	prefix string
}

// NewRedisPersister wraps an existing client. prefix namespaces all keys.
func NewRedisPersister(client *redis.Client, prefix string) *RedisPersister {
	if prefix == "" {
		prefix = "riskquant"
	}
	return &RedisPersister{client: client, prefix: prefix}
}

func (p *RedisPersister) indexKey() string { return p.prefix + ":history:index" }

func (p *RedisPersister) listKey(riskID string) string {
	return p.prefix + ":history:" + riskID
}

// LoadAll reads every indexed history list.
func (p *RedisPersister) LoadAll(ctx context.Context) (map[string][]Snapshot, error) {
	ids, err := p.client.SMembers(ctx, p.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history index: %w", err)
	}

	out := make(map[string][]Snapshot, len(ids))
	for _, id := range ids {
		raw, err := p.client.LRange(ctx, p.listKey(id), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read history for %s: %w", id, err)
		}
		snaps := make([]Snapshot, 0, len(raw))
		for _, r := range raw {
			var s Snapshot
			if err := json.Unmarshal([]byte(r), &s); err != nil {
				log.Warn().Err(err).Str("risk", id).Msg("Skipping invalid snapshot in Redis")
				continue
			}
			snaps = append(snaps, s)
		}
		if len(snaps) > 0 {
			out[id] = snaps
		}
	}
	return out, nil
}

// Save replaces the stored list for riskID in a single transaction.
func (p *RedisPersister) Save(ctx context.Context, riskID string, snaps []Snapshot) error {
	values := make([]any, 0, len(snaps))
	for _, s := range snaps {
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		values = append(values, b)
	}

	key := p.listKey(riskID)
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
			pipe.LTrim(ctx, key, -MaxSnapshots, -1)
		}
		pipe.SAdd(ctx, p.indexKey(), riskID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save history for %s: %w", riskID, err)
	}
	return nil
}
