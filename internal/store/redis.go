package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/alucardeht/fstspell/internal/locale"
)

const DefaultRedisPrefix = "fstspell:"

// Redis keeps one set per locale for learned words and one for ignored
// rules, so several daemons can share a user's dictionary.
type Redis struct {
	client *redis.Client
	prefix string
}

var _ Store = (*Redis)(nil)

func OpenRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Debug("redis store opened", "addr", opts.Addr)
	return NewRedis(client, prefix), nil
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) learnedKey(tag locale.Tag) string {
	return r.prefix + "learned:" + string(tag)
}

func (r *Redis) ignoredKey(tag locale.Tag) string {
	return r.prefix + "ignored:" + string(tag)
}

func (r *Redis) Learn(ctx context.Context, tag locale.Tag, word string) error {
	if err := validate("learn", tag, word); err != nil {
		return err
	}
	return r.client.SAdd(ctx, r.learnedKey(tag), word).Err()
}

func (r *Redis) Unlearn(ctx context.Context, tag locale.Tag, word string) error {
	if err := validate("unlearn", tag, word); err != nil {
		return err
	}
	return r.client.SRem(ctx, r.learnedKey(tag), word).Err()
}

func (r *Redis) IsLearned(ctx context.Context, tag locale.Tag, word string) (bool, error) {
	return r.client.SIsMember(ctx, r.learnedKey(tag), word).Result()
}

func (r *Redis) Learned(ctx context.Context, tag locale.Tag) ([]string, error) {
	return r.members(ctx, r.learnedKey(tag))
}

func (r *Redis) IgnoreRule(ctx context.Context, tag locale.Tag, ruleID string) error {
	if err := validate("ignore_rule", tag, ruleID); err != nil {
		return err
	}
	return r.client.SAdd(ctx, r.ignoredKey(tag), ruleID).Err()
}

func (r *Redis) ResetIgnoredRules(ctx context.Context, tag locale.Tag) error {
	if tag != "" {
		return r.client.Del(ctx, r.ignoredKey(tag)).Err()
	}
	iter := r.client.Scan(ctx, 0, r.prefix+"ignored:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) IgnoredRules(ctx context.Context, tag locale.Tag) ([]string, error) {
	return r.members(ctx, r.ignoredKey(tag))
}

func (r *Redis) members(ctx context.Context, key string) ([]string, error) {
	out, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
