package sequence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "inventory:asn:seq:"

// Seeder отдаёт наибольший уже выданный номер за год (из БД).
type Seeder interface {
	MaxSequence(ctx context.Context, year int) (int, error)
}

// Redis — счётчик номеров назначений на INCR. Ключ на год создаётся из
// максимума в БД через SETNX, дальше номера выдаёт только Redis.
// Номер не откатывается вместе с транзакцией: пропуски допустимы, повторы нет.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) key(year int) string { return fmt.Sprintf("%s%d", r.prefix, year) }

// Bind привязывает счётчик к источнику затравки текущей транзакции.
func (r *Redis) Bind(seed Seeder) *Bound { return &Bound{r: r, seed: seed} }

// Current — последний выданный номер за год; 0, если ключа нет.
func (r *Redis) Current(ctx context.Context, year int) (int, error) {
	v, err := r.rdb.Get(ctx, r.key(year)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

type Bound struct {
	r    *Redis
	seed Seeder
}

func (b *Bound) Next(ctx context.Context, year int) (int, error) {
	key := b.r.key(year)
	n, err := b.r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis exists %s: %w", key, err)
	}
	if n == 0 && b.seed != nil {
		last, err := b.seed.MaxSequence(ctx, year)
		if err != nil {
			return 0, fmt.Errorf("seed sequence %d: %w", year, err)
		}
		// проигравший SETNX просто продолжает с уже заведённого значения
		if err := b.r.rdb.SetNX(ctx, key, last, 0).Err(); err != nil {
			return 0, fmt.Errorf("redis setnx %s: %w", key, err)
		}
	}
	v, err := b.r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return int(v), nil
}
