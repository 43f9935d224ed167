package drinks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const (
	redisSeqKey    = "drinks:seq"
	redisIDsKey    = "drinks:ids"
	redisTitlesKey = "drinks:titles"

	// maxTxRetries bounds optimistic transaction retries on WATCH conflicts.
	maxTxRetries = 10
)

func redisItemKey(id int) string {
	return fmt.Sprintf("drinks:item:%d", id)
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore returns a drink store backed by Redis. Each drink is a JSON
// value, a sorted set keeps ids in order and a hash maps titles to ids.
func NewRedisStore(ctx context.Context, addr, password string, db int) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", addr)
	}
	return &redisStore{client: client}, nil
}

func (s *redisStore) List(ctx context.Context) ([]Drink, error) {
	ids, err := s.client.ZRange(ctx, redisIDsKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	res := []Drink{}
	if len(ids) == 0 {
		return res, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			return nil, errors.Wrapf(err, "bad drink id %q", id)
		}
		keys = append(keys, redisItemKey(n))
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Deleted between ZRANGE and MGET.
			continue
		}
		var d Drink
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", keys[i])
		}
		res = append(res, d)
	}
	return res, nil
}

func (s *redisStore) Get(ctx context.Context, id int) (Drink, error) {
	return getRedisDrink(ctx, s.client, id)
}

func getRedisDrink(ctx context.Context, c redis.Cmdable, id int) (Drink, error) {
	var d Drink
	raw, err := c.Get(ctx, redisItemKey(id)).Bytes()
	if err == redis.Nil {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, errors.Wrapf(err, "decoding drink %d", id)
	}
	return d, nil
}

// watch runs fn in an optimistic transaction, retrying on conflicts.
func (s *redisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return errors.New("redis: too many concurrent drink updates")
}

func (s *redisStore) Create(ctx context.Context, d Drink) (Drink, error) {
	if err := d.Validate(); err != nil {
		return Drink{}, err
	}
	err := s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, redisTitlesKey, d.Title).Result()
		if err != nil {
			return err
		}
		if exists {
			return ErrTitleExists
		}
		seq, err := tx.Incr(ctx, redisSeqKey).Result()
		if err != nil {
			return err
		}
		d.ID = int(seq)
		raw, err := json.Marshal(d)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisItemKey(d.ID), raw, 0)
			pipe.ZAdd(ctx, redisIDsKey, &redis.Z{Score: float64(d.ID), Member: d.ID})
			pipe.HSet(ctx, redisTitlesKey, d.Title, d.ID)
			return nil
		})
		return err
	}, redisTitlesKey)
	if err != nil {
		return Drink{}, err
	}
	return d, nil
}

func (s *redisStore) Update(ctx context.Context, d Drink) (Drink, error) {
	if err := d.Validate(); err != nil {
		return Drink{}, err
	}
	err := s.watch(ctx, func(tx *redis.Tx) error {
		old, err := getRedisDrink(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		if old.Title != d.Title {
			exists, err := tx.HExists(ctx, redisTitlesKey, d.Title).Result()
			if err != nil {
				return err
			}
			if exists {
				return ErrTitleExists
			}
		}
		raw, err := json.Marshal(d)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if old.Title != d.Title {
				pipe.HDel(ctx, redisTitlesKey, old.Title)
				pipe.HSet(ctx, redisTitlesKey, d.Title, d.ID)
			}
			pipe.Set(ctx, redisItemKey(d.ID), raw, 0)
			return nil
		})
		return err
	}, redisTitlesKey, redisItemKey(d.ID))
	if err != nil {
		return Drink{}, err
	}
	return d, nil
}

func (s *redisStore) Delete(ctx context.Context, id int) error {
	return s.watch(ctx, func(tx *redis.Tx) error {
		d, err := getRedisDrink(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, redisItemKey(id))
			pipe.ZRem(ctx, redisIDsKey, id)
			pipe.HDel(ctx, redisTitlesKey, d.Title)
			return nil
		})
		return err
	}, redisTitlesKey, redisItemKey(id))
}

func (s *redisStore) Reset(ctx context.Context) error {
	ids, err := s.client.ZRange(ctx, redisIDsKey, 0, -1).Result()
	if err != nil {
		return err
	}
	keys := []string{redisSeqKey, redisIDsKey, redisTitlesKey}
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		keys = append(keys, redisItemKey(n))
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
