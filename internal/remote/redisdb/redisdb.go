// Package redisdb stores the remote tree in Redis: one JSON string per
// document, optimistic WATCH/MULTI transactions for multi-path updates and
// change fan-out over pub/sub.
package redisdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/remote"
)

const (
	maxTxRetries       = 16
	defaultHealthEvery = 5 * time.Second
	defaultMaxOutage   = 30 * time.Second
)

// ErrUnreachable ends a watch once the server has been down for longer
// than the outage limit.
var ErrUnreachable = errors.New("redisdb: server unreachable")

// Store is a remote.Store backed by Redis.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	logger *zap.Logger

	healthEvery time.Duration
	maxOutage   time.Duration
}

// New wraps rdb. Every key and channel is namespaced with prefix.
func New(rdb redis.UniversalClient, prefix string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		rdb:         rdb,
		prefix:      prefix,
		logger:      logger,
		healthEvery: defaultHealthEvery,
		maxOutage:   defaultMaxOutage,
	}
}

// Dial connects to the server at url (redis://...) and verifies it.
func Dial(ctx context.Context, url, prefix string, logger *zap.Logger) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(rdb, prefix, logger), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) docKey(coll, id string) string { return s.prefix + "doc:" + remote.DocKey(coll, id) }
func (s *Store) indexKey(coll string) string   { return s.prefix + "idx:" + coll }
func (s *Store) channel(coll, id string) string {
	return s.prefix + "chg:" + remote.DocKey(coll, id)
}

// Get implements remote.Store.
func (s *Store) Get(ctx context.Context, path string) ([]byte, bool, error) {
	coll, id, sub, err := remote.Split(path)
	if err != nil {
		return nil, false, err
	}
	if id == "" {
		return s.collection(ctx, coll)
	}
	doc, err := s.rdb.Get(ctx, s.docKey(coll, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", path, err)
	}
	data, ok := remote.ValueAt(doc, sub)
	return data, ok, nil
}

func (s *Store) collection(ctx context.Context, coll string) ([]byte, bool, error) {
	ids, err := s.rdb.SMembers(ctx, s.indexKey(coll)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("list %s: %w", coll, err)
	}
	if len(ids) == 0 {
		return nil, false, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(coll, id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", coll, err)
	}
	docs := make(map[string][]byte, len(ids))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			docs[ids[i]] = []byte(str)
		}
	}
	if len(docs) == 0 {
		return nil, false, nil
	}
	out, err := remote.JoinCollection(docs)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Set implements remote.Store.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

// Update implements remote.Store. The touched documents are watched and
// rewritten in one MULTI; a concurrent writer forces a retry.
func (s *Store) Update(ctx context.Context, values map[string]any) error {
	writes, err := remote.Plan(values)
	if err != nil {
		return err
	}
	keys := make([]string, len(writes))
	for i, w := range writes {
		keys[i] = s.docKey(w.Collection, w.ID)
	}

	txf := func(tx *redis.Tx) error {
		next := make([][]byte, len(writes))
		for i, w := range writes {
			cur, err := tx.Get(ctx, keys[i]).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if next[i], err = w.Apply(cur); err != nil {
				return err
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, w := range writes {
				if next[i] == nil {
					pipe.Del(ctx, keys[i])
					pipe.SRem(ctx, s.indexKey(w.Collection), w.ID)
					pipe.Publish(ctx, s.channel(w.Collection, w.ID), "")
					continue
				}
				pipe.Set(ctx, keys[i], next[i], 0)
				pipe.SAdd(ctx, s.indexKey(w.Collection), w.ID)
				pipe.Publish(ctx, s.channel(w.Collection, w.ID), next[i])
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.rdb.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		s.logger.Debug("redis transaction conflict, retrying", zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

// Watch implements remote.Store. A notification only says the path may
// have changed: the path is reloaded each time, and again after the pub/sub
// connection is re-established, so updates missed while disconnected are
// picked up and no delivered snapshot is older than the one before it.
func (s *Store) Watch(ctx context.Context, path string) (*remote.Subscription, error) {
	coll, id, _, err := remote.Split(path)
	if err != nil {
		return nil, err
	}
	path = strings.Trim(path, "/")

	var ps *redis.PubSub
	if id == "" {
		ps = s.rdb.PSubscribe(ctx, s.channel(coll, "*"))
	} else {
		ps = s.rdb.Subscribe(ctx, s.channel(coll, id))
	}
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	subn := remote.NewSubscription(func() { _ = ps.Close() })
	go s.follow(ps, subn, path)
	remote.CloseOnDone(ctx, subn)
	return subn, nil
}

// follow feeds subn until it is closed or the server stays unreachable for
// longer than s.maxOutage.
func (s *Store) follow(ps *redis.PubSub, subn *remote.Subscription, path string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-subn.Done()
		cancel()
	}()

	log := s.logger.With(zap.String("path", path))
	msgs := ps.ChannelWithSubscriptions()
	health := time.NewTicker(s.healthEvery)
	defer health.Stop()

	stale := !s.reload(ctx, subn, path)
	var downSince time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if _, resub := msg.(*redis.Subscription); resub {
				log.Info("redis watch resubscribed, reloading")
			}
			stale = !s.reload(ctx, subn, path)
		case <-health.C:
			pctx, pcancel := context.WithTimeout(ctx, s.healthEvery)
			err := s.rdb.Ping(pctx).Err()
			pcancel()
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				if !downSince.IsZero() {
					log.Info("redis reachable again", zap.Duration("outage", time.Since(downSince)))
					downSince = time.Time{}
					stale = true
				}
				if stale {
					stale = !s.reload(ctx, subn, path)
				}
				continue
			}
			if downSince.IsZero() {
				downSince = time.Now()
				log.Warn("redis unreachable", zap.Error(err))
				continue
			}
			if outage := time.Since(downSince); outage >= s.maxOutage {
				log.Error("giving up on redis watch", zap.Duration("outage", outage), zap.Error(err))
				subn.Offer(remote.Change{Path: path, Err: fmt.Errorf("%w for %s: %v", ErrUnreachable, outage.Round(time.Millisecond), err)})
				subn.Close()
				return
			}
		}
	}
}

// reload offers the current value of path. It reports false when the read
// failed and a later reload is needed.
func (s *Store) reload(ctx context.Context, subn *remote.Subscription, path string) bool {
	data, ok, err := s.Get(ctx, path)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("redis reload failed", zap.String("path", path), zap.Error(err))
		}
		return false
	}
	subn.Offer(remote.Change{Path: path, Data: data, Exists: ok})
	return true
}
