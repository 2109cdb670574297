// Package sticky 渠道粘性会话：同一会话在 TTL 内固定落到同一渠道
package sticky

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	sessionPrefix      = "sticky_session:"
	channelIndexPrefix = "sticky_sessions_by_channel:"
	dailyBindPrefix    = "sticky_daily_bind:"

	DefaultTTL = 60 * time.Minute

	// 超过这个长度的首条消息只取前缀做哈希
	hashContentLimit = 500
)

var (
	ErrSessionLimit   = errors.New("渠道粘性会话数已满")
	ErrDailyBindLimit = errors.New("渠道今日绑定次数已用完")
)

var sessionIDPattern = regexp.MustCompile(`session_([a-zA-Z0-9_-]+)`)

// Session 一条会话到渠道的绑定
type Session struct {
	SessionHash string `json:"session_hash"`
	ChannelID   int64  `json:"channel_id"`
	Group       string `json:"group"`
	Model       string `json:"model"`
	UserID      int64  `json:"user_id"`
	TokenName   string `json:"token_name"`
	CreatedAt   int64  `json:"created_at"`
	TTL         int64  `json:"ttl"` // 剩余秒数，只在列表中返回
}

// Limits 渠道的粘性会话限制，0 表示不限
type Limits struct {
	MaxCount       int
	DailyBindLimit int
	TTL            time.Duration
}

// SessionHash 从调用方给出的会话标识得到会话哈希
// 含 session_xxx 时直接取 xxx，否则取内容 sha256 的前 16 位
func SessionHash(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m := sessionIDPattern.FindStringSubmatch(raw); len(m) > 1 {
		return m[1]
	}
	if len(raw) > hashContentLimit {
		raw = raw[:hashContentLimit]
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

func sessionKey(group, model, hash string) string {
	return sessionPrefix + member(group, model, hash)
}

func indexKey(channelID int64) string {
	return fmt.Sprintf("%s%d", channelIndexPrefix, channelID)
}

func member(group, model, hash string) string {
	return group + ":" + model + ":" + hash
}

// parseMember 分组和哈希不含冒号，模型名可能含冒号
func parseMember(m string) (group, model, hash string, ok bool) {
	i := strings.Index(m, ":")
	j := strings.LastIndex(m, ":")
	if i < 0 || j <= i {
		return "", "", "", false
	}
	return m[:i], m[i+1 : j], m[j+1:], true
}

// Store 基于 Redis 的粘性会话存储
// 会话数据存在 sticky_session:* 下，每个渠道另有一个按创建时间排序的 zset 索引
type Store struct {
	rdb *redis.Client
	loc *time.Location
	now func() time.Time
}

func NewStore(rdb *redis.Client, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{rdb: rdb, loc: loc, now: time.Now}
}

func (s *Store) dailyKey(channelID int64) string {
	return fmt.Sprintf("%s%d:%s", dailyBindPrefix, channelID, s.now().In(s.loc).Format("20060102"))
}

// Get 读取会话，不存在返回 nil, nil
func (s *Store) Get(ctx context.Context, group, model, hash string) (*Session, error) {
	val, err := s.rdb.Get(ctx, sessionKey(group, model, hash)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sticky session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, nil
	}
	sess.SessionHash = hash
	return &sess, nil
}

// Bind 绑定会话到渠道
// 已绑定同一渠道时只续期；新绑定或换渠道时检查会话数和当日绑定次数
func (s *Store) Bind(ctx context.Context, sess *Session, lim Limits) error {
	ttl := lim.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := sessionKey(sess.Group, sess.Model, sess.SessionHash)

	existing, err := s.Get(ctx, sess.Group, sess.Model, sess.SessionHash)
	if err != nil {
		return err
	}
	if existing != nil && existing.ChannelID == sess.ChannelID {
		return s.rdb.Expire(ctx, key, ttl).Err()
	}

	if lim.MaxCount > 0 {
		n, err := s.Count(ctx, sess.ChannelID)
		if err != nil {
			return err
		}
		if n >= lim.MaxCount {
			return ErrSessionLimit
		}
	}
	if lim.DailyBindLimit > 0 {
		n, err := s.DailyBindCount(ctx, sess.ChannelID)
		if err != nil {
			return err
		}
		if n >= int64(lim.DailyBindLimit) {
			return ErrDailyBindLimit
		}
	}

	now := s.now()
	stored := *sess
	stored.CreatedAt = now.Unix()
	stored.TTL = 0
	data, err := json.Marshal(&stored)
	if err != nil {
		return err
	}

	m := member(sess.Group, sess.Model, sess.SessionHash)
	dk := s.dailyKey(sess.ChannelID)

	pipe := s.rdb.TxPipeline()
	if existing != nil {
		pipe.ZRem(ctx, indexKey(existing.ChannelID), m)
	}
	pipe.Set(ctx, key, data, ttl)
	pipe.ZAdd(ctx, indexKey(sess.ChannelID), &redis.Z{Score: float64(now.Unix()), Member: m})
	pipe.Incr(ctx, dk)
	pipe.Expire(ctx, dk, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to bind sticky session: %w", err)
	}
	sess.CreatedAt = stored.CreatedAt
	return nil
}

// Renew 剩余时间不足一半时续期
func (s *Store) Renew(ctx context.Context, group, model, hash string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := sessionKey(group, model, hash)
	left, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return err
	}
	if left > 0 && left < ttl/2 {
		return s.rdb.Expire(ctx, key, ttl).Err()
	}
	return nil
}

// List 渠道下所有未过期的会话，顺带清理索引里已过期的成员
func (s *Store) List(ctx context.Context, channelID int64) ([]*Session, error) {
	idx := indexKey(channelID)
	members, err := s.rdb.ZRangeWithScores(ctx, idx, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sticky sessions: %w", err)
	}

	sessions := make([]*Session, 0, len(members))
	var dead []interface{}
	for _, z := range members {
		m, _ := z.Member.(string)
		group, model, hash, ok := parseMember(m)
		if !ok {
			dead = append(dead, m)
			continue
		}

		sess, err := s.Get(ctx, group, model, hash)
		if err != nil {
			return nil, err
		}
		if sess == nil || sess.ChannelID != channelID {
			dead = append(dead, m)
			continue
		}

		left, err := s.rdb.TTL(ctx, sessionKey(group, model, hash)).Result()
		if err != nil || left <= 0 {
			dead = append(dead, m)
			continue
		}
		sess.TTL = int64(left.Seconds())
		if sess.CreatedAt == 0 {
			sess.CreatedAt = int64(z.Score)
		}
		sessions = append(sessions, sess)
	}

	if len(dead) > 0 {
		s.rdb.ZRem(ctx, idx, dead...)
	}
	return sessions, nil
}

// Count 渠道当前的会话数
func (s *Store) Count(ctx context.Context, channelID int64) (int, error) {
	sessions, err := s.List(ctx, channelID)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// DailyBindCount 渠道当天的新绑定次数
func (s *Store) DailyBindCount(ctx context.Context, channelID int64) (int64, error) {
	n, err := s.rdb.Get(ctx, s.dailyKey(channelID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// Release 释放渠道下的一条会话，返回是否存在
func (s *Store) Release(ctx context.Context, channelID int64, hash string) (bool, error) {
	idx := indexKey(channelID)
	members, err := s.rdb.ZRange(ctx, idx, 0, -1).Result()
	if err != nil {
		return false, err
	}

	for _, m := range members {
		group, model, h, ok := parseMember(m)
		if !ok || h != hash {
			continue
		}
		pipe := s.rdb.TxPipeline()
		pipe.Del(ctx, sessionKey(group, model, h))
		pipe.ZRem(ctx, idx, m)
		if _, err := pipe.Exec(ctx); err != nil {
			return false, fmt.Errorf("failed to release sticky session: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// ReleaseAll 释放渠道下的全部会话，返回索引中的成员数
func (s *Store) ReleaseAll(ctx context.Context, channelID int64) (int, error) {
	idx := indexKey(channelID)
	members, err := s.rdb.ZRange(ctx, idx, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	pipe := s.rdb.TxPipeline()
	for _, m := range members {
		if group, model, hash, ok := parseMember(m); ok {
			pipe.Del(ctx, sessionKey(group, model, hash))
		}
	}
	pipe.Del(ctx, idx)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to release sticky sessions: %w", err)
	}
	return len(members), nil
}
