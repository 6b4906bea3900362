package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 内容哈希缓存键的默认生存时间。内容行不可变，TTL 只为限制键空间增长。
const defaultHashTTL = 24 * time.Hour

// HashCache 内容哈希 → 内容 ID 的读穿缓存。
//
// 缓存是纯加速层：任何 Redis 故障都降级为未命中，查重仍由存储层的
// 唯一索引兜底，不影响正确性。
type HashCache struct {
	client *Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewHashCache 创建内容哈希缓存。ttl 非正时使用默认 24 小时。
func NewHashCache(client *Client, ttl time.Duration, log *zap.Logger) *HashCache {
	if ttl <= 0 {
		ttl = defaultHashTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HashCache{client: client, ttl: ttl, log: log}
}

func hashKey(hash string) string {
	return fmt.Sprintf("content:hash:%s", hash)
}

// GetContentID 查找哈希对应的内容 ID。
func (c *HashCache) GetContentID(hash string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	contentID, err := c.client.rdb.Get(ctx, hashKey(hash)).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("hash cache lookup failed", zap.Error(err))
		}
		return "", false
	}
	return contentID, true
}

// SetContentID 记录哈希到内容 ID 的映射。
func (c *HashCache) SetContentID(hash, contentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.client.rdb.Set(ctx, hashKey(hash), contentID, c.ttl).Err(); err != nil {
		c.log.Warn("hash cache write failed", zap.Error(err))
	}
}
