package blob

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service Blob 存取边界。对象存储的具体实现位于系统边界之外，
// 核心只依赖 put/get 契约。
type Service interface {
	// Put 写入字节并返回最终键。
	Put(key string, data []byte) (string, error)
	// Get 按键读取字节。
	Get(key string) ([]byte, error)
}

// PrivateKey 生成私有内容的 Blob 键：private/{userId}/{timestamp}-{uniqueId}.{ext}。
func PrivateKey(userID string, now time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "html"
	}
	return fmt.Sprintf("private/%s/%d-%s.%s", userID, now.UnixMilli(), uuid.NewString(), ext)
}

// SharedKey 生成共享内容的 Blob 键。键对调用方不透明，存于内容行上。
func SharedKey(contentHash string) string {
	prefix := contentHash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return fmt.Sprintf("shared/%s/%s.html", prefix, contentHash)
}
