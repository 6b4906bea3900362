package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lettervault/internal/domain"
)

// Store 基于本地文件系统的 Blob 存储实现，键即相对路径。
type Store struct {
	basePath string
}

// NewStore 创建文件系统 Blob 存储，确保根目录存在。
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("blob base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// Put 写入字节并返回键。先写临时文件再重命名，避免读到半写内容。
func (s *Store) Put(key string, data []byte) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob subdirectory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize blob: %w", err)
	}
	return key, nil
}

// Get 按键读取字节。
func (s *Store) Get(key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound("blob not found")
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// resolve 将键映射为根目录下的绝对路径，拒绝越界访问。
func (s *Store) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob key: %s", key)
	}
	return filepath.Join(s.basePath, clean), nil
}
