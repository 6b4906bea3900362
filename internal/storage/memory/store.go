package memory

import (
	"sync"

	"lettervault/internal/domain"
)

// Store 使用内存保存全部实体，主要用于开发与测试。
//
// 每个导出方法都是一次临界区，对应规范要求的"单次变更原子可见"。
type Store struct {
	mu sync.RWMutex

	senders        map[string]*domain.Sender            // senderID -> sender
	sendersByEmail map[string]map[string]*domain.Sender // email -> senderID -> sender

	settings       map[string]*domain.UserSenderSettings            // settingsID -> settings
	settingsByUser map[string]map[string]*domain.UserSenderSettings // userID -> settingsID -> settings

	folders       map[string]*domain.Folder            // folderID -> folder
	foldersByUser map[string]map[string]*domain.Folder // userID -> folderID -> folder

	mergeHistories map[string]*domain.FolderMergeHistory // mergeID -> history

	contents       map[string]*domain.NewsletterContent // contentID -> content
	contentsByHash map[string]string                    // contentHash -> contentID

	newsletters       map[string]*domain.UserNewsletter            // newsletterID -> newsletter
	newslettersByUser map[string]map[string]*domain.UserNewsletter // userID -> newsletterID -> newsletter

	users        map[string]*domain.User // userID -> user
	usersByEmail map[string]string       // email -> userID
	usersByToken map[string]string       // intakeToken -> userID
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		senders:           make(map[string]*domain.Sender),
		sendersByEmail:    make(map[string]map[string]*domain.Sender),
		settings:          make(map[string]*domain.UserSenderSettings),
		settingsByUser:    make(map[string]map[string]*domain.UserSenderSettings),
		folders:           make(map[string]*domain.Folder),
		foldersByUser:     make(map[string]map[string]*domain.Folder),
		mergeHistories:    make(map[string]*domain.FolderMergeHistory),
		contents:          make(map[string]*domain.NewsletterContent),
		contentsByHash:    make(map[string]string),
		newsletters:       make(map[string]*domain.UserNewsletter),
		newslettersByUser: make(map[string]map[string]*domain.UserNewsletter),
		users:             make(map[string]*domain.User),
		usersByEmail:      make(map[string]string),
		usersByToken:      make(map[string]string),
	}
}

// Close 关闭存储（内存实现为空操作）。
func (s *Store) Close() error {
	return nil
}

// Health 检查存储健康状态（内存实现恒为健康）。
func (s *Store) Health() error {
	return nil
}

// CreateUser 创建用户。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[user.Email]; exists {
		return domain.ErrDuplicate("user email already registered")
	}

	s.users[user.ID] = user
	s.usersByEmail[user.Email] = user.ID
	if user.IntakeToken != "" {
		s.usersByToken[user.IntakeToken] = user.ID
	}
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound("user not found")
	}
	return user, nil
}

// GetUserByEmail 根据邮箱获取用户。
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, domain.ErrNotFound("user not found")
	}
	return s.users[id], nil
}

// GetUserByIntakeToken 根据收件地址令牌获取用户。
func (s *Store) GetUserByIntakeToken(token string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByToken[token]
	if !ok {
		return nil, domain.ErrNotFound("user not found")
	}
	return s.users[id], nil
}
