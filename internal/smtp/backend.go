package smtp

import (
	"fmt"
	"io"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"lettervault/internal/config"
	"lettervault/internal/domain"
	"lettervault/internal/monitoring"
	"lettervault/internal/service"
	"lettervault/internal/storage"
)

// 拒收原因标签，用于监控指标。
const (
	rejectBadAddress   = "bad_address"
	rejectWrongDomain  = "wrong_domain"
	rejectUnknownToken = "unknown_token"
	rejectParseFailed  = "parse_failed"
	rejectOverloaded   = "overloaded"
)

// Backend 实现 go-smtp 的 Backend 接口，承接专属收件地址直投渠道。
//
// 这是一个只接收邮件的 SMTP 服务器：收件地址形如 {token}@{收件域名}，
// token 是用户的专属收件令牌。域名不匹配或令牌无法解析到用户的邮件
// 一律 550 拒收，服务器不会成为开放中继。
type Backend struct {
	cfg      config.IntakeConfig
	store    storage.Store
	registry *service.SenderRegistry
	contents *service.ContentStore
	limiter  *ConnectionLimiter
	metrics  *monitoring.Metrics // 可为 nil
	log      *zap.Logger
}

// NewBackend 创建 SMTP Backend。
func NewBackend(
	cfg config.IntakeConfig,
	store storage.Store,
	registry *service.SenderRegistry,
	contents *service.ContentStore,
	log *zap.Logger,
) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{
		cfg:      cfg,
		store:    store,
		registry: registry,
		contents: contents,
		limiter:  NewConnectionLimiter(cfg.MaxConns, cfg.MaxRate),
		log:      log,
	}
}

// SetMetrics 设置监控指标。
func (b *Backend) SetMetrics(m *monitoring.Metrics) {
	b.metrics = m
}

// NewSession 创建新的 SMTP 会话，连接数或新建速率超限时拒绝。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if !b.limiter.Acquire() {
		b.recordReject(rejectOverloaded)
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "too many connections, try again later",
		}
	}
	return &session{backend: b}, nil
}

func (b *Backend) recordReject(reason string) {
	if b.metrics != nil {
		b.metrics.RecordIntakeRejected(reason)
	}
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []recipient
}

// recipient 一个已解析的收件用户。
type recipient struct {
	address string
	user    *domain.User
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 收件地址的本地部分必须是某个用户的收件令牌，域名必须等于配置的收件
// 域名。其余地址一律 550 拒收，防止被当作邮件中继。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	parts := strings.Split(addr, "@")
	if len(parts) != 2 || parts[0] == "" {
		s.backend.recordReject(rejectBadAddress)
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}
	token, recipientDomain := parts[0], parts[1]

	if !strings.EqualFold(recipientDomain, s.backend.cfg.Domain) {
		s.backend.recordReject(rejectWrongDomain)
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied - domain not managed by this server",
		}
	}

	user, err := s.backend.store.GetUserByIntakeToken(token)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			s.backend.recordReject(rejectUnknownToken)
			return &gosmtp.SMTPError{
				Code:         550,
				EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
				Message:      "recipient address not found",
			}
		}
		return err
	}

	s.recipients = append(s.recipients, recipient{address: addr, user: user})
	return nil
}

// Data 处理邮件内容：解析正文后为每个收件用户入库一封通讯。
//
// 查重结果视为成功投递——重复不是发件方的错误，返回 250 避免触发
// 对方的重发队列。
func (s *session) Data(r io.Reader) error {
	start := time.Now()

	maxBytes := s.backend.cfg.MaxMsgBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	rawBytes, err := io.ReadAll(io.LimitReader(r, maxBytes))
	if err != nil {
		return err
	}

	parsed, err := ParseEmail(rawBytes)
	if err != nil {
		s.backend.recordReject(rejectParseFailed)
		return fmt.Errorf("parse email: %w", err)
	}

	// 信头 From 缺失或非法时回落到信封发件地址
	senderEmail := parsed.From
	if senderEmail == "" {
		senderEmail = s.fromAddress
	}

	sender, err := s.backend.registry.ResolveOrCreateSender(senderEmail, parsed.FromName)
	if err != nil {
		return err
	}

	for _, rcpt := range s.recipients {
		result, err := s.backend.contents.Store(service.StoreInput{
			UserID:         rcpt.user.ID,
			SenderID:       sender.ID,
			Subject:        parsed.Subject,
			Body:           parsed.Body(),
			MessageID:      parsed.MessageID,
			Source:         domain.ChannelInbox,
			ReceivedAt:     parsed.Date,
			RecipientEmail: rcpt.address,
		})
		if err != nil {
			return err
		}

		if result.Outcome == service.OutcomeDuplicate {
			s.backend.log.Debug("intake message deduplicated",
				zap.String("user_id", rcpt.user.ID),
				zap.String("sender", sender.Email),
				zap.String("reason", string(result.Reason)),
			)
			continue
		}

		if s.backend.metrics != nil {
			s.backend.metrics.IntakeMessagesTotal.Inc()
		}
		s.backend.log.Info("intake message stored",
			zap.String("user_id", rcpt.user.ID),
			zap.String("sender", sender.Email),
			zap.String("newsletter_id", result.Newsletter.ID),
		)
	}

	if s.backend.metrics != nil {
		s.backend.metrics.IntakeProcessingTime.Observe(time.Since(start).Seconds())
	}
	return nil
}

// AuthPlain 处理 PLAIN 认证（收件渠道允许匿名）。
func (s *session) AuthPlain(username, password string) error {
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束，归还连接许可。
func (s *session) Logout() error {
	s.backend.limiter.Release()
	return nil
}
