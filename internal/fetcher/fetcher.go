package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"lettervault/internal/domain"
)

// Fetcher 远端邮箱拉取层。
//
// 对导入编排器而言这是一个纯数据源：分页列出某发件人的消息标识，
// 并按标识批量取回完整消息。限流与令牌失效以 RateLimited / TokenExpired
// 错误种类上抛，重试由调用方决定。
type Fetcher interface {
	// ListMessageIDs 分页列出某发件人地址下的消息标识。
	// pageToken 为空表示第一页；返回的 nextToken 为空表示没有更多页。
	ListMessageIDs(ctx context.Context, senderEmail, pageToken string) (ids []string, nextToken string, err error)

	// FetchMessages 批量取回完整消息。
	FetchMessages(ctx context.Context, ids []string) ([]*RemoteMessage, error)
}

// RemoteMessage 远端邮箱返回的完整消息。
type RemoteMessage struct {
	MessageID   string    `json:"messageId"`
	SenderEmail string    `json:"senderEmail"`
	SenderName  string    `json:"senderName"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// HTTPFetcher 基于 HTTP JSON 接口的远端邮箱客户端。
type HTTPFetcher struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewHTTPFetcher 创建远端邮箱客户端。
func NewHTTPFetcher(baseURL, accessToken string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type listResponse struct {
	IDs       []string `json:"ids"`
	NextToken string   `json:"nextToken"`
}

// ListMessageIDs 实现 Fetcher。
func (f *HTTPFetcher) ListMessageIDs(ctx context.Context, senderEmail, pageToken string) ([]string, string, error) {
	query := url.Values{}
	query.Set("sender", senderEmail)
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	var out listResponse
	if err := f.getJSON(ctx, "/v1/messages?"+query.Encode(), &out); err != nil {
		return nil, "", err
	}
	return out.IDs, out.NextToken, nil
}

type fetchRequest struct {
	IDs []string `json:"ids"`
}

type fetchResponse struct {
	Messages []*RemoteMessage `json:"messages"`
}

// FetchMessages 实现 Fetcher。
func (f *HTTPFetcher) FetchMessages(ctx context.Context, ids []string) ([]*RemoteMessage, error) {
	payload, err := json.Marshal(fetchRequest{IDs: ids})
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to marshal fetch request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/v1/messages/batch", bytes.NewReader(payload))
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to create fetch request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out fetchResponse
	if err := f.do(req, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// getJSON 执行 GET 请求并解析 JSON 响应。
func (f *HTTPFetcher) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return domain.WrapError(domain.KindInternal, "failed to create request", err)
	}
	return f.do(req, out)
}

// do 发送请求，把远端状态码翻译为领域错误种类。
func (f *HTTPFetcher) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+f.accessToken)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.KindInternal, "remote mailbox request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited("remote mailbox rate limit exceeded")
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.ErrTokenExpired("remote mailbox access token expired")
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound("remote mailbox resource not found")
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.NewError(domain.KindInternal,
			fmt.Sprintf("remote mailbox returned HTTP %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(domain.KindInternal, "failed to decode remote mailbox response", err)
	}
	return nil
}
