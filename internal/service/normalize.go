package service

import (
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// trackingParams 各大邮件平台常见的跟踪查询参数，规范化时整体剥离。
var trackingParams = map[string]bool{
	"utm_source":       true,
	"utm_medium":       true,
	"utm_campaign":     true,
	"utm_term":         true,
	"utm_content":      true,
	"utm_id":           true,
	"fbclid":           true,
	"gclid":            true,
	"mc_cid":           true,
	"mc_eid":           true,
	"ck_subscriber_id": true,
	"vgo_ee":           true,
	"ref":              true,
	"refcode":          true,
	"subscriber_id":    true,
	"recipient_id":     true,
	"email_id":         true,
	"token":            true,
}

var (
	urlPattern = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)
	// 零宽字符常被用于逐收件人指纹
	zeroWidthPattern  = regexp.MustCompile("[\u200B\u200C\u200D\u2060\uFEFF]")
	whitespacePattern = regexp.MustCompile(`[ \t\r\n]+`)
)

// NormalizeBody 将通讯正文规范化为与收件人无关的形式。
//
// 剥离链接中的跟踪参数、收件人邮箱等逐收件人个性化内容与零宽指纹字符，
// 并折叠空白，使同一封通讯经不同渠道到达时产生相同的字节序列。
func NormalizeBody(body, recipientEmail string) string {
	normalized := zeroWidthPattern.ReplaceAllString(body, "")

	normalized = urlPattern.ReplaceAllStringFunc(normalized, stripTrackingParams)

	if recipientEmail != "" {
		normalized = strings.ReplaceAll(normalized, recipientEmail, "")
		// 链接中 URL 编码的收件人地址
		normalized = strings.ReplaceAll(normalized, url.QueryEscape(recipientEmail), "")
	}

	normalized = whitespacePattern.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// stripTrackingParams 去掉单个链接中的跟踪参数与片段。
func stripTrackingParams(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	query := parsed.Query()
	changed := false
	for key := range query {
		if trackingParams[strings.ToLower(key)] {
			query.Del(key)
			changed = true
		}
	}
	if parsed.Fragment != "" {
		parsed.Fragment = ""
		changed = true
	}
	if !changed {
		return raw
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// ContentHash 计算规范化正文的 BLAKE2b-256 哈希（十六进制）。
func ContentHash(normalizedBody string) string {
	sum := blake2b.Sum256([]byte(normalizedBody))
	return hex.EncodeToString(sum[:])
}
