package domain

import (
	"strings"
)

// MaxFolderNameLength 文件夹名称的最大长度。
const MaxFolderNameLength = 100

// NormalizeEmail 规范化邮箱地址：去空白并转小写。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain 提取邮箱地址 @ 之后的域名部分，格式非法时返回空串。
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

// ValidateSenderEmail 校验发件人邮箱的基本结构。
func ValidateSenderEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrValidation("sender email must not be empty")
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrValidation("sender email is malformed")
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return ErrValidation("sender email must not contain whitespace")
	}
	return nil
}

// ValidateFolderName 校验文件夹名称：非空且不超过最大长度。
func ValidateFolderName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrValidation("folder name must not be empty")
	}
	if len([]rune(trimmed)) > MaxFolderNameLength {
		return ErrValidation("folder name exceeds 100 characters")
	}
	return nil
}

// FolderNamesEqual 按不区分大小写的规则比较两个文件夹名称。
func FolderNamesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
