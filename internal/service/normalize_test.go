package service

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBody(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		recipient string
		want      string
	}{
		{
			name: "Strips tracking parameters from links",
			body: `Read more at https://blog.example.com/post?utm_source=newsletter&utm_campaign=weekly&id=42`,
			want: `Read more at https://blog.example.com/post?id=42`,
		},
		{
			name: "Strips subscriber identifiers",
			body: `https://example.com/view?ck_subscriber_id=abc123`,
			want: `https://example.com/view`,
		},
		{
			name: "Strips URL fragments",
			body: `https://example.com/post#tracking-anchor done`,
			want: `https://example.com/post done`,
		},
		{
			name: "Removes zero width fingerprint characters",
			body: "Hel\u200blo wor\ufeffld",
			want: "Hello world",
		},
		{
			name:      "Removes recipient email",
			body:      "This copy was sent to reader@example.com just now",
			recipient: "reader@example.com",
			want:      "This copy was sent to just now",
		},
		{
			name:      "Removes URL encoded recipient email",
			body:      "Unsubscribe: https://example.com/u/" + url.QueryEscape("reader@example.com"),
			recipient: "reader@example.com",
			want:      "Unsubscribe: https://example.com/u/",
		},
		{
			name: "Collapses whitespace",
			body: "a  b\t\tc\r\nd",
			want: "a b c d",
		},
		{
			name: "Trims surrounding whitespace",
			body: "  padded  ",
			want: "padded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBody(tt.body, tt.recipient))
		})
	}
}

func TestNormalizeBody_ChannelConvergence(t *testing.T) {
	// 同一封通讯经不同渠道到达，规范化后应产生相同的字节序列
	viaInbox := "Hi reader@example.com,\r\nhttps://example.com/post?utm_source=email\r\n"
	viaUpload := "Hi \u200bother@example.com,\nhttps://example.com/post?utm_source=archive\n"

	a := NormalizeBody(viaInbox, "reader@example.com")
	b := NormalizeBody(viaUpload, "other@example.com")
	assert.Equal(t, a, b)
}

func TestContentHash(t *testing.T) {
	a := ContentHash("newsletter body")
	b := ContentHash("newsletter body")
	c := ContentHash("different body")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64, "BLAKE2b-256 十六进制摘要")
}
