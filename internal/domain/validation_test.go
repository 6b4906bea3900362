package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSenderEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"Valid email", "news@example.com", true},
		{"Valid email with subdomain", "digest@mail.example.com", true},
		{"Valid email with plus", "news+weekly@example.com", true},
		{"Valid email with surrounding space", "  news@example.com  ", true},
		{"Invalid email - no @", "newsexample.com", false},
		{"Invalid email - no domain", "news@", false},
		{"Invalid email - no local part", "@example.com", false},
		{"Invalid email - empty", "", false},
		{"Invalid email - inner space", "ne ws@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSenderEmail(tt.email)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Equal(t, KindValidation, KindOf(err))
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "news@example.com", NormalizeEmail("  News@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestEmailDomain(t *testing.T) {
	assert.Equal(t, "example.com", EmailDomain("news@example.com"))
	assert.Equal(t, "", EmailDomain("no-at-sign"))
	assert.Equal(t, "", EmailDomain("trailing@"))
}

func TestValidateFolderName(t *testing.T) {
	tests := []struct {
		name       string
		folderName string
		valid      bool
	}{
		{"Valid name", "Tech News", true},
		{"Valid unicode name", "科技通讯", true},
		{"Valid at max length", strings.Repeat("a", MaxFolderNameLength), true},
		{"Invalid - empty", "", false},
		{"Invalid - whitespace only", "   ", false},
		{"Invalid - over max length", strings.Repeat("a", MaxFolderNameLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFolderName(tt.folderName)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFolderNamesEqual(t *testing.T) {
	assert.True(t, FolderNamesEqual("Tech", "tech"))
	assert.True(t, FolderNamesEqual("Tech ", " TECH"))
	assert.False(t, FolderNamesEqual("Tech", "Tech 2"))
}
