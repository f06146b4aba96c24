package utils

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/RecoveryAshes/fragcrawl/internal/models"
)

func TestHeaderValidator_ValidateHeader(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		headerValue string
		expectError bool
	}{
		{"合法头部", "User-Agent", "Mozilla/5.0", false},
		{"合法名称-下划线是token字符", "X_Custom", "v", false},
		{"合法值-空字符串", "X-Empty", "", false},
		{"合法值-制表符", "X-Tab", "a\tb", false},
		{"禁止头部-Host", "Host", "example.com", true},
		{"禁止头部-不区分大小写", "connection", "close", true},
		{"禁止头部-Upgrade", "Upgrade", "websocket", true},
		{"非法名称-空格", "User Agent", "value", true},
		{"非法名称-冒号", "X:Bad", "value", true},
		{"非法名称-空字符串", "", "value", true},
		{"非法值-换行", "X-Bad", "a\r\nInjected: 1", true},
		{"非法值-控制字符", "X-Bad", "value\x00bad", true},
		{"非法值-超长", "X-Long", strings.Repeat("a", MaxHeaderValueLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateHeader(tt.headerName, tt.headerValue)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
			var ve *models.ValidationError
			if err != nil && !errors.As(err, &ve) {
				t.Errorf("错误应为 ValidationError, 得到 %T", err)
			}
		})
	}
}

func TestHeaderValidator_Validate(t *testing.T) {
	validator := NewHeaderValidator()

	t.Run("合法的http.Header", func(t *testing.T) {
		headers := http.Header{
			"User-Agent": []string{"Mozilla/5.0"},
			"Accept":     []string{"text/html"},
		}
		if err := validator.Validate(headers); err != nil {
			t.Errorf("期望无错误, 实际错误=%v", err)
		}
	})

	t.Run("返回按名称排序的第一个错误", func(t *testing.T) {
		headers := http.Header{
			"Host":       []string{"example.com"},
			"Connection": []string{"close"},
		}
		err := validator.Validate(headers)
		var ve *models.ValidationError
		if !errors.As(err, &ve) || ve.HeaderName != "Connection" {
			t.Errorf("期望 Connection 的错误, 得到 %v", err)
		}
	})
}

func TestHeaderRedactor(t *testing.T) {
	redactor := NewHeaderRedactor()

	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"普通头部不脱敏", "User-Agent", "Mozilla/5.0", "Mozilla/5.0"},
		{"Bearer令牌", "Authorization", "Bearer abcdefghijklmnop", "Bearer ***"},
		{"长密钥保留首尾", "X-Api-Key", "1234567890abcdef", "1234***cdef"},
		{"短密钥完全隐藏", "X-Token", "short", "***"},
		{"Cookie脱敏", "Cookie", "session=abcdefghijk", "sess***hijk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactor.RedactHeaderValue(tt.header, tt.value); got != tt.want {
				t.Errorf("RedactHeaderValue() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("字符串输出按名称排序", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Token", "short")
		h.Set("Accept", "text/html")
		if got := redactor.RedactToString(h); got != "Accept: text/html, X-Token: ***" {
			t.Errorf("RedactToString() = %q", got)
		}
	})
}
