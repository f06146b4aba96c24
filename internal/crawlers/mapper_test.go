package crawlers

import (
	"errors"
	"testing"
)

func TestMapToPath(t *testing.T) {
	const start = "http://example.com/"

	tests := []struct {
		name    string
		pageURL string
		want    string
	}{
		{"多级片段路径", "http://example.com/#!/some/cool/page", "_escaped_fragment_/some/cool/page/index.html"},
		{"前缀路径加空片段", "http://example.com/x#!/", "_escaped_fragment_/x/index.html"},
		{"入口URL本身", "http://example.com/", "_escaped_fragment_/index.html"},
		{"前缀和片段都存在", "http://example.com/app#!/list/2", "_escaped_fragment_/app/list/2/index.html"},
		{"与符号被编码", "http://example.com/#!/search?a=1&b=2", "_escaped_fragment_/search?a=1%26b=2/index.html"},
		{"只按第一个标记切分", "http://example.com/#!/a#!/b", "_escaped_fragment_/a#!/b/index.html"},
		{"单点路径段被折叠", "http://example.com/#!/a/./b", "_escaped_fragment_/a/b/index.html"},
		{"名称中含两个点", "http://example.com/#!/v1..2", "_escaped_fragment_/v1..2/index.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MapToPath(tt.pageURL, start)
			if err != nil {
				t.Fatalf("MapToPath() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("MapToPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapToPath_Deterministic(t *testing.T) {
	const u = "http://example.com/#!/a/b"
	first, _ := MapToPath(u, "http://example.com/")
	for i := 0; i < 10; i++ {
		got, _ := MapToPath(u, "http://example.com/")
		if got != first {
			t.Fatalf("第%d次结果不同: %q != %q", i, got, first)
		}
	}
}

func TestMapToPath_OutOfScope(t *testing.T) {
	_, err := MapToPath("http://other.com/#!/a", "http://example.com/")
	if !errors.Is(err, ErrOutOfScope) {
		t.Errorf("期望 ErrOutOfScope, 得到 %v", err)
	}
}

func TestMapToPath_DotDotSegments(t *testing.T) {
	const start = "http://example.com/"

	tests := []struct {
		name    string
		pageURL string
	}{
		{"片段为上级目录", "http://example.com/#!/.."},
		{"片段以上级目录开头", "http://example.com/#!/../index"},
		{"多次返回上级", "http://example.com/#!/a/../../b"},
		{"折叠后覆盖入口快照", "http://example.com/#!/a/.."},
		{"前缀中含上级目录", "http://example.com/../x#!/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MapToPath(tt.pageURL, start)
			if !errors.Is(err, ErrOutOfScope) {
				t.Errorf("MapToPath(%q) = %q, %v, 期望 ErrOutOfScope", tt.pageURL, got, err)
			}
		})
	}
}
