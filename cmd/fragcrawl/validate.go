package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RecoveryAshes/fragcrawl/internal/crawlers"
	"github.com/RecoveryAshes/fragcrawl/internal/models"
	"github.com/RecoveryAshes/fragcrawl/internal/utils"
)

// ValidateFlags 入口URL和URL文件二选一
func ValidateFlags(startURL, urlFile string) error {
	if startURL != "" && urlFile != "" {
		return fmt.Errorf("不能同时指定入口URL和 --url-file")
	}
	if startURL == "" {
		return ValidateURLFile(urlFile)
	}
	return ValidateStartURL(startURL)
}

// ValidateStartURL 入口URL必须是 http(s) 地址
// 入口URL本身带有 #!/ 时, 只会爬取该路由下的页面
func ValidateStartURL(startURL string) error {
	if err := models.ValidateURL(startURL); err != nil {
		return fmt.Errorf("无效的入口URL: %w", err)
	}
	if strings.Contains(startURL, crawlers.FragmentMarker) {
		utils.Warnf("入口URL包含 %s, 仅爬取以它为前缀的页面", crawlers.FragmentMarker)
	}
	return nil
}

// ValidateURLFile 验证URL文件路径
func ValidateURLFile(path string) error {
	if path == "" {
		return fmt.Errorf("URL文件路径不能为空")
	}
	// 文件存在性检查将在运行时进行
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
