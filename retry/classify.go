package retry

import (
	"context"
	"errors"
	"strings"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
)

// temporaryMarkers 错误消息中出现任一片段（大小写不敏感）即视为临时错误
var temporaryMarkers = []string{
	"timeout",
	"network",
	"rate_limit",
	"temporary",
	"service_unavailable",
	"internal_server_error",
}

// IsTemporary 判断错误是否可重试
//
// 顺序：provider.Temporary / provider.Permanent 显式标记，
// context.DeadlineExceeded，最后按消息片段匹配。
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	if temporary, ok := provider.Classification(err); ok {
		return temporary
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range temporaryMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
