package idgen

import (
	"github.com/google/uuid"
)

// NewUUIDV7 生成 UUID v7 (时间排序)
//
// 熵源异常时退化为 v4，保证总能返回一个 ID。
func NewUUIDV7() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return NewUUIDV4()
	}
	return v7.String()
}

// NewUUIDV4 生成 UUID v4 (随机)
func NewUUIDV4() string {
	return uuid.New().String()
}

// UUID UUID 生成器，默认使用 v7
type UUID struct {
	version string
}

// UUIDOption UUID 初始化选项
type UUIDOption func(*UUID)

// NewUUID 创建 UUID 生成器
//
//	gen := idgen.NewUUID()
//	id := gen.Next()
//
//	gen := idgen.NewUUID(idgen.WithUUIDVersion("v4"))
func NewUUID(opts ...UUIDOption) *UUID {
	u := &UUID{version: "v7"}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// WithUUIDVersion 设置 UUID 版本，支持 "v4" | "v7"
func WithUUIDVersion(version string) UUIDOption {
	return func(u *UUID) {
		u.version = version
	}
}

// Next 生成 UUID 字符串
func (u *UUID) Next() string {
	if u.version == "v4" {
		return NewUUIDV4()
	}
	return NewUUIDV7()
}
