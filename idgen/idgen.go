// Package idgen 提供 paygate 使用的标识生成器。
//
// 编排 ID 使用 UUID v7，按时间有序，便于在审计表中按插入顺序检索；
// 调用方未提供关联 ID 时使用 UUID v4 生成。
package idgen

// Generator 通用 ID 生成器接口
type Generator interface {
	// Next 返回字符串形式的 ID
	Next() string
}

// GeneratorFunc 将普通函数适配为 Generator，测试中用于生成确定性 ID
type GeneratorFunc func() string

// Next 实现 Generator
func (f GeneratorFunc) Next() string { return f() }
