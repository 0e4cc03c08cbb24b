package metrics

// Label 指标标签
//
// 标签值应保持低基数：provider 名、结果枚举可以，交易 ID、关联 ID 不可以。
type Label struct {
	Key   string
	Value string
}

// L 便捷构造函数
//
//	counter.Inc(ctx, metrics.L("provider", "adyen"), metrics.L("outcome", "success"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}
