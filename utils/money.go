package utils

import (
	"math"
)

// Round2 金额四舍五入保留2位小数
// 佣金计算和展示的所有金额都必须经过该函数，保证账本合计与逐笔之和严格一致
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// NetOfVAT 从含税金额中剥离增值税，返回税后净额
// vatRate为百分数，例如20表示20%
func NetOfVAT(gross, vatRate float64) float64 {
	return gross / (1 + vatRate/100)
}
