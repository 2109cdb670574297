// Package quota 额度单位换算与用量聚合
package quota

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// UnitsPerDollar 500000 单位 = $1
const UnitsPerDollar = 500000

// Mode 额度展示模式
type Mode string

const (
	ModeTokens  Mode = "tokens"
	ModeDollars Mode = "dollars"
)

var ErrInvalidAmount = errors.New("无效的额度值")

var (
	unitsPerDollar = decimal.NewFromInt(UnitsPerDollar)
	one            = decimal.NewFromInt(1)
	thousand       = decimal.NewFromInt(1000)
	million        = decimal.NewFromInt(1000000)
)

// ParseMode 解析展示模式，未知值按美元处理
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeTokens)) {
		return ModeTokens
	}
	return ModeDollars
}

// ToDisplay 将内部额度单位转换为展示字符串
// 美元模式：>= $1 保留两位小数，< $1 保留四位小数
// 令牌模式：>= 1M 用 M 后缀，>= 1K 用 K 后缀，其余原样输出
func ToDisplay(raw int64, mode Mode) string {
	v := decimal.NewFromInt(raw)
	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Abs()
	}

	if mode == ModeTokens {
		switch {
		case v.GreaterThanOrEqual(million):
			return sign + v.Div(million).StringFixed(1) + "M"
		case v.GreaterThanOrEqual(thousand):
			return sign + v.Div(thousand).StringFixed(1) + "K"
		default:
			return sign + v.String()
		}
	}

	d := v.Div(unitsPerDollar)
	if d.GreaterThanOrEqual(one) {
		return sign + "$" + d.StringFixed(2)
	}
	return sign + "$" + d.StringFixed(4)
}

// ToRaw 将展示字符串解析回内部额度单位，结果四舍五入到整数单位
func ToRaw(display string, mode Mode) (int64, error) {
	s := strings.TrimSpace(display)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}

	var scale decimal.Decimal
	if mode == ModeTokens {
		scale = one
		switch {
		case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "m"):
			scale = million
			s = s[:len(s)-1]
		case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "k"):
			scale = thousand
			s = s[:len(s)-1]
		}
	} else {
		scale = unitsPerDollar
		s = strings.TrimPrefix(s, "$")
	}

	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, display)
	}
	if v.IsNegative() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, display)
	}

	return v.Mul(scale).Round(0).IntPart(), nil
}

// DollarsToRaw 美元金额换算为额度单位
func DollarsToRaw(dollars float64) int64 {
	return decimal.NewFromFloat(dollars).Mul(unitsPerDollar).Round(0).IntPart()
}

// RawToDollars 额度单位换算为美元金额
func RawToDollars(raw int64) float64 {
	f, _ := decimal.NewFromInt(raw).Div(unitsPerDollar).Float64()
	return f
}
