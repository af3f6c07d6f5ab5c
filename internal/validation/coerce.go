package validation

import (
	"math"
	"strconv"
	"strings"
)

// trimmedString は文字列ならば前後の空白を除いた値を、それ以外は空文字列を返す。
func trimmedString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// toNumber は値を数値に変換する。変換できない場合はNaNを返す。
// 空文字列とnullは0、真偽値は0または1として扱う。
func toNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case nil:
		return 0
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// truthy は値が未設定、false、0、NaN、空文字列のいずれでもない場合にtrueを返す。
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case int:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}
