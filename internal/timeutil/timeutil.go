// Package timeutil は "HH:MM" 形式の時刻文字列とレコードのタイムスタンプを扱う純粋関数を提供する。
package timeutil

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

const minutesPerDay = 24 * 60

// ParseTimeToMinutes は "H:MM" または "HH:MM" を0時からの経過分に変換する。
// ":" で分割した先頭2要素を整数として解釈する。各要素は先頭の数字部分のみを使い、
// 数字で始まらない要素や要素不足の場合は false を返す。
// 時・分の範囲は検証しない（"25:99" は 2499 になる）。
// intに収まらない桁数の数字列は解釈できない値として false を返す。
func ParseTimeToMinutes(value string) (int, bool) {
	parts := strings.Split(value, ":")
	if len(parts) < 2 {
		return 0, false
	}

	h, ok := parseLeadingInt(parts[0])
	if !ok {
		return 0, false
	}
	m, ok := parseLeadingInt(parts[1])
	if !ok {
		return 0, false
	}

	return h*60 + m, true
}

// HoursBetween は start から end までの時間数を返す。
// 差が0以下の場合は日跨ぎとみなして24時間を加算する。
// 同一時刻は0時間ではなく24時間のシフトとして扱う。
func HoursBetween(start, end string) (float64, bool) {
	s, ok := ParseTimeToMinutes(start)
	if !ok {
		return 0, false
	}
	e, ok := ParseTimeToMinutes(end)
	if !ok {
		return 0, false
	}

	diff := e - s
	if diff <= 0 {
		diff += minutesPerDay
	}
	return float64(diff) / 60, true
}

// parseLeadingInt は先頭の空白と符号に続く数字列を10進整数として読む。
// 数字の後ろに続く文字は無視する。
func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// TimestampLayout はレコードの createdAt / updatedAt に使用する形式（UTC、ミリ秒精度）。
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp は t をUTCに変換して TimestampLayout で整形する。
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
