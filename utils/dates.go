package utils

import (
	"fmt"
	"time"
)

// DateLayout はJIRAの日付フィールドで使う形式です
const DateLayout = "2006-01-02"

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// FirstWorkingDay は指定月の最初の平日 (月〜金) を返します
func FirstWorkingDay(year int, month time.Month) time.Time {
	day := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for isWeekend(day) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// LastWorkingDay は指定月の最後の平日 (月〜金) を返します
func LastWorkingDay(year int, month time.Month) time.Time {
	// 翌月の0日 = 当月末日
	day := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	for isWeekend(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// MonthSuffix はエピック名に付く月サフィックス (例: Jan'26) を返します
func MonthSuffix(year int, month time.Month) string {
	return fmt.Sprintf("%s'%02d", month.String()[:3], year%100)
}

// Quarter は月から四半期ラベル (Q1〜Q4) を返します
func Quarter(month time.Month) string {
	return fmt.Sprintf("Q%d", (int(month)-1)/3+1)
}

// FormatDate は日付を YYYY-MM-DD 形式に変換します
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
