package model

import "time"

// DateLayout 是导出文件中日期列和文件名使用的格式。
const DateLayout = "2006-01-02"

// FormatDate 以 YYYY-MM-DD 格式化时间。
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
