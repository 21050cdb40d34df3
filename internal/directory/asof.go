package directory

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	titleParen = regexp.MustCompile(`\(([^)]+)\)`)
	titleDate  = regexp.MustCompile(`(\d{4})\.(\d{1,2})\.(\d{1,2})`)
	weekdays   = [...]string{"일", "월", "화", "수", "목", "금", "토"}
)

// AsOfFromTitle turns a spreadsheet title such as
// "하남 학원조회 자료 (2026.01.17.기준)" into the label
// "2026. 1. 17. (토) 기준". When the parenthesised part holds no date it is
// returned as is; titles without parentheses give "".
func AsOfFromTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.TrimSuffix(title, " - Google Sheets")
	title = strings.TrimSuffix(title, " - Google 스프레드시트")

	paren := titleParen.FindStringSubmatch(title)
	if paren == nil {
		return ""
	}
	m := titleDate.FindStringSubmatch(paren[1])
	if m == nil {
		return paren[1]
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return fmt.Sprintf("%d. %d. %d. (%s) 기준", year, month, day, weekdays[d.Weekday()])
}
