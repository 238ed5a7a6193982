package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// labelRe strips publishing labels that sites prepend to date strings.
var labelRe = regexp.MustCompile(`(?i)^(发布于|发表于|Published on|Posted on|Date:)\s*`)

var monthMap = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// datePattern pairs a regexp with the meaning of its capture groups.
type datePattern struct {
	re   *regexp.Regexp
	kind patternKind
}

type patternKind int

const (
	ymd        patternKind = iota // year month day, numeric
	monthFirst                    // month-name day [year]
	dayFirst                      // day month-name [year]
)

// Absolute date patterns, tried in order. A pattern that matches but
// fails validation falls through to the next one.
var datePatterns = []datePattern{
	{regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`), ymd},
	{regexp.MustCompile(`(\d{4})/(\d{2})/(\d{2})`), ymd},
	{regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`), ymd},
	{regexp.MustCompile(`(\d{4})\.(\d{1,2})\.(\d{1,2})`), ymd},
	{regexp.MustCompile(`([A-Za-z]+)\s+(\d{1,2}),?\s*(\d{4})`), monthFirst},
	{regexp.MustCompile(`(\d{1,2})\s+([A-Za-z]+)\s+(\d{4})`), dayFirst},
	{regexp.MustCompile(`([A-Za-z]+)\s+(\d{1,2})`), monthFirst},
	{regexp.MustCompile(`(\d{1,2})\s+([A-Za-z]+)`), dayFirst},
	{regexp.MustCompile(`(\d{2})-(\d{2})-(\d{2})`), ymd},
	{regexp.MustCompile(`(\d{2})/(\d{2})/(\d{2})`), ymd},
}

type relativePattern struct {
	re    *regexp.Regexp
	shift func(now time.Time, n int) time.Time
}

var relativePatterns = []relativePattern{
	{regexp.MustCompile(`(\d+)\s*分钟前`), func(now time.Time, n int) time.Time {
		return now.Add(-time.Duration(n) * time.Minute)
	}},
	{regexp.MustCompile(`(\d+)\s*小时前`), func(now time.Time, n int) time.Time {
		return now.Add(-time.Duration(n) * time.Hour)
	}},
	{regexp.MustCompile(`(\d+)\s*天前`), func(now time.Time, n int) time.Time {
		return now.AddDate(0, 0, -n)
	}},
	{regexp.MustCompile(`昨天`), func(now time.Time, _ int) time.Time {
		return now.AddDate(0, 0, -1)
	}},
	{regexp.MustCompile(`前天`), func(now time.Time, _ int) time.Time {
		return now.AddDate(0, 0, -2)
	}},
	{regexp.MustCompile(`刚刚`), func(now time.Time, _ int) time.Time {
		return now
	}},
}

// NormalizeDate parses a free-form date string into a time. It handles
// relative phrases, Chinese and Western formats, and two-digit years.
// The second return value reports whether anything parseable was found.
func NormalizeDate(text string, now time.Time) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}
	text = strings.Join(strings.Fields(text), " ")
	text = labelRe.ReplaceAllString(text, "")

	for _, rp := range relativePatterns {
		m := rp.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n := 0
		if len(m) > 1 {
			n, _ = strconv.Atoi(m[1])
		}
		return rp.shift(now, n), true
	}

	for _, dp := range datePatterns {
		m := dp.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		var year, day int
		var month time.Month
		switch dp.kind {
		case monthFirst, dayFirst:
			monthIdx, dayIdx := 1, 2
			if dp.kind == dayFirst {
				monthIdx, dayIdx = 2, 1
			}
			name := m[monthIdx]
			if len(name) > 3 {
				name = name[:3]
			}
			name = strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
			mo, ok := monthMap[name]
			if !ok {
				continue
			}
			month = mo
			day, _ = strconv.Atoi(m[dayIdx])
			if len(m) > 3 && m[3] != "" {
				year, _ = strconv.Atoi(m[3])
			} else {
				year = now.Year()
			}
		default:
			year, _ = strconv.Atoi(m[1])
			mo, _ := strconv.Atoi(m[2])
			month = time.Month(mo)
			day, _ = strconv.Atoi(m[3])
		}

		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		if year < 100 {
			year += 2000
		}
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if d.Day() != day || d.Month() != month {
			continue
		}
		return d, true
	}
	return time.Time{}, false
}

// URL date patterns, in order of specificity.
var urlDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`/(\d{4})(\d{2})(\d{2})/`),
	regexp.MustCompile(`/(\d{4})-(\d{2})-(\d{2})/`),
	regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`),
}

// DateFromURL recovers a publish date from date-bearing URL paths such
// as /20240322/12345.html.
func DateFromURL(rawURL string) (time.Time, bool) {
	for _, re := range urlDatePatterns {
		m := re.FindStringSubmatch(rawURL)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if d.Day() != day || int(d.Month()) != month {
			continue
		}
		return d, true
	}
	return time.Time{}, false
}
