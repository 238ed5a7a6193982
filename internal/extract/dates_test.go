package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 12, 10, 15, 0, 0, 0, time.UTC)

func TestNormalizeDateFormats(t *testing.T) {
	want := time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC)

	cases := []string{
		"2024-03-22",
		"2024/03/22",
		"2024年3月22日",
		"2024.3.22",
		"24-03-22",
		"24/03/22",
		"发布于 2024-03-22",
		"Published on 2024-03-22",
		"2024-03-22 14:30:05",
	}
	for _, text := range cases {
		got, ok := NormalizeDate(text, testNow)
		require.True(t, ok, "input %q", text)
		require.Equal(t, want, got, "input %q", text)
	}
}

func TestNormalizeDateEnglishMonths(t *testing.T) {
	want := time.Date(2024, 12, 7, 0, 0, 0, 0, time.UTC)

	for _, text := range []string{"Dec 7, 2024", "December 7 2024", "7 Dec 2024", "7 December 2024"} {
		got, ok := NormalizeDate(text, testNow)
		require.True(t, ok, "input %q", text)
		require.Equal(t, want, got, "input %q", text)
	}

	// Without a year the current year is assumed.
	got, ok := NormalizeDate("Dec 7", testNow)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestNormalizeDateRelative(t *testing.T) {
	got, ok := NormalizeDate("3天前", testNow)
	require.True(t, ok)
	require.Equal(t, testNow.AddDate(0, 0, -3), got)

	got, ok = NormalizeDate("5 小时前", testNow)
	require.True(t, ok)
	require.Equal(t, testNow.Add(-5*time.Hour), got)

	got, ok = NormalizeDate("昨天 08:30", testNow)
	require.True(t, ok)
	require.Equal(t, testNow.AddDate(0, 0, -1), got)

	got, ok = NormalizeDate("刚刚", testNow)
	require.True(t, ok)
	require.Equal(t, testNow, got)
}

func TestNormalizeDateRejectsImpossibleDates(t *testing.T) {
	for _, text := range []string{"2024-13-01", "2024-03-32", "2024-02-30", "", "no date here"} {
		_, ok := NormalizeDate(text, testNow)
		require.False(t, ok, "input %q", text)
	}
}

func TestNormalizeDateTwoDigitYear(t *testing.T) {
	got, ok := NormalizeDate("24-06-15", testNow)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestDateFromURL(t *testing.T) {
	want := time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC)

	cases := []string{
		"http://example.com/20240322/123456.html",
		"http://example.com/news/2024-03-22/report.html",
		"http://example.com/2024/3/22/report.html",
	}
	for _, raw := range cases {
		got, ok := DateFromURL(raw)
		require.True(t, ok, "url %q", raw)
		require.Equal(t, want, got, "url %q", raw)
	}

	_, ok := DateFromURL("http://example.com/about.html")
	require.False(t, ok)

	_, ok = DateFromURL("http://example.com/20241332/1.html")
	require.False(t, ok)
}
