package extract

import (
	"regexp"
	"strings"
)

// maxBodyLines caps how much of a page body is kept after cleanup.
const maxBodyLines = 150

// Element-level denylist applied before text is gathered.
var (
	skipClasses = map[string]struct{}{
		"copyright": {}, "related": {}, "advertisement": {}, "share": {}, "comment": {},
	}
	skipTags = map[string]struct{}{
		"script": {}, "style": {}, "iframe": {}, "form": {},
	}
)

// Script and style residue that survives text extraction.
var jsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[\s\S]*?</script>`),
	regexp.MustCompile(`(?is)<style[\s\S]*?</style>`),
	regexp.MustCompile(`(?i)var\s+.*?;`),
	regexp.MustCompile(`(?i)function\s*.*?\{[\s\S]*?\}`),
	regexp.MustCompile(`(?i)\(sinaads\s*=.*?\);`),
	regexp.MustCompile(`(?i)\(\s*function\s*\(\s*\)[\s\S]*?\}\s*\)\s*\(\s*\);`),
	regexp.MustCompile(`\.[\w-]+\s*\{[^}]*\}`),
	regexp.MustCompile(`#[\w-]+\s*\{[^}]*\}`),
	regexp.MustCompile(`(?m)//.*?(\n|$)`),
	regexp.MustCompile(`/\*[\s\S]*?\*/`),
}

// Leftover markup.
var htmlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<[^>]+>`),
	regexp.MustCompile(`&[a-zA-Z0-9]+;`),
	regexp.MustCompile(`(?m)\.appendQr_wrap.*?(\n|$)`),
	regexp.MustCompile(`(?m)\.mag_topad.*?(\n|$)`),
	regexp.MustCompile(`(?m)\.news_lt.*?(\n|$)`),
	regexp.MustCompile(`(?m)\.vip-class.*?(\n|$)`),
}

// Editorial bylines and attribution lines.
var metaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\(编辑[：:]\s*.*?\)`),
	regexp.MustCompile(`\(记者[：:]\s*.*?\)`),
	regexp.MustCompile(`(?m)作者[：:]\s*.*?(\n|$)`),
	regexp.MustCompile(`(?m)来源[：:]\s*.*?(\n|$)`),
	regexp.MustCompile(`(?m)本来源.*?(\n|$)`),
	regexp.MustCompile(`(?m)原文链接.*?(\n|$)`),
	regexp.MustCompile(`(?m)关键字[：:]\s*.*?(\n|$)`),
	regexp.MustCompile(`(?m)责任编辑.*?(\n|$)`),
	regexp.MustCompile(`(?m)编辑[：:]\s*.*?(\n|$)`),
	regexp.MustCompile(`(?m)本文来源于.*?(\n|$)`),
}

// Site navigation and cross-linking blocks.
var navPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)当前位置：.*?(\n|$)`),
	regexp.MustCompile(`(?m)返回首页.*?(\n|$)`),
	regexp.MustCompile(`(?m)举报.*?(\n|$)`),
	regexp.MustCompile(`(?m)分享到：.*?(\n|$)`),
	regexp.MustCompile(`(?m)相关专题：.*?(\n|$)`),
	regexp.MustCompile(`(?m)相关新闻：.*?(\n|$)`),
	regexp.MustCompile(`(?m)热门推荐.*?(\n|$)`),
	regexp.MustCompile(`(?m)合作伙伴.*?(\n|$)`),
	regexp.MustCompile(`(?m)友情链接.*?(\n|$)`),
}

// Promotion and app-upsell blocks.
var adPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)更多精彩内容.*?(\n|$)`),
	regexp.MustCompile(`(?m)关注.*?获取更多.*?(\n|$)`),
	regexp.MustCompile(`(?m)点击关注.*?(\n|$)`),
	regexp.MustCompile(`https?://\S+`),
	regexp.MustCompile(`(?m)APP专享.*?(\n|$)`),
	regexp.MustCompile(`(?m)扫描二维码.*?(\n|$)`),
	regexp.MustCompile(`(?m)海量资讯.*?(\n|$)`),
	regexp.MustCompile(`(?m)热门文章.*?(\n|$)`),
	regexp.MustCompile(`(?m)编辑推荐.*?(\n|$)`),
}

var (
	spaceRe = regexp.MustCompile(`\s+`)
	cjkRe   = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]`)
	cjk2Re  = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,}`)
	punctRe = regexp.MustCompile(`^[\d\s!"#$%&'()*+,\-./:;<=>?@\[\]^_` + "`" + `{|}~。，、；：？！…—·ˉ¨〃々～‖∶＂＇｀｜〔〕〈〉《》「」『』．〖〗【】（）［］｛｝]+$`)
	menuRe  = regexp.MustCompile(`^[^，。！？\n]{1,10}$`)
	blankRe = regexp.MustCompile(`\n{3,}`)
)

var codeMarkers = []string{
	"function", "var ", "document.", "window.",
	"{", "}", ";", "javascript", ".css", "#",
	"@", "==", "++", "--",
}

// cleanContent strips script residue, markup, boilerplate, and noise
// lines from gathered body text, keeping at most maxBodyLines lines.
func cleanContent(content string) string {
	if content == "" {
		return ""
	}
	for _, group := range [][]*regexp.Regexp{jsPatterns, htmlPatterns, metaPatterns, navPatterns, adPatterns} {
		for _, re := range group {
			content = re.ReplaceAllString(content, "")
		}
	}

	lines := strings.Split(content, "\n")
	if len(lines) > maxBodyLines {
		lines = lines[:maxBodyLines]
	}

	var (
		kept       []string
		seen       = make(map[string]struct{})
		foundBody  bool
		emptyCount int
	)
	for _, line := range lines {
		line = spaceRe.ReplaceAllString(strings.TrimSpace(line), " ")

		if line == "" {
			emptyCount++
			// Three consecutive blanks after real content means the
			// article body is over and the footer has begun.
			if foundBody && emptyCount >= 3 {
				break
			}
			continue
		}
		emptyCount = 0

		if len([]rune(line)) < 2 {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		if looksLikeCode(line) {
			continue
		}
		if len([]rune(line)) < 10 && !cjkRe.MatchString(line) {
			continue
		}
		if punctRe.MatchString(line) {
			continue
		}
		if menuRe.MatchString(line) && !cjk2Re.MatchString(line) {
			continue
		}

		if cjkRe.MatchString(line) {
			foundBody = true
		}
		seen[line] = struct{}{}
		kept = append(kept, line)
	}

	out := strings.Join(kept, "\n")
	out = blankRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func looksLikeCode(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range codeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
