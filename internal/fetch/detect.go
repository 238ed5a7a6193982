package fetch

import (
	"bytes"
	"strings"

	"github.com/finsight/newscrawler/internal/crawl"
)

// Detector spots pages whose article body is built client-side, so the
// orchestrator can retry them through the headless fetcher even when
// the site profile does not force rendering.
type Detector struct {
	bodyLengthThreshold int
}

// NewDetector creates a Detector. threshold is the body size below
// which high script density triggers a headless retry.
func NewDetector(threshold int) *Detector {
	if threshold <= 0 {
		threshold = 2048
	}
	return &Detector{bodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("window.__INITIAL_STATE__"),
	[]byte("__NUXT__"),
}

// NeedsRender reports whether the page should be refetched with a
// browser. Pages that already went through one never qualify.
func (d *Detector) NeedsRender(page crawl.Page) bool {
	if page.Rendered || page.StatusCode != 200 {
		return false
	}
	body := page.Body
	if len(body) == 0 {
		return true
	}
	if len(body) < d.bodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether script tags cover at least a
// quarter of the document.
func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relEnd := strings.Index(lower[contentStart:], closeTag)
		var next int
		if relEnd == -1 {
			next = total
		} else {
			next = contentStart + relEnd + len(closeTag)
		}
		coverage += next - start
		pos = next
	}

	if coverage == 0 {
		return false
	}
	return coverage*100/total >= 25
}
