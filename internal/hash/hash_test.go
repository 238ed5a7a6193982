package hash

import "testing"

func TestShortURLDeterministic(t *testing.T) {
	t.Parallel()

	a := ShortURL("http://example.com/20240322/1.html")
	b := ShortURL("http://example.com/20240322/1.html")
	if a != b {
		t.Fatalf("expected deterministic digest, got %s vs %s", a, b)
	}
	if len(a) != 8 {
		t.Fatalf("expected 8 hex chars, got %q", a)
	}
	if ShortURL("http://example.com/20240322/2.html") == a {
		t.Fatal("different URLs must not collide on the short digest")
	}
}
