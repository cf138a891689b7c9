package agent

import (
	"testing"
	"time"
)

func TestUploadBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{4, 16 * time.Second},
		{6, 60 * time.Second}, // 2^6 = 64, clamped to 60
		{10, 60 * time.Second},
	}
	for _, c := range cases {
		if got := uploadBackoff(c.attempt); got != c.want {
			t.Errorf("uploadBackoff(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestIsRelevant(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/a/b/page.rm", true},
		{"/a/b/notebook.metadata", true},
		{"/a/b/notebook.content", true},
		{"/a/b/PAGE.RM", true},
		{"/a/b/thumbnail.jpg", false},
		{"/a/b/noext", false},
	}
	for _, c := range cases {
		if got := isRelevant(c.path); got != c.want {
			t.Errorf("isRelevant(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestQuickHash_DeterministicAndSensitiveToContent(t *testing.T) {
	a := QuickHash([]byte("hello"))
	b := QuickHash([]byte("hello"))
	c := QuickHash([]byte("world"))
	if a != b {
		t.Fatalf("expected same content to hash identically, got %d vs %d", a, b)
	}
	if a == c {
		t.Fatalf("expected different content to hash differently")
	}
}
