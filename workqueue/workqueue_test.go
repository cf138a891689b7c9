package workqueue

import (
	"testing"
	"time"

	"github.com/gottino/rmirror-cloud/domain"
)

func TestBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 30 * time.Second},
		{1, 60 * time.Second},
		{2, 120 * time.Second},
		{7, 3600 * time.Second}, // 30*2^7 = 3840, clamped to 3600
		{20, 3600 * time.Second},
	}
	for _, c := range cases {
		if got := Backoff(c.attempt); got != c.want {
			t.Errorf("Backoff(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestNewFullSyncItem(t *testing.T) {
	item := NewFullSyncItem("user-1", "page-1", "hash-1", []string{"structurednotes"})
	if item.Kind != domain.WorkFull {
		t.Fatalf("expected kind=full, got %q", item.Kind)
	}
	if item.ItemKind != "page" {
		t.Fatalf("expected item_kind=page, got %q", item.ItemKind)
	}
	if item.TargetRef != "page-1" || item.ContentHashSnapshot != "hash-1" {
		t.Fatalf("unexpected item fields: %+v", item)
	}
	if len(item.Destinations) != 1 || item.Destinations[0] != "structurednotes" {
		t.Fatalf("unexpected destinations: %+v", item.Destinations)
	}
}
