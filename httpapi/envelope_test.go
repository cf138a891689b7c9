package httpapi

import (
	"net/http"
	"testing"

	"github.com/gottino/rmirror-cloud/cmn/errs"
)

func TestStatusForKind(t *testing.T) {
	cases := []struct {
		kind errs.Kind
		want int
	}{
		{errs.KindRateLimited, http.StatusTooManyRequests},
		{errs.KindQuotaExhausted, http.StatusOK},
		{errs.KindAuth, http.StatusUnauthorized},
		{errs.KindValidation, http.StatusBadRequest},
		{errs.KindPermanent, http.StatusUnprocessableEntity},
		{errs.KindCapExceeded, http.StatusTooManyRequests},
		{errs.KindTransient, http.StatusBadGateway},
	}
	for _, c := range cases {
		if got := statusForKind(c.kind); got != c.want {
			t.Errorf("statusForKind(%v) = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b,c", []string{"a", "b", "c"}},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("splitCSV(%q) = %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("splitCSV(%q) = %v, want %v", c.in, got, c.want)
			}
		}
	}
}
