package ocr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gottino/rmirror-cloud/cmn/errs"
)

func TestRecognize_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pages":[{"page_number":1,"text":"hello","confidence":0.9}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 0)
	res, err := c.Recognize(context.Background(), []byte("blob"), "application/octet-stream")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Pages) != 1 || res.Pages[0].Text != "hello" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRecognize_TransientOn5xxAndRateLimit(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		c := New(srv.URL, "key", 0)
		_, err := c.Recognize(context.Background(), []byte("blob"), "application/octet-stream")
		srv.Close()

		if _, ok := err.(*TransientError); !ok {
			t.Fatalf("status %d: expected TransientError, got %T (%v)", status, err, err)
		}
		if KindOf(err) != errs.KindTransient {
			t.Fatalf("status %d: KindOf = %v, want KindTransient", status, KindOf(err))
		}
	}
}

func TestRecognize_PermanentOnOtherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 0)
	_, err := c.Recognize(context.Background(), []byte("blob"), "application/octet-stream")
	if _, ok := err.(*PermanentError); !ok {
		t.Fatalf("expected PermanentError, got %T (%v)", err, err)
	}
	if KindOf(err) != errs.KindPermanent {
		t.Fatalf("KindOf = %v, want KindPermanent", KindOf(err))
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	if KindOf(errUnclassified{}) != errs.KindUnknown {
		t.Fatalf("expected KindUnknown for unclassified error")
	}
}

type errUnclassified struct{}

func (errUnclassified) Error() string { return "boom" }
