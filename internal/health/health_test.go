package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckTuner_ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	if err := CheckTuner(context.Background(), srv.URL+"/desc.xml"); err != nil {
		t.Fatalf("CheckTuner: %v", err)
	}
}

func TestCheckTuner_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	if err := CheckTuner(context.Background(), srv.URL+"/desc.xml"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestCheckTuner_emptyURL(t *testing.T) {
	if err := CheckTuner(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty URL")
	}
}
