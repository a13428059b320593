package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "tester" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("no agent"))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct{ OK bool }
	h := http.Header{}
	h.Set("User-Agent", "tester")
	if err := GetJSON(context.Background(), srv.Client(), srv.URL, h, &out); err != nil || !out.OK {
		t.Fatalf("GetJSON ok=%v err=%v", out.OK, err)
	}

	err := GetJSON(context.Background(), srv.Client(), srv.URL, nil, &out)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusForbidden || se.Body != "no agent" {
		t.Fatalf("err=%v", err)
	}
}
