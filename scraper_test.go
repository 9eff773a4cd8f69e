package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDiscoverFiltersDedupesAndResolves(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a href="%s/files/part1#dl">Part <strong>One</strong></a>
			<a href="/files/part2">  Part Two  </a>
			<a href="%s/files/part1#dl">Part One again</a>
			<a href="https://other.example.com/x">Elsewhere</a>
			<a>no href</a>
		</body></html>`, srv.URL, srv.URL)
	}))
	defer srv.Close()

	items, err := Discover(srv.URL+"/page", srv.URL+"/files")
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 links, got %d: %+v", len(items), items)
	}
	if items[0].Href != srv.URL+"/files/part1#dl" {
		t.Errorf("first href = %q", items[0].Href)
	}
	if items[0].Text != "Part One" {
		t.Errorf("first text = %q, want nested text nodes joined", items[0].Text)
	}
	if items[1].Href != srv.URL+"/files/part2" {
		t.Errorf("second href = %q, relative href not resolved", items[1].Href)
	}
	if items[1].Text != "Part Two" {
		t.Errorf("second text = %q, want trimmed", items[1].Text)
	}
}

func TestDiscoverNoMatchesIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="https://other.example.com/x">x</a></body></html>`)
	}))
	defer srv.Close()

	items, err := Discover(srv.URL, "https://wanted.example.com")
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no links, got %d", len(items))
	}
}

func TestDiscoverFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := Discover(srv.URL, "https://wanted.example.com")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if fe.Status != http.StatusInternalServerError {
		t.Errorf("FetchError status = %d", fe.Status)
	}
}

func TestDiscoverSendsBrowserUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	if _, err := Discover(srv.URL, "https://x"); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if gotUA != "Mozilla/5.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestResolveNested(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"double quotes", `<script>function dl(){window.open("https://cdn.example.com/game.part1.rar")}</script>`, "https://cdn.example.com/game.part1.rar"},
		{"single quotes", `<script>window.open('https://cdn.example.com/a.zip')</script>`, "https://cdn.example.com/a.zip"},
		{"whitespace before quote", `<script>window.open(   "https://cdn.example.com/b.zip")</script>`, "https://cdn.example.com/b.zip"},
		{"first match wins", `window.open("https://cdn.example.com/1") window.open("https://cdn.example.com/2")`, "https://cdn.example.com/1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			got, err := ResolveNested(srv.URL)
			if err != nil {
				t.Fatalf("ResolveNested returned error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveNestedNoRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>nothing to see</body></html>`)
	}))
	defer srv.Close()

	_, err := ResolveNested(srv.URL)
	if !errors.Is(err, ErrNoRedirect) {
		t.Fatalf("expected ErrNoRedirect, got %v", err)
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		t.Errorf("a missing redirect must not look like a fetch failure")
	}
}

func TestResolveNestedFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := ResolveNested(srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if errors.Is(err, ErrNoRedirect) {
		t.Errorf("a fetch failure must not look like a missing redirect")
	}
}
