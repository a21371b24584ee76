package extraction

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
)

func TestRemoteExtractCarriesCurrentKey(t *testing.T) {
	t.Setenv("EXTRACTOR_API_KEY", "secret-1")

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"GRCh38","references":[{"text":"readme","url":"https://example.org/readme"}]}`))
	}))
	defer server.Close()

	remote := NewRemote(server.URL, EnvKeySource{Variable: "EXTRACTOR_API_KEY"})
	answer, err := remote.Extract(context.Background(), "genome build")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if gotAuth != "Bearer secret-1" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if answer.Text != "GRCh38" || len(answer.References) != 1 || answer.References[0].URL != "https://example.org/readme" {
		t.Fatalf("answer = %+v", answer)
	}
}

func TestRemoteExtractNoAnswer(t *testing.T) {
	t.Setenv("EXTRACTOR_API_KEY", "secret-1")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	remote := NewRemote(server.URL, EnvKeySource{Variable: "EXTRACTOR_API_KEY"})
	if _, err := remote.Extract(context.Background(), "genome build"); !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("err = %v, want ErrNoAnswer", err)
	}
}

func TestRemoteExtractFailsWithoutKey(t *testing.T) {
	t.Setenv("EXTRACTOR_API_KEY", "")

	remote := NewRemote("http://localhost:0", EnvKeySource{Variable: "EXTRACTOR_API_KEY"})
	if _, err := remote.Extract(context.Background(), "genome build"); !errors.Is(err, domain.ErrExternalCall) {
		t.Fatalf("err = %v, want ErrExternalCall", err)
	}
}
