package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchExtractsMainContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html>
			<head><title>  Interim Results 2024  </title></head>
			<body>
				<nav>Home | About | Contact</nav>
				<main>
					<h1>Interim Results</h1>
					<p>Revenue   grew by
					twelve percent.</p>
				</main>
				<footer>Privacy Policy</footer>
			</body>
		</html>`))
	}))
	defer srv.Close()

	f := NewWithConfig(Config{RateLimit: 100})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	parsed, _ := url.Parse(srv.URL)
	assert.Equal(t, parsed.Host, doc.Source)
	assert.Equal(t, "Interim Results 2024", doc.Title)

	// Only the main element, whitespace collapsed
	assert.Contains(t, doc.Content, "Revenue grew by twelve percent.")
	assert.NotContains(t, doc.Content, "Home | About")

	assert.Equal(t, srv.URL, doc.Metadata["url"])
	assert.NotEmpty(t, doc.Metadata["fetched_at"])
}

func TestFetchFallsBackToBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>plain page text</p></body></html>`))
	}))
	defer srv.Close()

	f := NewWithConfig(Config{RateLimit: 100})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "plain page text", doc.Content)
}

func TestFetchStripsNoisePhrases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><main>Results here. Cookie Policy Accept Cookies</main></body></html>`))
	}))
	defer srv.Close()

	f := NewWithConfig(Config{RateLimit: 100})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.NotContains(t, doc.Content, "Cookie Policy")
	assert.Contains(t, doc.Content, "Results here.")
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewWithConfig(Config{RateLimit: 100})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer srv.Close()

	f := NewWithConfig(Config{RateLimit: 100, UserAgent: "docsearch/1.0"})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "docsearch/1.0", gotUA)
}

func TestFetchRespectsContextCancellation(t *testing.T) {
	// Limiter burst is 1, so a second immediate call blocks and must observe
	// the cancelled context.
	f := NewWithConfig(Config{RateLimit: 0.001})
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer srv.Close()

	_, err := f.Fetch(ctx, srv.URL)
	require.NoError(t, err)

	cancel()
	_, err = f.Fetch(ctx, srv.URL)
	assert.Error(t, err)
}

func TestCleanContent(t *testing.T) {
	assert.Equal(t, "a b c", cleanContent("  a \n\n b \t c  "))
	assert.Equal(t, "", cleanContent("   "))
}
