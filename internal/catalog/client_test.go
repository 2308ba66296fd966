package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbimirror/internal/config"
	apperrors "pbimirror/internal/errors"
	"pbimirror/internal/shared/testutil"
)

func newTestClient(t *testing.T, baseURL string) (*Client, *testutil.BufferedSlogHandler) {
	t.Helper()
	cfg := config.Default().Remote
	cfg.BaseURL = baseURL
	cfg.Timeout = 2 * time.Second

	logger, handler := testutil.NewTestLogger(t)
	httpClient := NewHTTPClient(cfg, Credentials{Username: "alice", Password: "secret"})
	return NewClient(cfg, httpClient, WithLogger(logger)), handler
}

func TestClient_ListRootByPath(t *testing.T) {
	srv := testutil.NewCatalogServer(t)
	srv.SetRoot("/Bio/RPA TEST",
		testutil.Entry("F1", "Reports", "Folder"),
		testutil.Entry("W1", "SBL_P5_A_B_240101", "ExcelWorkbook"),
	)

	client, handler := newTestClient(t, srv.URL)
	listing, err := client.List(context.Background(), ByPath("/Bio/RPA TEST"))
	require.NoError(t, err)

	require.Len(t, listing.Items, 2)
	assert.Equal(t, "Reports", listing.Items[0].Name)
	assert.Equal(t, KindWorkbook, listing.Items[1].Kind)

	require.Len(t, srv.Requests(), 1)
	assert.Equal(t, "/reports/api/v2.0/Folders%28Path=%27/Bio/RPA%20TEST%27%29/CatalogItems", srv.Requests()[0])
	assert.True(t, handler.ContainsMessage("Successfully retrieved folder items"))
	assert.True(t, handler.ContainsAttr("component", "catalog"))
}

func TestClient_ListByID(t *testing.T) {
	srv := testutil.NewCatalogServer(t)
	srv.SetFolder("F1", testutil.Entry("R1", "scan_A_B_C_240102.pdf", "Pdf"))

	client, _ := newTestClient(t, srv.URL)
	listing, err := client.List(context.Background(), ByID("F1"))
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)
	assert.Equal(t, KindResource, listing.Items[0].Kind)
	assert.Equal(t, "Pdf", listing.Items[0].Type)
}

func TestClient_ListHTTPStatus(t *testing.T) {
	srv := testutil.NewCatalogServer(t)
	srv.FailListing("F1", http.StatusInternalServerError)

	client, _ := newTestClient(t, srv.URL)
	_, err := client.List(context.Background(), ByID("F1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrHTTPStatus))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusInternalServerError, appErr.Context["status_code"])
	assert.Contains(t, appErr.Context["url"], "Folders%28F1%29")
}

func TestClient_ListNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, _ := newTestClient(t, url)
	_, err := client.List(context.Background(), ByPath("/Reports"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNetwork))
}

func TestClient_ListTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	cfg := config.Default().Remote
	cfg.BaseURL = srv.URL
	cfg.Timeout = 50 * time.Millisecond
	client := NewClient(cfg, NewHTTPClient(cfg, Credentials{}))

	_, err := client.List(context.Background(), ByPath("/Reports"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNetwork))
}

func TestClient_ListParsingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>sign in</html>"))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	_, err := client.List(context.Background(), ByPath("/Reports"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrParsing))
}

func TestClient_ListItemsFailSoft(t *testing.T) {
	srv := testutil.NewCatalogServer(t)
	srv.FailListing("F1", http.StatusForbidden)
	srv.SetFolder("F2",
		testutil.Entry("W1", "a", "ExcelWorkbook"),
		map[string]any{"Id": "broken"},
	)

	client, handler := newTestClient(t, srv.URL)

	items := client.ListItems(context.Background(), ByID("F1"))
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.True(t, handler.ContainsMessage("Failed to retrieve folder items"))

	items = client.ListItems(context.Background(), ByID("F2"))
	require.Len(t, items, 1)
	assert.True(t, handler.ContainsMessage("Unexpected item format"))
}

func TestClient_FetchContent(t *testing.T) {
	srv := testutil.NewCatalogServer(t)
	srv.SetContent("W1", []byte("workbook-bytes"))
	srv.FailContent("W2", http.StatusNotFound)

	client, _ := newTestClient(t, srv.URL)

	data, err := client.FetchContent(context.Background(), "W1")
	require.NoError(t, err)
	assert.Equal(t, []byte("workbook-bytes"), data)
	assert.Equal(t, 1, srv.ContentRequests("W1"))

	_, err = client.FetchContent(context.Background(), "W2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrHTTPStatus))
}

func TestClient_CanceledContext(t *testing.T) {
	srv := testutil.NewCatalogServer(t)
	srv.SetContent("W1", []byte("x"))

	client, _ := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchContent(ctx, "W1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, apperrors.ErrNetwork))
}

func TestHTTPClient_SetsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"value":[]}`))
	}))
	defer srv.Close()

	cfg := config.Default().Remote
	cfg.BaseURL = srv.URL
	cfg.UserAgent = "pbimirror-test"
	client := NewClient(cfg, NewHTTPClient(cfg, Credentials{Username: "alice", Password: "pw"}))

	_, err := client.List(context.Background(), ByPath("/Reports"))
	require.NoError(t, err)
	assert.Equal(t, "pbimirror-test", gotUA)
}

func TestCredentials_Principal(t *testing.T) {
	assert.Equal(t, "alice", Credentials{Username: "alice"}.Principal())
	assert.Equal(t, `CORP\alice`, Credentials{Username: "alice", Domain: "CORP"}.Principal())
	assert.Equal(t, `OTHER\alice`, Credentials{Username: `OTHER\alice`, Domain: "CORP"}.Principal())
	assert.Equal(t, "alice@corp.test", Credentials{Username: "alice@corp.test", Domain: "CORP"}.Principal())
	assert.NotContains(t, Credentials{Username: "alice", Password: "secret"}.String(), "secret")
}
