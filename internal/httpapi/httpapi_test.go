package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/davidpdrsn/console-web/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleOpenConsole_MalformedAddressRedirectsWithFlash(t *testing.T) {
	s := New(registry.New())
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(srv.URL + "/open-console?ip=&port=1234")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	loc := resp.Header.Get("Location")
	assert.Contains(t, loc, "flash=")
}

func TestHandleConsole_UnreachableUpstreamRendersConnectionFailed(t *testing.T) {
	s := New(registry.New())
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/console/127.0.0.1/1/tasks")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHandleIndex_ServesForm(t *testing.T) {
	s := New(registry.New())
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
