package synctransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/i5heu/sharesync/pkg/hash"
)

func TestUpdatePath_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sync/updatePath", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"success"}`))
	}))
	defer srv.Close()

	transport := NewHTTPTransport(srv.URL, nil)
	result, err := transport.UpdatePath(context.Background(), UpdatePathRequest{
		Path:    Path{RepoName: "r"},
		NewHash: hash.NewCausalHash(hash.Hash32{}),
	})
	require.NoError(t, err)
	require.Equal(t, UpdatePathSuccess, result.Type)
}

func TestPost_ClassifiesNonHTTPOkStatuses(t *testing.T) {
	cases := []struct {
		status int
		kind   TransportErrorKind
	}{
		{401, Unauthenticated},
		{403, PermissionDenied},
		{408, Timeout},
		{504, Timeout},
		{429, RateLimitExceeded},
		{500, InternalServerError},
		{599, InternalServerError},
		{404, InvalidResponse},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte("boom"))
		}))

		transport := NewHTTPTransport(srv.URL, nil)
		_, err := transport.GetCausalHashByPath(context.Background(), Path{RepoName: "r"})
		require.Error(t, err)

		var tErr *TransportError
		require.ErrorAs(t, err, &tErr)
		require.Equal(t, tc.kind, tErr.Kind, "status %d", tc.status)

		srv.Close()
	}
}

func TestPost_UnreachableService(t *testing.T) {
	transport := NewHTTPTransport("http://127.0.0.1:1", nil)
	_, err := transport.GetCausalHashByPath(context.Background(), Path{RepoName: "r"})
	require.Error(t, err)

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	require.Equal(t, UnreachableService, tErr.Kind)
}

func TestDownloadEntities_DecodesHashKeyedMap(t *testing.T) {
	h := hash.Hash32{0xAB}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"success","entities":{"` + h.String() + `":{"kind":5,"body":"aGVsbG8="}}}`))
	}))
	defer srv.Close()

	transport := NewHTTPTransport(srv.URL, nil)
	got, err := transport.DownloadEntities(context.Background(), "repo", []hash.HashJWT{"jwt"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, []byte("hello"), got[h].Body)
}

func TestPost_SendsCustomHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"type":"success"}`))
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer token")
	transport := NewHTTPTransport(srv.URL, header)

	_, err := transport.GetCausalHashByPath(context.Background(), Path{RepoName: "r"})
	require.NoError(t, err)
}
