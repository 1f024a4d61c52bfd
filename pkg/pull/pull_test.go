package pull

import (
	"context"
	"os"
	"sync"
	"testing"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/sharesync/pkg/entity"
	"github.com/i5heu/sharesync/pkg/hash"
	"github.com/i5heu/sharesync/pkg/synctransport"
	"github.com/i5heu/sharesync/pkg/syncstore"
)

func newTestStore(t *testing.T) *syncstore.BadgerStore {
	t.Helper()
	dir, err := os.MkdirTemp("", "sharesync_pull_*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := syncstore.Open(syncstore.Config{Path: dir}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func h(seed byte) hash.Hash32 {
	var out hash.Hash32
	for i := range out {
		out[i] = seed
	}
	return out
}

func jwtFor(t *testing.T, hh hash.Hash32) hash.HashJWT {
	t.Helper()
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{"hash": hh.String()})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return hash.HashJWT(signed)
}

// fakeTransport serves a fixed server-side DAG (hash -> entity) and
// counts DownloadEntities calls, matching the concrete scenarios of
// spec.md §8.
type fakeTransport struct {
	synctransport.Transport

	rootJWT hash.HashJWT
	noRoot  bool
	dag     map[hash.Hash32]entity.Entity

	mu            sync.Mutex
	downloadCalls [][]hash.HashJWT
}

func (f *fakeTransport) GetCausalHashByPath(ctx context.Context, path synctransport.Path) (*synctransport.GetCausalHashByPathResult, error) {
	if f.noRoot {
		return &synctransport.GetCausalHashByPathResult{Type: synctransport.GetCausalHashByPathSuccess}, nil
	}
	jwt := f.rootJWT
	return &synctransport.GetCausalHashByPathResult{Type: synctransport.GetCausalHashByPathSuccess, HashJWT: &jwt}, nil
}

func (f *fakeTransport) DownloadEntities(ctx context.Context, repoName string, hashes []hash.HashJWT) (map[hash.Hash32]entity.Entity, error) {
	f.mu.Lock()
	f.downloadCalls = append(f.downloadCalls, hashes)
	f.mu.Unlock()

	out := make(map[hash.Hash32]entity.Entity, len(hashes))
	for _, jwt := range hashes {
		hh, err := jwt.Hash()
		if err != nil {
			return nil, err
		}
		out[hh] = f.dag[hh]
	}
	return out, nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.downloadCalls)
}

func TestPull_EmptyPath_ReturnsNoHistoryAtPath(t *testing.T) {
	store := newTestStore(t)
	transport := &fakeTransport{noRoot: true}

	_, err := Pull(context.Background(), store, transport, synctransport.Path{RepoName: "r"}, "r", Callbacks{})

	var noHistory *NoHistoryAtPathError
	require.ErrorAs(t, err, &noHistory)
	require.Equal(t, 0, transport.callCount())
}

func TestPull_AlreadyInMain_ZeroDownloads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	root := h(1)
	loc, err := store.Promote(ctx, root, entity.Entity{Kind: entity.KindBytes, Body: []byte("root")})
	require.NoError(t, err)
	require.Equal(t, syncstore.LocationMain, loc)

	transport := &fakeTransport{rootJWT: jwtFor(t, root)}

	got, err := Pull(ctx, store, transport, synctransport.Path{RepoName: "r"}, "r", Callbacks{})
	require.NoError(t, err)
	require.Equal(t, root, got)
	require.Equal(t, 0, transport.callCount())
}

func TestPull_ThreeEntityChain_PromotesAllToMainNoTemp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, b, c := h(0xA1), h(0xB1), h(0xC1)
	aJWT, bJWT, cJWT := jwtFor(t, a), jwtFor(t, b), jwtFor(t, c)

	dag := map[hash.Hash32]entity.Entity{
		a: {Kind: entity.KindBytes, Dependencies: []hash.HashJWT{bJWT}, Body: []byte("a")},
		b: {Kind: entity.KindBytes, Dependencies: []hash.HashJWT{cJWT}, Body: []byte("b")},
		c: {Kind: entity.KindBytes, Body: []byte("c")},
	}
	transport := &fakeTransport{rootJWT: aJWT, dag: dag}

	var cbMu sync.Mutex
	var downloadedTotal, queuedTotal int
	cb := Callbacks{
		OnDownloaded:        func(n int) { cbMu.Lock(); downloadedTotal += n; cbMu.Unlock() },
		OnQueuedForDownload: func(n int) { cbMu.Lock(); queuedTotal += n; cbMu.Unlock() },
	}

	got, err := Pull(ctx, store, transport, synctransport.Path{RepoName: "r"}, "r", cb)
	require.NoError(t, err)
	require.Equal(t, a, got)

	require.GreaterOrEqual(t, transport.callCount(), 2)
	require.Equal(t, 3, downloadedTotal)
	require.Equal(t, 3, queuedTotal) // A queued in pre-flight, B after elaborating A, C after elaborating B

	for _, hh := range []hash.Hash32{a, b, c} {
		loc, err := store.EntityLocation(ctx, hh)
		require.NoError(t, err)
		require.Equal(t, syncstore.LocationMain, loc, "hash %s", hh)
	}
}

func TestPull_Idempotent_SecondPullZeroDownloads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, b := h(0xD1), h(0xE1)
	aJWT, bJWT := jwtFor(t, a), jwtFor(t, b)
	dag := map[hash.Hash32]entity.Entity{
		a: {Kind: entity.KindBytes, Dependencies: []hash.HashJWT{bJWT}, Body: []byte("a")},
		b: {Kind: entity.KindBytes, Body: []byte("b")},
	}
	transport := &fakeTransport{rootJWT: aJWT, dag: dag}

	_, err := Pull(ctx, store, transport, synctransport.Path{RepoName: "r"}, "r", Callbacks{})
	require.NoError(t, err)
	require.NotZero(t, transport.callCount())

	before := transport.callCount()
	got, err := Pull(ctx, store, transport, synctransport.Path{RepoName: "r"}, "r", Callbacks{})
	require.NoError(t, err)
	require.Equal(t, a, got)
	require.Equal(t, before, transport.callCount(), "second pull must not issue any new downloads")
}
