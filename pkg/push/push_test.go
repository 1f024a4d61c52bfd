package push

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/i5heu/sharesync/pkg/entity"
	"github.com/i5heu/sharesync/pkg/hash"
	"github.com/i5heu/sharesync/pkg/synctransport"
)

func h(seed byte) hash.Hash32 {
	var out hash.Hash32
	for i := range out {
		out[i] = seed
	}
	return out
}

type fakeStore struct {
	entities map[hash.Hash32]entity.Entity
}

func (f *fakeStore) ExpectEntity(ctx context.Context, hh hash.Hash32) (entity.Entity, error) {
	return f.entities[hh], nil
}

// fakeTransport embeds a nil Transport so any unstubbed method panics
// loudly instead of silently returning a zero value, matching the
// uploadloop package's fake style.
type fakeTransport struct {
	synctransport.Transport

	updatePathCalls []synctransport.UpdatePathRequest
	updatePathResps []*synctransport.UpdatePathResult

	uploadCalls int
}

func (f *fakeTransport) UpdatePath(ctx context.Context, req synctransport.UpdatePathRequest) (*synctransport.UpdatePathResult, error) {
	f.updatePathCalls = append(f.updatePathCalls, req)
	resp := f.updatePathResps[0]
	f.updatePathResps = f.updatePathResps[1:]
	return resp, nil
}

func (f *fakeTransport) UploadEntities(ctx context.Context, repoName string, entities map[hash.Hash32]entity.Entity) (*synctransport.UploadEntitiesResult, error) {
	f.uploadCalls++
	return &synctransport.UploadEntitiesResult{Type: synctransport.UploadEntitiesSuccess}, nil
}

func TestCheckAndSet_ImmediateSuccess_NoUploads(t *testing.T) {
	transport := &fakeTransport{
		updatePathResps: []*synctransport.UpdatePathResult{
			{Type: synctransport.UpdatePathSuccess},
		},
	}
	store := &fakeStore{entities: map[hash.Hash32]entity.Entity{}}

	err := CheckAndSet(context.Background(), store, transport,
		synctransport.Path{RepoName: "r"}, nil, hash.NewCausalHash(h(1)), nil)

	require.NoError(t, err)
	require.Equal(t, 0, transport.uploadCalls)
	require.Len(t, transport.updatePathCalls, 1)
}

func TestCheckAndSet_HashMismatch_NoUploads(t *testing.T) {
	expected := h(2)
	actual := h(3)
	transport := &fakeTransport{
		updatePathResps: []*synctransport.UpdatePathResult{
			{Type: synctransport.UpdatePathHashMismatch, Expected: &expected, Actual: &actual},
		},
	}
	store := &fakeStore{entities: map[hash.Hash32]entity.Entity{}}

	err := CheckAndSet(context.Background(), store, transport,
		synctransport.Path{RepoName: "r"}, nil, hash.NewCausalHash(h(1)), nil)

	var mismatch *HashMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, expected, *mismatch.Expected)
	require.Equal(t, actual, *mismatch.Actual)
	require.Equal(t, 0, transport.uploadCalls)
}

func TestCheckAndSet_MissingDependencies_UploadsThenRetriesSuccess(t *testing.T) {
	dep := h(4)
	local := h(5)
	transport := &fakeTransport{
		updatePathResps: []*synctransport.UpdatePathResult{
			{Type: synctransport.UpdatePathMissingDependencies, MissingDependencies: []hash.Hash32{dep}},
			{Type: synctransport.UpdatePathSuccess},
		},
	}
	store := &fakeStore{entities: map[hash.Hash32]entity.Entity{
		dep: {Kind: entity.KindBytes, Body: []byte("dep")},
	}}

	err := CheckAndSet(context.Background(), store, transport,
		synctransport.Path{RepoName: "r"}, nil, hash.NewCausalHash(local), nil)

	require.NoError(t, err)
	require.Equal(t, 1, transport.uploadCalls)
	require.Len(t, transport.updatePathCalls, 2)
}

func TestCheckAndSet_RetryStillMissing_ServerMissingDependenciesError(t *testing.T) {
	dep := h(6)
	more := h(7)
	local := h(8)
	transport := &fakeTransport{
		updatePathResps: []*synctransport.UpdatePathResult{
			{Type: synctransport.UpdatePathMissingDependencies, MissingDependencies: []hash.Hash32{dep}},
			{Type: synctransport.UpdatePathMissingDependencies, MissingDependencies: []hash.Hash32{more}},
		},
	}
	store := &fakeStore{entities: map[hash.Hash32]entity.Entity{
		dep: {Kind: entity.KindBytes, Body: []byte("dep")},
	}}

	err := CheckAndSet(context.Background(), store, transport,
		synctransport.Path{RepoName: "r"}, nil, hash.NewCausalHash(local), nil)

	var serverMissing *ServerMissingDependenciesError
	require.ErrorAs(t, err, &serverMissing)
	require.Equal(t, []hash.Hash32{more}, serverMissing.Missing)
	// No further upload loop or retry happens after the second response.
	require.Equal(t, 1, transport.uploadCalls)
	require.Len(t, transport.updatePathCalls, 2)
}

func TestCheckAndSet_NoWritePermission_Surfaces(t *testing.T) {
	transport := &fakeTransport{
		updatePathResps: []*synctransport.UpdatePathResult{
			{Type: synctransport.UpdatePathNoWritePermission},
		},
	}
	store := &fakeStore{entities: map[hash.Hash32]entity.Entity{}}

	err := CheckAndSet(context.Background(), store, transport,
		synctransport.Path{RepoName: "r"}, nil, hash.NewCausalHash(h(9)), nil)

	var permErr *NoWritePermissionError
	require.ErrorAs(t, err, &permErr)
}
