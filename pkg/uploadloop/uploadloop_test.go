package uploadloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/i5heu/sharesync/pkg/entity"
	"github.com/i5heu/sharesync/pkg/hash"
	"github.com/i5heu/sharesync/pkg/synctransport"
)

type fakeStore struct {
	entities map[hash.Hash32]entity.Entity
}

func (f *fakeStore) ExpectEntity(ctx context.Context, h hash.Hash32) (entity.Entity, error) {
	return f.entities[h], nil
}

type fakeTransport struct {
	synctransport.Transport // nil embed: panics if an unexpected method is called

	uploadCalls [][]hash.Hash32
	responses   []*synctransport.UploadEntitiesResult
}

func (f *fakeTransport) UploadEntities(ctx context.Context, repoName string, entities map[hash.Hash32]entity.Entity) (*synctransport.UploadEntitiesResult, error) {
	batch := make([]hash.Hash32, 0, len(entities))
	for h := range entities {
		batch = append(batch, h)
	}
	f.uploadCalls = append(f.uploadCalls, batch)

	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func h(seed byte) hash.Hash32 {
	var out hash.Hash32
	out[0] = seed
	return out
}

func TestRun_SuccessOnFirstBatch(t *testing.T) {
	a, b := h(1), h(2)
	store := &fakeStore{entities: map[hash.Hash32]entity.Entity{
		a: {Kind: entity.KindBytes, Body: []byte("a")},
		b: {Kind: entity.KindBytes, Body: []byte("b")},
	}}
	transport := &fakeTransport{responses: []*synctransport.UploadEntitiesResult{
		{Type: synctransport.UploadEntitiesSuccess},
	}}

	var progressCalls [][2]int
	err := Run(context.Background(), store, transport, "repo",
		map[hash.Hash32]struct{}{a: {}, b: {}},
		func(uploaded, remaining int) { progressCalls = append(progressCalls, [2]int{uploaded, remaining}) },
	)

	require.NoError(t, err)
	require.Len(t, transport.uploadCalls, 1)
	require.Equal(t, [][2]int{{2, 0}}, progressCalls)
}

func TestRun_NeedDependenciesExpandsResidualSet(t *testing.T) {
	a, dep := h(1), h(2)
	store := &fakeStore{entities: map[hash.Hash32]entity.Entity{
		a:   {Kind: entity.KindBytes, Body: []byte("a")},
		dep: {Kind: entity.KindBytes, Body: []byte("dep")},
	}}
	transport := &fakeTransport{responses: []*synctransport.UploadEntitiesResult{
		{Type: synctransport.UploadEntitiesNeedDependencies, NeedDependencies: []hash.Hash32{dep}},
		{Type: synctransport.UploadEntitiesSuccess},
	}}

	err := Run(context.Background(), store, transport, "repo",
		map[hash.Hash32]struct{}{a: {}}, nil)

	require.NoError(t, err)
	require.Len(t, transport.uploadCalls, 2)
}

func TestRun_NoWritePermission(t *testing.T) {
	a := h(1)
	store := &fakeStore{entities: map[hash.Hash32]entity.Entity{a: {Kind: entity.KindBytes}}}
	transport := &fakeTransport{responses: []*synctransport.UploadEntitiesResult{
		{Type: synctransport.UploadEntitiesNoWritePermission, RepoName: "repo"},
	}}

	err := Run(context.Background(), store, transport, "repo", map[hash.Hash32]struct{}{a: {}}, nil)

	var permErr *PermissionError
	require.ErrorAs(t, err, &permErr)
	require.Equal(t, "repo", permErr.RepoName)
}

func TestRun_HashMismatchForEntity(t *testing.T) {
	a := h(1)
	store := &fakeStore{entities: map[hash.Hash32]entity.Entity{a: {Kind: entity.KindBytes}}}
	transport := &fakeTransport{responses: []*synctransport.UploadEntitiesResult{
		{Type: synctransport.UploadEntitiesHashMismatchForEntity, Mismatched: &a},
	}}

	err := Run(context.Background(), store, transport, "repo", map[hash.Hash32]struct{}{a: {}}, nil)

	var mismatchErr *MismatchError
	require.ErrorAs(t, err, &mismatchErr)
	require.Equal(t, a, mismatchErr.Hash)
}

func TestRun_EmptyMissingSetIsNoOp(t *testing.T) {
	store := &fakeStore{}
	transport := &fakeTransport{}

	err := Run(context.Background(), store, transport, "repo", map[hash.Hash32]struct{}{}, nil)

	require.NoError(t, err)
	require.Empty(t, transport.uploadCalls)
}
