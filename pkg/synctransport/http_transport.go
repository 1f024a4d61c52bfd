package synctransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/i5heu/sharesync/pkg/entity"
	"github.com/i5heu/sharesync/pkg/hash"
)

// HTTPTransport is the concrete Transport backed by the five `/sync`
// endpoints (spec.md §6). Response timeouts are disabled per spec.md
// §6: the client's Timeout is left at zero, so a slow server never
// times out on the client side and is the caller's problem to cancel
// via ctx. Failures to build the request, to complete the HTTP
// exchange, or to read the response body surface as UnreachableService.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	header  http.Header
}

// NewHTTPTransport builds a transport against baseURL (no trailing
// slash), sending header on every request (typically an Authorization
// bearer token).
func NewHTTPTransport(baseURL string, header http.Header) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 0},
		header:  header,
	}
}

func (t *HTTPTransport) endpoint(name string) string {
	return t.baseURL + "/sync/" + name
}

// post marshals req, issues the call, and unmarshals into resp. Any
// non-2xx status is classified per classifyStatus; any error before a
// status is read surfaces as UnreachableService.
func (t *HTTPTransport) post(ctx context.Context, endpoint string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("synctransport: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Kind: UnreachableService, Detail: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range t.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return &TransportError{Kind: UnreachableService, Detail: err.Error()}
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &TransportError{Kind: UnreachableService, Detail: err.Error()}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return classifyStatus(httpResp.StatusCode, rawBody)
	}

	if err := json.Unmarshal(rawBody, resp); err != nil {
		return &TransportError{Kind: InvalidResponse, Detail: string(rawBody)}
	}
	return nil
}

func (t *HTTPTransport) GetCausalHashByPath(ctx context.Context, path Path) (*GetCausalHashByPathResult, error) {
	var result GetCausalHashByPathResult
	if err := t.post(ctx, t.endpoint("getCausalHashByPath"), path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *HTTPTransport) UpdatePath(ctx context.Context, req UpdatePathRequest) (*UpdatePathResult, error) {
	var result UpdatePathResult
	if err := t.post(ctx, t.endpoint("updatePath"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *HTTPTransport) FastForwardPath(ctx context.Context, req FastForwardPathRequest) (*FastForwardPathResult, error) {
	var result FastForwardPathResult
	if err := t.post(ctx, t.endpoint("fastForwardPath"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type downloadEntitiesRequest struct {
	RepoName string         `json:"repoName"`
	Hashes   []hash.HashJWT `json:"hashes"`
}

type downloadEntitiesResponse struct {
	Type     string                   `json:"type"`
	Entities map[string]entity.Entity `json:"entities,omitempty"`
}

func (t *HTTPTransport) DownloadEntities(ctx context.Context, repoName string, hashes []hash.HashJWT) (map[hash.Hash32]entity.Entity, error) {
	var result downloadEntitiesResponse
	req := downloadEntitiesRequest{RepoName: repoName, Hashes: hashes}
	if err := t.post(ctx, t.endpoint("downloadEntities"), req, &result); err != nil {
		return nil, err
	}

	out := make(map[hash.Hash32]entity.Entity, len(result.Entities))
	for k, v := range result.Entities {
		h, err := hash.Parse(k)
		if err != nil {
			return nil, &TransportError{Kind: InvalidResponse, Detail: err.Error()}
		}
		out[h] = v
	}
	return out, nil
}

type uploadEntitiesRequest struct {
	RepoName string                   `json:"repoName"`
	Entities map[string]entity.Entity `json:"entities"`
}

func (t *HTTPTransport) UploadEntities(ctx context.Context, repoName string, entities map[hash.Hash32]entity.Entity) (*UploadEntitiesResult, error) {
	byHex := make(map[string]entity.Entity, len(entities))
	for h, e := range entities {
		byHex[h.String()] = e
	}

	var result UploadEntitiesResult
	req := uploadEntitiesRequest{RepoName: repoName, Entities: byHex}
	if err := t.post(ctx, t.endpoint("uploadEntities"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

var _ Transport = (*HTTPTransport)(nil)
