package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/AzielCF/az-collab/collab/domain/identity"
	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"github.com/valyala/fasthttp"
)

// RemoteIdentityRepository reads the directory of a collab server over its
// REST API. It is read-only from the client's point of view except for Save,
// used to register the local identity.
type RemoteIdentityRepository struct {
	baseURL string
	client  *fasthttp.Client
}

func NewRemoteIdentityRepository(baseURL string) *RemoteIdentityRepository {
	return &RemoteIdentityRepository{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &fasthttp.Client{
			Name:                "az-collab",
			ReadTimeout:         5 * time.Second,
			WriteTimeout:        5 * time.Second,
			MaxIdleConnDuration: 30 * time.Second,
		},
	}
}

// identityListResponse mirrors utils.ResponseData with a typed Results field.
type identityListResponse struct {
	Status  int                 `json:"status"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Results []identity.Identity `json:"results"`
}

type identityResponse struct {
	Status  int               `json:"status"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Results identity.Identity `json:"results"`
}

func (r *RemoteIdentityRepository) Get(ctx context.Context, id string) (*identity.Identity, error) {
	var resp identityResponse
	status, err := r.do(ctx, fasthttp.MethodGet, "/api/identities/"+url.PathEscape(id), nil, &resp)
	if err != nil {
		return nil, err
	}
	if status == fasthttp.StatusNotFound {
		return nil, pkgError.NotFoundError(fmt.Sprintf("identity %s not found", id))
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("identity lookup failed: %d %s", status, resp.Message)
	}
	return &resp.Results, nil
}

func (r *RemoteIdentityRepository) List(ctx context.Context) ([]identity.Identity, error) {
	var resp identityListResponse
	status, err := r.do(ctx, fasthttp.MethodGet, "/api/identities", nil, &resp)
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("identity list failed: %d %s", status, resp.Message)
	}
	return resp.Results, nil
}

func (r *RemoteIdentityRepository) Save(ctx context.Context, ident *identity.Identity) error {
	body, err := json.Marshal(identity.CreateIdentityRequest{ID: ident.ID, DisplayName: ident.DisplayName})
	if err != nil {
		return err
	}
	var resp identityResponse
	status, err := r.do(ctx, fasthttp.MethodPost, "/api/identities", body, &resp)
	if err != nil {
		return err
	}
	if status != fasthttp.StatusOK && status != fasthttp.StatusCreated {
		return fmt.Errorf("identity registration failed: %d %s", status, resp.Message)
	}
	return nil
}

func (r *RemoteIdentityRepository) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(body)
	}

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return 0, ctx.Err()
		}
	}
	if err := r.client.DoTimeout(req, resp, timeout); err != nil {
		return 0, pkgError.TransportError(fmt.Sprintf("%s %s: %v", method, path, err))
	}

	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil && resp.StatusCode() < 400 {
			return resp.StatusCode(), fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode(), nil
}
