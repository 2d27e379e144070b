// Package cloudflare talks to a Workers KV namespace through the Cloudflare
// REST API.
package cloudflare

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

const (
	DefaultAPIURL  = "https://api.cloudflare.com/client/v4"
	defaultTimeout = 10 * time.Second
	maxListLimit   = 1000
	minListLimit   = 10
)

type Store struct {
	client    *fasthttp.Client
	endpoint  string
	token     string
	listLimit int
	timeout   time.Duration
}

// Open parses cloudflare://<account-id>/<namespace-id>.
func Open(storeURL, apiURL, token string, batchSize int) (*Store, error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	namespace := strings.Trim(u.Path, "/")
	if u.Scheme != "cloudflare" || u.Host == "" || namespace == "" || strings.Contains(namespace, "/") {
		return nil, fmt.Errorf("store url must look like cloudflare://<account>/<namespace>, got %q", storeURL)
	}
	if token == "" {
		return nil, fmt.Errorf("CLOUDFLARE_API_TOKEN is required for %s", storeURL)
	}
	return New(apiURL, u.Host, namespace, token, batchSize), nil
}

func New(apiURL, accountID, namespaceID, token string, batchSize int) *Store {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if batchSize > maxListLimit || batchSize <= 0 {
		batchSize = maxListLimit
	}
	if batchSize < minListLimit {
		batchSize = minListLimit
	}
	return &Store{
		client: &fasthttp.Client{
			Name:                   "kv-shortener",
			DisablePathNormalizing: true,
		},
		endpoint: fmt.Sprintf("%s/accounts/%s/storage/kv/namespaces/%s",
			strings.TrimRight(apiURL, "/"), url.PathEscape(accountID), url.PathEscape(namespaceID)),
		token:     token,
		listLimit: batchSize,
		timeout:   defaultTimeout,
	}
}

func (s *Store) valueURL(key string) string {
	return s.endpoint + "/values/" + url.PathEscape(key)
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	status, body, err := s.do(ctx, fasthttp.MethodGet, s.valueURL(key), nil)
	if err != nil {
		return "", false, err
	}
	switch status {
	case fasthttp.StatusOK:
		return string(body), true, nil
	case fasthttp.StatusNotFound:
		return "", false, nil
	default:
		return "", false, apiError("get", status, body)
	}
}

func (s *Store) Put(ctx context.Context, key, value string) error {
	status, body, err := s.do(ctx, fasthttp.MethodPut, s.valueURL(key), []byte(value))
	if err != nil {
		return err
	}
	if status != fasthttp.StatusOK {
		return apiError("put", status, body)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	status, body, err := s.do(ctx, fasthttp.MethodDelete, s.valueURL(key), nil)
	if err != nil {
		return err
	}
	if status != fasthttp.StatusOK && status != fasthttp.StatusNotFound {
		return apiError("delete", status, body)
	}
	return nil
}

// List returns one page of key names. Cloudflare signals the last page with
// an empty cursor.
func (s *Store) List(ctx context.Context, cursor string) (ports.ListResult, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(s.listLimit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	status, body, err := s.do(ctx, fasthttp.MethodGet, s.endpoint+"/keys?"+q.Encode(), nil)
	if err != nil {
		return ports.ListResult{}, err
	}
	if status != fasthttp.StatusOK || !gjson.GetBytes(body, "success").Bool() {
		return ports.ListResult{}, apiError("list", status, body)
	}

	names := gjson.GetBytes(body, "result.#.name").Array()
	keys := make([]string, 0, len(names))
	for _, n := range names {
		keys = append(keys, n.String())
	}

	next := gjson.GetBytes(body, "result_info.cursor").String()
	return ports.ListResult{Keys: keys, Cursor: next, Complete: next == ""}, nil
}

func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) do(ctx context.Context, method, uri string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	req.URI().DisablePathNormalizing = true
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+s.token)
	if body != nil {
		req.Header.SetContentType("text/plain; charset=utf-8")
		req.SetBody(body)
	}

	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = s.client.DoDeadline(req, resp, deadline)
	} else {
		err = s.client.DoTimeout(req, resp, s.timeout)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("cloudflare %s: %w", method, err)
	}

	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}

func apiError(op string, status int, body []byte) error {
	msg := gjson.GetBytes(body, "errors.0.message").String()
	if msg == "" {
		msg = fasthttp.StatusMessage(status)
	}
	return fmt.Errorf("cloudflare %s: status %d: %s", op, status, msg)
}

var _ ports.KeyValueStore = (*Store)(nil)
