package cloudflare

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKV mimics the subset of the Workers KV REST API the store uses.
type fakeKV struct {
	mu    sync.Mutex
	data  map[string]string
	token string
}

func (f *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"success":false,"errors":[{"code":10000,"message":"Authentication error"}]}`)
		return
	}

	const prefix = "/accounts/acc/storage/kv/namespaces/ns"
	path := r.URL.EscapedPath()
	if !strings.HasPrefix(path, prefix) {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case rest == "/keys" && r.Method == http.MethodGet:
		f.list(w, r)
	case strings.HasPrefix(rest, "/values/"):
		key, err := url.PathUnescape(strings.TrimPrefix(rest, "/values/"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch r.Method {
		case http.MethodGet:
			v, ok := f.data[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"success":false,"errors":[{"code":10009,"message":"get: 'key not found'"}]}`)
				return
			}
			_, _ = io.WriteString(w, v)
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			f.data[key] = string(b)
			_, _ = io.WriteString(w, `{"success":true,"errors":[],"messages":[],"result":null}`)
		case http.MethodDelete:
			delete(f.data, key)
			_, _ = io.WriteString(w, `{"success":true,"errors":[],"messages":[],"result":null}`)
		}
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeKV) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	start, _ := strconv.Atoi(r.URL.Query().Get("cursor"))

	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	end := start + limit
	next := ""
	if end < len(keys) {
		next = strconv.Itoa(end)
	} else {
		end = len(keys)
	}

	type name struct {
		Name string `json:"name"`
	}
	result := make([]name, 0, end-start)
	for _, k := range keys[start:end] {
		result = append(result, name{Name: k})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"errors":      []any{},
		"result":      result,
		"result_info": map[string]any{"count": len(result), "cursor": next},
	})
}

func newTestStore(t *testing.T) (*Store, *fakeKV) {
	t.Helper()
	fake := &fakeKV{data: map[string]string{}, token: "secret"}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s := New(srv.URL, "acc", "ns", "secret", 10)
	t.Cleanup(func() { s.Close() })
	return s, fake
}

func TestCloudflareStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)

	_, found, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, "abc", `{"targetUrl":"https://example.com"}`))
	require.NoError(t, s.Put(ctx, "stats:abc", `{"visits":[]}`))
	require.NoError(t, s.Put(ctx, "nested/path", "v"))

	v, found, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"targetUrl":"https://example.com"}`, v)

	v, found, err = s.Get(ctx, "nested/path")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
	assert.Contains(t, fake.data, "nested/path")

	require.NoError(t, s.Delete(ctx, "abc"))
	require.NoError(t, s.Delete(ctx, "abc"))
	_, found, err = s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCloudflareStoreList(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)
	for i := 0; i < 25; i++ {
		fake.data["k"+strconv.Itoa(100+i)] = "v"
	}

	var all []string
	calls := 0
	cursor := ""
	for {
		res, err := s.List(ctx, cursor)
		require.NoError(t, err)
		calls++
		all = append(all, res.Keys...)
		if res.Complete {
			break
		}
		cursor = res.Cursor
	}

	assert.Equal(t, 3, calls)
	assert.Len(t, all, 25)
	assert.Equal(t, "k100", all[0])
}

func TestCloudflareStoreAPIError(t *testing.T) {
	s, _ := newTestStore(t)
	s.token = "wrong"

	_, _, err := s.Get(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Authentication error")

	_, err = s.List(context.Background(), "")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		token   string
		wantErr bool
	}{
		{name: "valid", url: "cloudflare://acc/ns", token: "t"},
		{name: "missing namespace", url: "cloudflare://acc", token: "t", wantErr: true},
		{name: "missing token", url: "cloudflare://acc/ns", wantErr: true},
		{name: "extra segment", url: "cloudflare://acc/ns/x", token: "t", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.url, "", tt.token, 0)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultAPIURL+"/accounts/acc/storage/kv/namespaces/ns", s.endpoint)
		})
	}
}
