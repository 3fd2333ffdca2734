// Package client is the Go SDK of the gallery API: identity resolution and account
// claiming, the grading permission engine and grading mutations, sessions and
// role dashboards. The server stays authoritative; checks made here only decide
// what to show and what never needs to reach the network.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/proyek"
	"github.com/smkgaleri/galeri/core/user"
)

type (
	envelope[T any] struct {
		Success bool   `json:"success"`
		Data    T      `json:"data"`
		Message string `json:"message"`
	}

	authEnvelope struct {
		Success bool      `json:"success"`
		Token   string    `json:"token"`
		User    user.User `json:"user"`
		Message string    `json:"message"`
	}

	errorEnvelope struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
)

type Client struct {
	baseURL string
	http    *http.Client
	session *Session
	cache   *cache
	logger  core.Logger
}

type Option func(c *Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(conf core.ClientConfig, session *Session, logger core.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(conf.BaseURL, "/"),
		http:    &http.Client{Timeout: conf.Timeout},
		session: session,
		cache:   newCache(conf.CacheTTL),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session { return c.session }

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Kind: KindTransient, Message: "the server could not be reached, please try again", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.apiError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Kind: KindServer, Status: resp.StatusCode, Message: "unreadable response", Err: err}
	}
	return nil
}

func (c *Client) apiError(resp *http.Response) error {
	var env errorEnvelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	if env.Message == "" {
		env.Message = http.StatusText(resp.StatusCode)
	}
	apiErr := &APIError{
		Kind:    kindOf(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: env.Message,
		Fields:  env.Errors,
	}

	if apiErr.Kind == KindUnauthenticated {
		apiErr.Err = ErrUnauthenticated
		if c.session.IsAuthenticated() {
			if err := c.session.Teardown(); err != nil && c.logger != nil {
				c.logger.Error(fmt.Sprintf("tearing down session: %v", err), err)
			}
			c.cache.invalidate()
		}
	}
	return apiErr
}

// getCached GETs path through the cache; key is derived from path and query.
func getCached[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	key := path
	if len(query) > 0 {
		key += "?" + query.Encode()
	}
	v, err := c.cache.fetch(ctx, key, func(fetchCtx context.Context) (interface{}, error) {
		var env envelope[T]
		if err := c.do(fetchCtx, http.MethodGet, path, query, nil, &env); err != nil {
			return nil, err
		}
		return env.Data, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func send[T any](ctx context.Context, c *Client, method, path string, body interface{}) (T, error) {
	var env envelope[T]
	err := c.do(ctx, method, path, nil, body, &env)
	return env.Data, err
}

// Login authenticates with an email, NIS or NIP and starts the session.
func (c *Client) Login(ctx context.Context, login, password string) (user.User, error) {
	var env authEnvelope
	body := map[string]string{"login": login, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &env); err != nil {
		return user.User{}, err
	}
	c.cache.invalidate()
	return env.User, c.session.Start(env.Token, env.User)
}

func (c *Client) Logout() error {
	c.cache.invalidate()
	return c.session.Teardown()
}

// Me loads the user behind the hydrated token.
func (c *Client) Me(ctx context.Context) (user.User, error) {
	if !c.session.IsAuthenticated() {
		return user.User{}, &APIError{Kind: KindUnauthenticated, Message: ErrUnauthenticated.Error(), Err: ErrUnauthenticated}
	}
	usr, err := send[user.User](ctx, c, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return user.User{}, err
	}
	c.session.setUser(usr)
	return usr, nil
}

func (c *Client) GetProyek(ctx context.Context, id string) (proyek.Proyek, error) {
	return getCached[proyek.Proyek](ctx, c, "/proyeks/"+url.PathEscape(id), nil)
}

type ProyekQuery struct {
	JurusanID string
	UserID    string
	Status    proyek.Status
	Search    string
	Ordering  string
}

func (q ProyekQuery) values() url.Values {
	v := make(url.Values)
	for key, val := range map[string]string{
		"jurusan_id": q.JurusanID,
		"user_id":    q.UserID,
		"status":     string(q.Status),
		"search":     q.Search,
		"ordering":   q.Ordering,
	} {
		if val != "" {
			v.Set(key, val)
		}
	}
	return v
}

func (c *Client) ListProyeks(ctx context.Context, q ProyekQuery) ([]proyek.Proyek, error) {
	return getCached[[]proyek.Proyek](ctx, c, "/proyeks", q.values())
}

func (c *Client) ProyekStats(ctx context.Context) ([]proyek.Stat, error) {
	return getCached[[]proyek.Stat](ctx, c, "/proyeks/stats", nil)
}
