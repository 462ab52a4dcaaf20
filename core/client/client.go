// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy and fast in-process access to the admin API

Instead of marshalling HTTP, the client talks directly to the mux router. The client
is the tool of choice for unit tests. With NewWithURL it talks to a remote service
instead.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/access"
)

// Client provides easy access to the REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	token      string
	creds      *access.Credentials
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the mux router
//
// WithCredentials() adds credentials to the request context.
// WithContext() specifies a different base context all together.
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend
//
// WithToken adds an authorization token to the request header.
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		if k != key {
			headers[k] = v
		}
	}
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client which sends token as bearer token
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithCredentials returns a new client with specific credentials
// (this works only directly against the mux router, for a normal client
//
//	use WithToken())
func (c Client) WithCredentials(creds *access.Credentials) Client {
	c.creds = creds
	return c
}

// WithRole returns a new client with credentials of role
// (this works only directly against the mux router, for a normal client
//
//	use WithToken())
func (c Client) WithRole(role string) Client {
	return c.WithCredentials(&access.Credentials{ID: "test", Role: role})
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context of the client
func (c Client) Context() context.Context {
	ctx := c.ctx
	if c.ctx == nil {
		ctx = context.Background()
	}
	if c.creds != nil {
		ctx = c.creds.ContextWithCredentials(ctx)
	}
	return ctx
}

// do sends one request and returns status and body of the response
func (c Client) do(method, path, contentType string, body io.Reader) (int, []byte, error) {
	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, body)
	if err != nil {
		return http.StatusBadRequest, nil, err
	}
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}

	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res := rec.Result()
		return res.StatusCode, rec.Body.Bytes(), nil
	}
	res, err := c.httpClient.Do(r)
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	return res.StatusCode, resBody, err
}

func decode(resBody []byte, result interface{}) error {
	if len(resBody) == 0 || result == nil {
		return nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = resBody
		return nil
	}
	return json.Unmarshal(resBody, result)
}

func expect(status int, resBody []byte, want ...int) error {
	for _, w := range want {
		if status == w {
			return nil
		}
	}
	return fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
		status, want, strings.TrimSpace(string(resBody)))
}

// RawGet gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// The path can be extend with query strings.
//
// result can be map[string]interface{} or a raw *[]byte.
// result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, resBody, err := c.do(http.MethodGet, path, "", nil)
	if err != nil {
		return status, err
	}
	if err = expect(status, resBody, http.StatusOK, http.StatusNoContent); err != nil {
		return status, err
	}
	return status, decode(resBody, result)
}

// RawPost posts body to path. Expects http.StatusOK or http.StatusCreated as response.
// body can be any JSON marshallable value or a raw []byte.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	return c.send(http.MethodPost, path, body, result)
}

// RawPatch patches the resource at path. Expects http.StatusOK as response.
func (c Client) RawPatch(path string, body interface{}, result interface{}) (int, error) {
	return c.send(http.MethodPatch, path, body, result)
}

func (c Client) send(method, path string, body interface{}, result interface{}) (int, error) {
	j, ok := body.([]byte)
	if !ok {
		var err error
		j, err = json.Marshal(body)
		if err != nil {
			return http.StatusBadRequest, err
		}
	}
	status, resBody, err := c.do(method, path, "application/json", bytes.NewReader(j))
	if err != nil {
		return status, err
	}
	if err = expect(status, resBody, http.StatusOK, http.StatusCreated); err != nil {
		return status, err
	}
	return status, decode(resBody, result)
}

// RawDelete deletes the resource at path. Expects http.StatusNoContent as response, otherwise it will
// flag an error.
//
// Returns the actual http status code.
func (c Client) RawDelete(path string) (int, error) {
	status, resBody, err := c.do(http.MethodDelete, path, "", nil)
	if err != nil {
		return status, err
	}
	return status, expect(status, resBody, http.StatusNoContent)
}

// FormFile is one file part of a multipart form
type FormFile struct {
	Filename string
	Data     []byte
}

// PostMultipart posts values and files as multipart form to path. Expects
// http.StatusCreated as response.
func (c Client) PostMultipart(path string, values map[string]string, files map[string]FormFile, result interface{}) (status int, err error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for key, value := range values {
		if err = w.WriteField(key, value); err != nil {
			return
		}
	}
	for key, file := range files {
		var fw io.Writer
		if fw, err = w.CreateFormFile(key, file.Filename); err != nil {
			return
		}
		if _, err = fw.Write(file.Data); err != nil {
			return
		}
	}
	w.Close()

	status, resBody, err := c.do(http.MethodPost, path, w.FormDataContentType(), &b)
	if err != nil {
		return status, err
	}
	if err = expect(status, resBody, http.StatusCreated); err != nil {
		return status, err
	}
	return status, decode(resBody, result)
}

// Entity represents the routes of one served entity
type Entity struct {
	client *Client
	name   string
}

// Entity returns a new entity client for the collection name
func (c Client) Entity(name string) Entity {
	return Entity{client: &c, name: name}
}

// Path returns the path of the entity
func (e Entity) Path() string {
	return "/admin/" + e.name
}

// List reads one page of entities into result
func (e Entity) List(page int, result interface{}) (int, error) {
	return e.client.RawGet(e.Path()+"_list?page="+strconv.Itoa(page), result)
}

// Head reads the description of the entity for operation into result. The empty
// operation describes the entity in general.
func (e Entity) Head(operation core.Operation, result interface{}) (int, error) {
	path := e.Path()
	if operation != "" {
		path += "?type=" + string(operation)
	}
	return e.client.RawGet(path, result)
}

// Create creates a new entity
func (e Entity) Create(body interface{}, result interface{}) (int, error) {
	return e.client.RawPost(e.Path(), body, result)
}

// Upload creates a new entity from a multipart form
func (e Entity) Upload(values map[string]string, files map[string]FormFile, result interface{}) (int, error) {
	return e.client.PostMultipart(e.Path()+"/upload", values, files, result)
}

// Read reads the entity with identity id
func (e Entity) Read(id string, result interface{}) (int, error) {
	return e.client.RawGet(e.Path()+"/"+id, result)
}

// Update updates the entity with identity id
func (e Entity) Update(id string, body interface{}, result interface{}) (int, error) {
	return e.client.RawPatch(e.Path()+"/"+id, body, result)
}

// Delete deletes the entity with identity id
func (e Entity) Delete(id string) (int, error) {
	return e.client.RawDelete(e.Path() + "/" + id)
}

// Login logs in with username and password and returns the token. Failed
// logins return the error code as error.
func (c Client) Login(username, password string) (string, error) {
	var response struct {
		Token string `json:"token"`
		Error string `json:"error"`
		Msg   string `json:"msg"`
	}
	body := map[string]string{"username": username, "password": password}
	if _, err := c.RawPost("/admin/_login", body, &response); err != nil {
		return "", err
	}
	if response.Error != "" {
		return "", fmt.Errorf("login failed with %s: %s", response.Error, response.Msg)
	}
	return response.Token, nil
}
