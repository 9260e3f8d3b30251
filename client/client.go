package client

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/nicolagi/pathkv/server"
	"github.com/nicolagi/pathkv/storage"
)

type options struct {
	httpClient *http.Client
}

type Option func(*options)

func WithHTTPClient(value *http.Client) Option {
	return func(o *options) {
		o.httpClient = value
	}
}

// Client talks to a key-value server over HTTP.
type Client struct {
	opts    options
	address string
}

func New(address string, opts ...Option) *Client {
	c := &Client{address: address}
	c.opts.httpClient = http.DefaultClient
	for _, o := range opts {
		o(&c.opts)
	}
	return c
}

// Put stores value at key and returns the value it replaced, if any.
func (c *Client) Put(key string, value []byte) (previous []byte, replaced bool, err error) {
	response, err := c.opts.httpClient.Post(c.urlFor(key), "text/plain; charset=utf-8", bytes.NewReader(value))
	if response != nil && response.Body != nil {
		defer func() {
			_ = response.Body.Close()
		}()
	}
	if err != nil {
		return nil, false, err
	}
	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return nil, false, err
	}
	if response.StatusCode != http.StatusOK {
		return nil, false, statusError(response, body)
	}
	if response.Header.Get(server.ReplacedHeader) == "false" {
		return nil, false, nil
	}
	return body, true, nil
}

// Get returns the value at key, or an error wrapping storage.ErrNotFound.
func (c *Client) Get(key string) (value []byte, err error) {
	response, err := c.opts.httpClient.Get(c.urlFor(key))
	if response != nil && response.Body != nil {
		defer func() {
			_ = response.Body.Close()
		}()
	}
	if err != nil {
		return nil, err
	}
	if response.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%q: %w", key, storage.ErrNotFound)
	}
	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}
	if response.StatusCode != http.StatusOK {
		return nil, statusError(response, body)
	}
	return body, nil
}

func (c *Client) urlFor(key string) string {
	u := url.URL{
		Scheme: "http",
		Host:   c.address,
		Path:   "/" + key,
	}
	return u.String()
}

func statusError(response *http.Response, body []byte) error {
	if len(body) == 0 {
		return errors.New(response.Status)
	}
	return fmt.Errorf("%s: %s", response.Status, body)
}
