// Package client talks to the HTTP surface of the appsync controller.
package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/service"
)

// Client is a client of the controller at Server.
type Client struct {
	Server string
	HTTP   *http.Client
}

// New returns a Client for server whose requests time out after timeout.
func New(server string, timeout time.Duration) *Client {
	return &Client{
		Server: strings.TrimSuffix(server, "/"),
		HTTP:   &http.Client{Timeout: timeout},
	}
}

// List returns the status of every application.
func (c *Client) List(ctx context.Context) ([]v1alpha1.ApplicationSyncStatus, error) {
	list := &service.ApplicationList{}
	if err := c.do(ctx, http.MethodGet, service.ApplicationsPath, list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// Get returns the status of application name.
func (c *Client) Get(ctx context.Context, name string) (*v1alpha1.ApplicationSyncStatus, error) {
	st := &v1alpha1.ApplicationSyncStatus{}
	if err := c.do(ctx, http.MethodGet, service.ApplicationsPath+"/"+url.PathEscape(name), st); err != nil {
		return nil, err
	}
	return st, nil
}

// Sync requests a manual sync cycle of application name.
func (c *Client) Sync(ctx context.Context, name string) (*service.SyncResponse, error) {
	resp := &service.SyncResponse{}
	if err := c.do(ctx, http.MethodPost, service.ApplicationsPath+"/"+url.PathEscape(name)+"/sync", resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Error is a request the controller refused.
type Error struct {
	StatusCode int
	Message    string
	// Errors are the coded errors the controller reported, if any.
	Errors []v1alpha1.AppSyncError
}

// Error implements error.
func (e *Error) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	var msgs []string
	for _, err := range e.Errors {
		msgs = append(msgs, err.ErrorMessage)
	}
	return strings.Join(msgs, "\n")
}

func (c *Client) do(ctx context.Context, method, path string, into interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.Server+path, nil)
	if err != nil {
		return errors.Wrapf(err, "building request to %s", c.Server)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "contacting the appsync controller at %s", c.Server)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading response to %s %s", method, path)
	}

	if resp.StatusCode >= 300 {
		failure := service.ErrorResponse{}
		if jsonErr := json.Unmarshal(body, &failure); jsonErr != nil || failure.Error == "" {
			failure.Error = strings.TrimSpace(string(body))
		}
		return &Error{StatusCode: resp.StatusCode, Message: failure.Error, Errors: failure.Errors}
	}
	if err := json.Unmarshal(body, into); err != nil {
		return errors.Wrapf(err, "decoding response to %s %s", method, path)
	}
	return nil
}
