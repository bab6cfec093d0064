package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// OpenStream connects to the server-push endpoint and returns the raw event
// stream. A 401 or 403 tears the session down and is not worth retrying.
func (c *Client) OpenStream(ctx context.Context) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/stream", nil)
	if err != nil {
		return nil, err
	}
	creds, token, err := c.authorize(req)
	if err != nil {
		return nil, err
	}
	if c.config.StreamTokenInQuery {
		q := req.URL.Query()
		q.Set("token", token)
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "failed to connect to stream", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if isRejection(resp.StatusCode) {
			return nil, rejected(creds, token, resp.StatusCode, body)
		}
		return nil, statusError(resp.StatusCode, body)
	}
	return resp.Body, nil
}

// StreamURL returns the endpoint OpenStream connects to, without credentials
func (c *Client) StreamURL() string {
	u, err := url.Parse(c.config.BaseURL + "/stream")
	if err != nil {
		return c.config.BaseURL + "/stream"
	}
	return u.String()
}
