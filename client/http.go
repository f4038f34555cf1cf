package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// httpGet performs a GET request and decodes the JSON response.
func (c *Client) httpGet(path string, result any) error {
	url := c.baseURL + path

	resp, err := c.http.Get(url)
	if err != nil {
		return fmt.Errorf("GET %s:\n%w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError("GET", url, resp)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// httpPostJSON performs a POST request with a JSON body and decodes the
// JSON response when result is non-nil.
func (c *Client) httpPostJSON(path string, body any, result any) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal body:\n%w", err)
		}
	}

	resp, err := c.http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("POST %s:\n%w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return statusError("POST", url, resp)
	}

	if result == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// statusError turns a non-success reply into an error, using the server's
// error message when it sent one.
func statusError(method, url string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}

	if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, body.Error)
	}

	return fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
}
