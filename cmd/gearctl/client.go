package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// client is a thin resty wrapper that turns non-2xx replies into errors
// carrying the server's "error" field.
type client struct {
	http *resty.Client
}

func newClient(api, apiKey string) *client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(api, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(90 * time.Second)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &client{http: c}
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *client) do(method, path string, query map[string]string, body interface{}) ([]byte, error) {
	req := c.http.R().SetError(&apiError{})
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
			if e.Message != "" {
				return nil, fmt.Errorf("%s (http %d): %s", e.Error, resp.StatusCode(), e.Message)
			}
			return nil, fmt.Errorf("%s (http %d)", e.Error, resp.StatusCode())
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return resp.Body(), nil
}

// printJSON indents a JSON body for the terminal.
func printJSON(out io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, err = out.Write(data)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}
