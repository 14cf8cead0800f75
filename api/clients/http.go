package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/nextdotid/sdk-go/api"
)

const userAgent = "NextID-SDK-Go/0.1.0"

// doJSON issues a request with a JSON body (or none) and decodes a JSON
// response into out (when out is non-nil). Statuses other than 200 and 201
// produce an *api.RemoteError; transport failures are wrapped and surfaced
// verbatim.
func doJSON(ctx context.Context, client *http.Client, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("could not build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return remoteError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse registry response: %w", err)
	}
	return nil
}

func remoteError(resp *http.Response) error {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		bodyBytes = nil
	}
	return &api.RemoteError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
}

// joinURL concatenates the server address, an API path and query parameters.
func joinURL(serverAddr, path string, query url.Values) string {
	full := fmt.Sprintf("%s/%s", serverAddr, path)
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full
}
