// Package notify provides the notification channels behind the hub:
// SendGrid email, Pushover, Pushbullet, a message broker and the log.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

func defaultClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

func postJSON(ctx context.Context, client *http.Client, u string, payload any, header http.Header) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for key, vs := range header {
		req.Header[key] = vs
	}
	req.Header.Set("Content-Type", "application/json")
	return do(client, req)
}

func postForm(ctx context.Context, client *http.Client, u string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(client, req)
}

func do(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return responseError(resp)
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("notification failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
}
