package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrUnauthorized indicates the service rejected the credential (HTTP
	// 401). Unlike transient failures, this must stop the polling loop and
	// surface a re-authentication prompt.
	ErrUnauthorized = errors.New("detect: unauthorized")
	// ErrRequestFailed covers every other submission failure: transport
	// errors and non-2xx statuses alike. Polling swallows these per tick.
	ErrRequestFailed = errors.New("detect: request failed")
)

// Client submits frames to the external detection service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a detection client for the given service base URL. The
// token, when non-empty, is sent as a bearer credential.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Detect submits one JPEG frame together with the logical camera identifier
// and returns the parsed detection list. An empty list is a successful
// response, not an error.
func (c *Client) Detect(ctx context.Context, image []byte, cameraID string) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("image", "frame.jpg")
	if err != nil {
		return nil, errors.Wrap(err, "detect: build form")
	}
	if _, err := part.Write(image); err != nil {
		return nil, errors.Wrap(err, "detect: write image")
	}
	if err := mw.WriteField("camera_id", cameraID); err != nil {
		return nil, errors.Wrap(err, "detect: write camera_id")
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "detect: close form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/faces/detect", &body)
	if err != nil {
		return nil, errors.Wrap(err, "detect: build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrRequestFailed, "submit: %v", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrapf(ErrRequestFailed, "decode response: %v", err)
	}
	return &result, nil
}

// classifyStatus is the named failure policy: only 401 escalates, every other
// non-2xx status is a swallowable request failure.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return errors.Wrap(ErrRequestFailed, fmt.Sprintf("status %d", status))
	}
}
