package enroll

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

// MaxUploadImages is the largest image batch the enroll endpoint accepts.
const MaxUploadImages = 5

// Identity is the enrollment record created ahead of the image upload.
type Identity struct {
	ID          string `json:"id"`
	PersonLabel string `json:"person_label"`
	Status      string `json:"status"`
}

// Client talks to the enrollment endpoints of the backend collaborator.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	now     func() time.Time
}

// NewClient returns an enrollment client for the given service base URL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// CreateIdentity registers the person record with initial status "pending".
// The returned identity id keys the subsequent image upload.
func (c *Client) CreateIdentity(ctx context.Context, personLabel string) (*Identity, error) {
	payload, err := json.Marshal(map[string]string{
		"person_label": personLabel,
		"status":       "pending",
	})
	if err != nil {
		return nil, errors.Wrap(err, "enroll: encode identity")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/identities", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "enroll: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "enroll: create identity")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, errors.Errorf("enroll: create identity: status %d", resp.StatusCode)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, errors.Wrap(err, "enroll: decode identity")
	}
	return &identity, nil
}

// UploadImages posts 1 to MaxUploadImages reference photographs for the
// identity. Upload filenames follow the captured-file naming convention.
func (c *Client) UploadImages(ctx context.Context, identityID, personLabel string, images [][]byte) error {
	if len(images) == 0 || len(images) > MaxUploadImages {
		return errors.Errorf("enroll: expected 1-%d images, got %d", MaxUploadImages, len(images))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	ts := c.now()
	for i, img := range images {
		// Offset successive timestamps so filenames stay unique within a batch.
		name := Filename(personLabel, ts.Add(time.Duration(i)*time.Millisecond))
		part, err := mw.CreateFormFile("images", name)
		if err != nil {
			return errors.Wrap(err, "enroll: build form")
		}
		if _, err := part.Write(img); err != nil {
			return errors.Wrap(err, "enroll: write image")
		}
	}
	if err := mw.Close(); err != nil {
		return errors.Wrap(err, "enroll: close form")
	}

	url := fmt.Sprintf("%s/api/identities/%s/enroll", c.baseURL, identityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return errors.Wrap(err, "enroll: build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "enroll: upload images")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("enroll: upload images: status %d", resp.StatusCode)
	}
	return nil
}

// Submit runs the full enrollment handoff: create the identity record, then
// upload the wizard's artifacts. On failure the caller keeps the artifacts
// and returns the user to the naming step instead of discarding them.
func (c *Client) Submit(ctx context.Context, personLabel string, artifacts []Artifact) (*Identity, error) {
	identity, err := c.CreateIdentity(ctx, personLabel)
	if err != nil {
		return nil, err
	}
	images := make([][]byte, len(artifacts))
	for i, a := range artifacts {
		images[i] = a.Data
	}
	if err := c.UploadImages(ctx, identity.ID, personLabel, images); err != nil {
		return identity, err
	}
	return identity, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
