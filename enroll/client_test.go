package enroll

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilenameConvention(t *testing.T) {
	ts := time.UnixMilli(1756296000000)

	assert.Equal(t, "Ada_Lovelace_1756296000000.jpg", Filename("Ada Lovelace", ts))
	assert.Equal(t, "Grace_Hopper_1756296000000.jpg", Filename("Grace \t Hopper", ts))
	assert.Equal(t, "Linus_1756296000000.jpg", Filename("Linus", ts))
}

func TestSubmitCreatesIdentityThenUploads(t *testing.T) {
	fixed := time.UnixMilli(1756296000000)

	var createdLabel, createdStatus string
	var uploadPath string
	var uploadNames []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/identities":
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			createdLabel = payload["person_label"]
			createdStatus = payload["status"]
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": "id-42", "person_label": "Ada Lovelace", "status": "pending"}`))

		case r.Method == http.MethodPost && r.URL.Path == "/api/identities/id-42/enroll":
			uploadPath = r.URL.Path
			require.NoError(t, r.ParseMultipartForm(10<<20))
			for _, fh := range r.MultipartForm.File["images"] {
				uploadNames = append(uploadNames, fh.Filename)
			}
			w.WriteHeader(http.StatusOK)

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 5*time.Second)
	c.now = func() time.Time { return fixed }

	identity, err := c.Submit(context.Background(), "Ada Lovelace", []Artifact{
		{Pose: "forward", Data: []byte{1}},
		{Pose: "left", Data: []byte{2}},
		{Pose: "right", Data: []byte{3}},
	})
	require.NoError(t, err)

	assert.Equal(t, "id-42", identity.ID)
	assert.Equal(t, "Ada Lovelace", createdLabel)
	assert.Equal(t, "pending", createdStatus)
	assert.Equal(t, "/api/identities/id-42/enroll", uploadPath)

	// Timestamps are offset per image so batch filenames stay unique.
	assert.Equal(t, []string{
		"Ada_Lovelace_1756296000000.jpg",
		"Ada_Lovelace_1756296000001.jpg",
		"Ada_Lovelace_1756296000002.jpg",
	}, uploadNames)
}

// TestSubmitUploadFailureReturnsIdentity: the identity record survives a
// failed upload, so the caller can retry without re-creating it.
func TestSubmitUploadFailureReturnsIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/identities" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": "id-7", "person_label": "X", "status": "pending"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	identity, err := c.Submit(context.Background(), "X", []Artifact{{Data: []byte{1}}})
	require.Error(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "id-7", identity.ID)
}

func TestUploadImagesBatchBounds(t *testing.T) {
	c := NewClient("http://unused", "", time.Second)

	err := c.UploadImages(context.Background(), "id", "X", nil)
	assert.Error(t, err)

	tooMany := make([][]byte, MaxUploadImages+1)
	for i := range tooMany {
		tooMany[i] = []byte{byte(i)}
	}
	err = c.UploadImages(context.Background(), "id", "X", tooMany)
	assert.Error(t, err)
}

func TestCreateIdentityRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.CreateIdentity(context.Background(), "X")
	assert.Error(t, err)
}
