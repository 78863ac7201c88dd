package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfinder/agent/internal/storage/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:       srv.URL,
		ImagesBaseURL: srv.URL + "/images",
		Timeout:       5 * time.Second,
	})
}

func TestClient_ListEvents(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/event", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id": 1, "name": "Gala", "date": "2025-06-01", "location": "Hall", "description": "Formal", "image": "uploads/gala.jpg"},
			{"id": 2, "name": "Picnic", "date": "2025-07-01", "location": "Park", "description": "Casual", "image": null}
		]`)
	}))

	events, err := client.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, int64(1), *events[0].ID)
	assert.Equal(t, "Gala", events[0].Name)
	require.NotNil(t, events[0].Image)
	assert.Equal(t, "uploads/gala.jpg", *events[0].Image)
	assert.Nil(t, events[1].Image)
	assert.False(t, events[1].IsFromCache)
}

func TestClient_CreateEventMultipart(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "Gala", r.FormValue("Name"))
		assert.Equal(t, "Formal", r.FormValue("Description"))
		assert.Equal(t, "Hall", r.FormValue("Location"))
		assert.Equal(t, "2025-06-01", r.FormValue("Date"))

		file, header, err := r.FormFile("File")
		if !assert.NoError(t, err) {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "jpeg-bytes", string(data))
		assert.Equal(t, "image_test.jpg", header.Filename)
		assert.Equal(t, "image/*", header.Header.Get("Content-Type"))

		json.NewEncoder(w).Encode(map[string]any{
			"id": 42, "name": "Gala", "date": "2025-06-01", "location": "Hall",
			"description": "Formal", "image": "uploads/42.jpg",
		})
	}))

	imagePath := filepath.Join(t.TempDir(), "image_test.jpg")
	require.NoError(t, os.WriteFile(imagePath, []byte("jpeg-bytes"), 0o600))

	created, err := client.CreateEvent(context.Background(), models.Event{
		Name: "Gala", Description: "Formal", Location: "Hall", Date: "2025-06-01",
	}, imagePath)
	require.NoError(t, err)
	require.NotNil(t, created.ID)
	assert.Equal(t, int64(42), *created.ID)
	assert.Equal(t, "uploads/42.jpg", *created.Image)
}

func TestClient_UpdateEventSendsJSON(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/event/9", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Renamed", body["name"])
		assert.NotContains(t, body, "isFromCache")
		assert.NotContains(t, body, "lastSyncTimestamp")

		body["location"] = "Server side"
		json.NewEncoder(w).Encode(body)
	}))

	updated, err := client.UpdateEvent(context.Background(), 9, models.Event{
		ID: models.Int64(9), Name: "Renamed", Date: "2025-01-01", Location: "Hall", Description: "d",
		IsFromCache: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Server side", updated.Location)
	assert.Equal(t, int64(9), *updated.ID)
}

func TestClient_ErrorMapping(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/event/404":
			http.Error(w, "no such event", http.StatusNotFound)
		case "/api/event/500":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			io.WriteString(w, "not json")
		}
	}))
	ctx := context.Background()

	err := client.DeleteEvent(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrRejected)

	err = client.DeleteEvent(ctx, 500)
	assert.ErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Body)

	_, err = client.ListEvents(ctx)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestClient_IsReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	client := NewClient(Config{BaseURL: srv.URL})

	assert.True(t, client.IsReachable(context.Background()), "a 404 still proves connectivity")

	srv.Close()
	assert.False(t, client.IsReachable(context.Background()))

	_, err := client.ListEvents(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)

	assert.False(t, NewClient(Config{}).IsReachable(context.Background()))
}

func TestClient_ImageURL(t *testing.T) {
	client := NewClient(Config{ImagesBaseURL: "https://cdn.example.com/images/"})

	assert.Equal(t, "https://cdn.example.com/images/uploads/a.jpg", client.ImageURL("/uploads/a.jpg"))
	assert.Equal(t, "https://other.example.com/b.jpg", client.ImageURL("https://other.example.com/b.jpg"))
	assert.Equal(t, "", client.ImageURL(""))
}
