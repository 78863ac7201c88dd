// Package remote is the HTTP client for the event REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eventfinder/agent/internal/storage/models"
)

const eventsPath = "/api/event"

// Config holds the settings for talking to the event API.
type Config struct {
	// BaseURL is the API root, e.g. "https://events.example.com".
	BaseURL string

	// ImagesBaseURL is prefixed to remote-relative image paths.
	ImagesBaseURL string

	// Timeout applies to every API request.
	Timeout time.Duration

	// ProbeTimeout bounds the reachability check.
	ProbeTimeout time.Duration
}

// Client talks to the event API. It is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	probe      *http.Client
}

// NewClient creates a new event API client.
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 2 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		probe:      &http.Client{Timeout: config.ProbeTimeout},
	}
}

// eventPayload is the JSON body accepted by the update endpoint.
// The cache bookkeeping fields never leave the device.
type eventPayload struct {
	ID          *int64  `json:"id"`
	Name        string  `json:"name"`
	Date        string  `json:"date"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
	Image       *string `json:"image"`
}

func toPayload(e models.Event) eventPayload {
	return eventPayload{
		ID:          e.ID,
		Name:        e.Name,
		Date:        e.Date,
		Location:    e.Location,
		Description: e.Description,
		Image:       e.Image,
	}
}

func (p eventPayload) event() models.Event {
	return models.Event{
		ID:          p.ID,
		Name:        p.Name,
		Date:        p.Date,
		Location:    p.Location,
		Description: p.Description,
		Image:       p.Image,
	}
}

// IsReachable reports whether the API host answers at all. It never returns an error.
func (c *Client) IsReachable(ctx context.Context) bool {
	if c.config.BaseURL == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.config.BaseURL, nil)
	if err != nil {
		return false
	}

	resp, err := c.probe.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	// Any non-server-error status means there is a usable path to the API.
	return resp.StatusCode >= 200 && resp.StatusCode < 500
}

// ListEvents retrieves every event from the API.
func (c *Client) ListEvents(ctx context.Context) ([]models.Event, error) {
	req, err := c.newRequest(ctx, http.MethodGet, eventsPath, nil)
	if err != nil {
		return nil, err
	}

	var payload []eventPayload
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(payload))
	for _, p := range payload {
		events = append(events, p.event())
	}
	return events, nil
}

// CreateEvent submits a new event with its image as a multipart form.
// The server assigns the id of the returned event.
func (c *Client) CreateEvent(ctx context.Context, event models.Event, imagePath string) (models.Event, error) {
	body, contentType, err := encodeCreateForm(event, imagePath)
	if err != nil {
		return models.Event{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, eventsPath, body)
	if err != nil {
		return models.Event{}, err
	}
	req.Header.Set("Content-Type", contentType)

	var created eventPayload
	if err := c.do(req, &created); err != nil {
		return models.Event{}, err
	}
	return created.event(), nil
}

// UpdateEvent replaces the event with the given id and returns the server's copy.
func (c *Client) UpdateEvent(ctx context.Context, id int64, event models.Event) (models.Event, error) {
	data, err := json.Marshal(toPayload(event))
	if err != nil {
		return models.Event{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, fmt.Sprintf("%s/%d", eventsPath, id), bytes.NewReader(data))
	if err != nil {
		return models.Event{}, err
	}

	var updated eventPayload
	if err := c.do(req, &updated); err != nil {
		return models.Event{}, err
	}
	return updated.event(), nil
}

// DeleteEvent removes the event with the given id.
func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", eventsPath, id), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// ImageURL resolves a remote-relative image path against the images base URL.
func (c *Client) ImageURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(c.config.ImagesBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// newRequest creates a new HTTP request against the API.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// do executes req and decodes a JSON response into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", req.Method, req.URL.Path, ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w: %w", req.Method, req.URL.Path, ErrProtocol, err)
	}
	return nil
}

// encodeCreateForm builds the multipart body: one text part per field and the image as "File".
func encodeCreateForm(event models.Event, imagePath string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fields := []struct{ name, value string }{
		{"Name", event.Name},
		{"Description", event.Description},
		{"Location", event.Location},
		{"Date", event.Date},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("writing %s field: %w", f.name, err)
		}
	}

	if imagePath != "" {
		file, err := os.Open(imagePath)
		if err != nil {
			return nil, "", fmt.Errorf("opening image: %w", err)
		}
		defer file.Close()

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="File"; filename=%q`, filepath.Base(imagePath)))
		header.Set("Content-Type", "image/*")

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("creating image part: %w", err)
		}
		n, err := io.Copy(part, file)
		if err != nil {
			return nil, "", fmt.Errorf("copying image: %w", err)
		}
		log.Printf("Attached image %s (%d bytes)", filepath.Base(imagePath), n)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}

	return body, w.FormDataContentType(), nil
}
