package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/eventfinder/agent/internal/api/middleware"
	"github.com/eventfinder/agent/internal/eventsync"
	"github.com/eventfinder/agent/internal/storage/models"
)

// maxUploadSize bounds multipart event submissions.
const maxUploadSize = 16 << 20

// EventService is the coordinator surface used by the event handlers.
type EventService interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
	GetEventByID(ctx context.Context, id int64) (models.Event, error)
	AddEvent(ctx context.Context, candidate models.Event, image eventsync.ImageHandle) (models.Event, error)
	UpdateEvent(ctx context.Context, event models.Event) (models.Event, error)
	DeleteEvent(ctx context.Context, id *int64) error
}

// SyncTrigger starts a background sync.
type SyncTrigger interface {
	TriggerSync()
}

// ImageResolver turns a remote-relative image path into a full URL.
type ImageResolver func(path string) string

// EventResponse represents an event in API responses.
type EventResponse struct {
	models.Event
	ImageURL string `json:"imageUrl,omitempty"`
}

// EventRequest is the editable part of an event.
type EventRequest struct {
	Name        string  `json:"name"`
	Date        string  `json:"date"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
	Image       *string `json:"image,omitempty"`
}

func (req EventRequest) event() models.Event {
	return models.Event{
		Name:        strings.TrimSpace(req.Name),
		Date:        strings.TrimSpace(req.Date),
		Location:    strings.TrimSpace(req.Location),
		Description: strings.TrimSpace(req.Description),
		Image:       req.Image,
	}
}

// ListEvents returns all cached events ordered by date.
func ListEvents(svc EventService, images ImageResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := svc.ListEvents(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		response := make([]EventResponse, 0, len(events))
		for _, e := range events {
			response = append(response, toResponse(e, images))
		}
		middleware.WriteJSON(w, http.StatusOK, response)
	}
}

// GetEvent returns a single event by its remote id.
func GetEvent(svc EventService, images ImageResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		event, err := svc.GetEventByID(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, toResponse(event, images))
	}
}

// CreateEvent adds an event from a JSON body or a multipart form with an
// optional "image" file part.
func CreateEvent(svc EventService, images ImageResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			req   EventRequest
			image eventsync.ImageHandle
		)

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "multipart/form-data" {
			r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
			if err := r.ParseMultipartForm(maxUploadSize); err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid multipart form")
				return
			}
			req = EventRequest{
				Name:        r.FormValue("name"),
				Date:        r.FormValue("date"),
				Location:    r.FormValue("location"),
				Description: r.FormValue("description"),
			}

			file, header, err := r.FormFile("image")
			switch {
			case err == nil:
				defer file.Close()
				image = eventsync.ReaderHandle(header.Filename, file)
			case errors.Is(err, http.ErrMissingFile):
			default:
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid image upload")
				return
			}
		} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		candidate := req.event()
		if !writeValidation(w, candidate) {
			return
		}

		created, err := svc.AddEvent(r.Context(), candidate, image)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, toResponse(created, images))
	}
}

// UpdateEvent replaces the editable fields of an event.
func UpdateEvent(svc EventService, images ImageResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req EventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		event := req.event()
		event.ID = models.Int64(id)
		if !writeValidation(w, event) {
			return
		}

		if event.Image == nil {
			// Keep the stored image when the client does not send one.
			if current, err := svc.GetEventByID(r.Context(), id); err == nil {
				event.Image = current.Image
			}
		}

		updated, err := svc.UpdateEvent(r.Context(), event)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, toResponse(updated, images))
	}
}

// DeleteEvent removes an event.
func DeleteEvent(svc EventService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		if err := svc.DeleteEvent(r.Context(), models.Int64(id)); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SyncEvents starts a sync in the background and returns immediately.
func SyncEvents(trigger SyncTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trigger.TriggerSync()
		middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
			"status":  "accepted",
			"message": "Sync started",
		})
	}
}

func toResponse(e models.Event, images ImageResolver) EventResponse {
	resp := EventResponse{Event: e}
	if images != nil && e.Image != nil && e.HasID() {
		resp.ImageURL = images(*e.Image)
	}
	return resp
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Event id must be an integer")
		return 0, false
	}
	return id, true
}

func writeValidation(w http.ResponseWriter, e models.Event) bool {
	err := e.Validate()
	if err == nil {
		return true
	}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation, verr.Error(), verr.Fields)
		return false
	}
	middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
	return false
}

// writeServiceError maps coordinator failures to HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, eventsync.ErrInvalidArgument):
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
	case errors.Is(err, eventsync.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
	case errors.Is(err, eventsync.ErrUnreachable):
		middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrRemoteUnreachable, "Remote event service is unreachable")
	case errors.Is(err, eventsync.ErrRemoteRejected):
		middleware.WriteError(w, http.StatusBadGateway, middleware.ErrRemoteRejected, err.Error())
	default:
		log.Printf("[%s] Request failed: %v", middleware.RequestID(r.Context()), err)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "An unexpected error occurred")
	}
}
