package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"academicbooks/aggregator/internal/models"
	"academicbooks/aggregator/internal/server/pagination"
	"academicbooks/aggregator/internal/server/storage"
)

const defaultLimit = 100
const maxLimit = 1000
const iso8601Format = time.RFC3339

// EventView is the JSON shape of an event.
type EventView struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	StartAt      time.Time  `json:"start_at"`
	EndAt        *time.Time `json:"end_at,omitempty"`
	AllDay       bool       `json:"all_day"`
	IsOnline     bool       `json:"is_online"`
	MeetingURL   string     `json:"meeting_url,omitempty"`
	LocationName string     `json:"location_name,omitempty"`
	Address      string     `json:"address,omitempty"`
	Organizer    string     `json:"organizer,omitempty"`
	University   string     `json:"university"`
	Category     string     `json:"category,omitempty"`
	SourceURL    string     `json:"source_url,omitempty"`
}

// EventsResponse is the envelope for the event listing endpoint.
type EventsResponse struct {
	Events     []EventView `json:"events"`
	NextCursor *string     `json:"next_cursor,omitempty"`
}

// EventsHandler serves event listings and single-event exports.
type EventsHandler struct {
	repo storage.EventRepository
}

// NewEventsHandler creates a handler over the given repository.
func NewEventsHandler(repo storage.EventRepository) *EventsHandler {
	return &EventsHandler{repo: repo}
}

// GetEvents lists published events ordered by start time, with optional
// university/category/time-range filters and cursor pagination.
func (h *EventsHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	query := r.URL.Query()

	limit := defaultLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > maxLimit {
			log.Warn().Str("limit", limitStr).Msg("Invalid 'limit' parameter value")
			http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	filter := storage.ListFilter{
		Limit:      limit + 1, // one extra to detect the next page
		University: query.Get("university"),
		Category:   query.Get("category"),
		Query:      query.Get("q"),
	}

	if onlineStr := query.Get("online"); onlineStr != "" {
		online, err := strconv.ParseBool(onlineStr)
		if err != nil {
			http.Error(w, "Invalid 'online' parameter: use true or false", http.StatusBadRequest)
			return
		}
		filter.Online = &online
	}
	if fromStr := query.Get("from"); fromStr != "" {
		from, err := time.Parse(iso8601Format, fromStr)
		if err != nil {
			http.Error(w, "Invalid 'from' parameter: use RFC3339 format", http.StatusBadRequest)
			return
		}
		utc := from.UTC()
		filter.From = &utc
	}
	if toStr := query.Get("to"); toStr != "" {
		to, err := time.Parse(iso8601Format, toStr)
		if err != nil {
			http.Error(w, "Invalid 'to' parameter: use RFC3339 format", http.StatusBadRequest)
			return
		}
		utc := to.UTC()
		filter.To = &utc
	}
	if cursorStr := query.Get("cursor"); cursorStr != "" {
		ts, id, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			log.Warn().Err(err).Str("cursor", cursorStr).Msg("Invalid 'cursor' parameter")
			http.Error(w, "Invalid 'cursor' parameter", http.StatusBadRequest)
			return
		}
		filter.CursorStart = &ts
		filter.CursorID = &id
	}

	events, err := h.repo.ListEvents(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Error listing events")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var nextCursor *string
	if len(events) > limit {
		events = events[:limit]
		last := events[len(events)-1]
		cursor := pagination.EncodeCursor(last.StartAt.UTC(), last.ID)
		nextCursor = &cursor
	}

	views := make([]EventView, 0, len(events))
	for _, ev := range events {
		views = append(views, viewFromEvent(ev))
	}

	writeJSON(w, log, EventsResponse{Events: views, NextCursor: nextCursor})
}

// GetEventICS exports one event as an iCalendar document.
func (h *EventsHandler) GetEventICS(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid event id", http.StatusBadRequest)
		return
	}

	event, err := h.repo.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Int64("id", id).Msg("Error loading event")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	cal := buildCalendar(event)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=event-%d.ics", id))
	if _, err := w.Write([]byte(cal.Serialize())); err != nil {
		log.Error().Err(err).Msg("Error writing ICS response")
	}
}

func buildCalendar(event *models.Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//AcademicBooks//Event Aggregator//PL")

	ve := cal.AddEvent(fmt.Sprintf("event-%d@academicbooks", event.ID))
	ve.SetDtStampTime(event.UpdatedAt.UTC())
	ve.SetSummary(event.Title)

	if event.AllDay {
		ve.SetAllDayStartAt(event.StartAt.UTC())
		if event.EndAt.Valid {
			ve.SetAllDayEndAt(event.EndAt.Time.UTC())
		}
	} else {
		ve.SetStartAt(event.StartAt.UTC())
		if event.EndAt.Valid {
			ve.SetEndAt(event.EndAt.Time.UTC())
		}
	}

	if event.Description.Valid {
		ve.SetDescription(event.Description.String)
	}
	if event.LocationName.Valid {
		ve.SetLocation(event.LocationName.String)
	}
	if event.MeetingURL.Valid {
		ve.SetURL(event.MeetingURL.String)
	}
	if event.Organizer.Valid {
		ve.SetOrganizer(event.Organizer.String)
	}

	return cal
}

func viewFromEvent(ev models.Event) EventView {
	view := EventView{
		ID:           ev.ID,
		Title:        ev.Title,
		Description:  ev.Description.String,
		StartAt:      ev.StartAt.UTC(),
		AllDay:       ev.AllDay,
		IsOnline:     ev.IsOnline,
		MeetingURL:   ev.MeetingURL.String,
		LocationName: ev.LocationName.String,
		Address:      ev.Address.String,
		Organizer:    ev.Organizer.String,
		University:   ev.UniversityName,
		Category:     ev.Category.String,
		SourceURL:    ev.SourceURL.String,
	}
	if ev.EndAt.Valid {
		end := ev.EndAt.Time.UTC()
		view.EndAt = &end
	}
	return view
}

func writeJSON(w http.ResponseWriter, log *zerolog.Logger, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body")
	}
}
