package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/AdamBeresnev/arena-hub/internal/httputil"
	"github.com/AdamBeresnev/arena-hub/internal/service"
	"github.com/AdamBeresnev/arena-hub/views"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxImportBytes = 256 << 10

// writeServiceError maps service errors onto status codes.
func writeServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		httputil.NotFound(w, "Event not found", err)
	case errors.Is(err, service.ErrMatchNotFound):
		httputil.NotFound(w, "Match not found", err)
	case errors.Is(err, service.ErrForbidden):
		httputil.Forbidden(w, "You do not own this event", err)
	case errors.Is(err, service.ErrMatchAlreadyCompleted):
		httputil.Conflict(w, "Match is already completed", err)
	case errors.Is(err, service.ErrInvalidStatusTransition):
		httputil.Conflict(w, err.Error(), err)
	case errors.Is(err, service.ErrValidationFailed),
		errors.Is(err, service.ErrInvalidWinner),
		errors.Is(err, service.ErrInsufficientTeams):
		httputil.BadRequest(w, err.Error(), err)
	default:
		httputil.InternalServerError(w, msg, err)
	}
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func (app *application) indexPage(w http.ResponseWriter, r *http.Request) {
	events, err := app.events.ListEvents(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to get events", err)
		return
	}
	views.Render(w, r, views.Index(events))
}

func (app *application) eventBoardPage(w http.ResponseWriter, r *http.Request) {
	event, err := app.events.ResolveEvent(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, "Failed to get event", err)
		return
	}
	matches, err := app.matches.GetMatches(r.Context(), event.ID)
	if err != nil {
		httputil.InternalServerError(w, "Failed to get matches", err)
		return
	}
	standings, err := app.matches.GetStandings(r.Context(), event.ID)
	if err != nil {
		httputil.InternalServerError(w, "Failed to get standings", err)
		return
	}
	views.Render(w, r, views.EventBoard(*event, views.PrepareBoardData(matches), standings))
}

func (app *application) watchMatches(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	if _, err := app.events.GetEvent(r.Context(), eventID); err != nil {
		writeServiceError(w, "Failed to get event", err)
		return
	}
	app.hub.ServeWs(w, r, eventID)
}

func (app *application) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := app.events.ListEvents(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to get events", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (app *application) getEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	event, err := app.events.GetEvent(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, "Failed to get event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

func (app *application) createEvent(w http.ResponseWriter, r *http.Request) {
	var input service.EventInput
	if err := httputil.DecodeJSON(w, r, &input); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}
	event, err := app.events.CreateEvent(r.Context(), input)
	if err != nil {
		writeServiceError(w, "Failed to create event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, event)
}

func (app *application) deleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	if err := app.events.DeleteEvent(r.Context(), eventID); err != nil {
		writeServiceError(w, "Failed to delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) registerTeam(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	var input service.RegistrationInput
	if err := httputil.DecodeJSON(w, r, &input); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}
	registration, err := app.events.RegisterTeam(r.Context(), eventID, input)
	if err != nil {
		writeServiceError(w, "Failed to register team", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registration)
}

func (app *application) listRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	if _, err := app.events.AuthorizeOwner(r.Context(), eventID); err != nil {
		writeServiceError(w, "Failed to get event", err)
		return
	}
	registrations, err := app.events.GetRegistrations(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, "Failed to get registrations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, registrations)
}

func (app *application) importRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	if _, err := app.events.AuthorizeOwner(r.Context(), eventID); err != nil {
		writeServiceError(w, "Failed to get event", err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		httputil.BadRequest(w, "Import is too large", err)
		return
	}
	result, err := app.events.ImportRegistrations(r.Context(), eventID, string(body))
	if err != nil {
		writeServiceError(w, "Failed to import registrations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (app *application) listMatches(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	if _, err := app.events.GetEvent(r.Context(), eventID); err != nil {
		writeServiceError(w, "Failed to get event", err)
		return
	}
	matches, err := app.matches.GetMatches(r.Context(), eventID)
	if err != nil {
		httputil.InternalServerError(w, "Failed to get matches", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, matches)
}

func (app *application) getStandings(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	if _, err := app.events.GetEvent(r.Context(), eventID); err != nil {
		writeServiceError(w, "Failed to get event", err)
		return
	}
	standings, err := app.matches.GetStandings(r.Context(), eventID)
	if err != nil {
		httputil.InternalServerError(w, "Failed to get standings", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, standings)
}

func (app *application) createMatches(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	if _, err := app.events.AuthorizeOwner(r.Context(), eventID); err != nil {
		writeServiceError(w, "Failed to get event", err)
		return
	}
	matches, err := app.matchmaker.CreateMatchesForEvent(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, "Failed to create matches", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, matches)
}

func (app *application) clearMatches(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	if _, err := app.events.AuthorizeOwner(r.Context(), eventID); err != nil {
		writeServiceError(w, "Failed to get event", err)
		return
	}

	result, err := app.matches.ClearAllMatches(r.Context(), eventID)
	var clearErr *service.ClearError
	switch {
	case errors.As(err, &clearErr):
		slog.Error("Failed to clear some matches", "event_id", eventID, "deleted", result.Deleted, "failed", result.Failed, "error", err)
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to clear some matches",
			"deleted": result.Deleted,
			"failed":  result.Failed,
		})
		return
	case err != nil:
		httputil.InternalServerError(w, "Failed to clear matches", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (app *application) deleteMatch(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	matchID, ok := uuidParam(w, r, "matchID")
	if !ok {
		return
	}
	if _, err := app.events.AuthorizeOwner(r.Context(), eventID); err != nil {
		writeServiceError(w, "Failed to get event", err)
		return
	}
	if err := app.matches.DeleteMatch(r.Context(), eventID, matchID); err != nil {
		writeServiceError(w, "Failed to delete match", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizeMatch loads a match and checks that the current user owns its event.
func (app *application) authorizeMatch(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	matchID, ok := uuidParam(w, r, "matchID")
	if !ok {
		return uuid.Nil, false
	}
	match, err := app.matches.GetMatch(r.Context(), matchID)
	if err != nil {
		writeServiceError(w, "Failed to get match", err)
		return uuid.Nil, false
	}
	if _, err := app.events.AuthorizeOwner(r.Context(), match.EventID); err != nil {
		writeServiceError(w, "Failed to get event", err)
		return uuid.Nil, false
	}
	return matchID, true
}

func (app *application) declareWinner(w http.ResponseWriter, r *http.Request) {
	matchID, ok := app.authorizeMatch(w, r)
	if !ok {
		return
	}
	var body struct {
		Winner bracket.Side `json:"winner"`
	}
	if err := httputil.DecodeJSON(w, r, &body); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}
	match, err := app.matches.DeclareWinner(r.Context(), matchID, body.Winner)
	if err != nil {
		writeServiceError(w, "Failed to declare winner", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func (app *application) updateStatus(w http.ResponseWriter, r *http.Request) {
	matchID, ok := app.authorizeMatch(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := httputil.DecodeJSON(w, r, &body); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}
	status, err := bracket.ParseStatus(body.Status)
	if err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}
	match, err := app.matches.UpdateStatus(r.Context(), matchID, status)
	if err != nil {
		writeServiceError(w, "Failed to update match status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func (app *application) recordStats(w http.ResponseWriter, r *http.Request) {
	matchID, ok := app.authorizeMatch(w, r)
	if !ok {
		return
	}
	var stats bracket.MatchStats
	if err := httputil.DecodeJSON(w, r, &stats); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}
	match, err := app.matches.RecordStats(r.Context(), matchID, stats)
	if err != nil {
		writeServiceError(w, "Failed to record match stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}
