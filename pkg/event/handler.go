package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/klokku/sharecal/internal/rest"
	"github.com/klokku/sharecal/pkg/conflict"
	"github.com/klokku/sharecal/pkg/permission"
	"github.com/klokku/sharecal/pkg/recurrence"
	"github.com/klokku/sharecal/pkg/user"
	"github.com/klokku/sharecal/pkg/version"
	log "github.com/sirupsen/logrus"
)

type EventRequest struct {
	Title       string           `json:"title" validate:"required,max=255"`
	Description string           `json:"description" validate:"max=10000"`
	Start       time.Time        `json:"start" validate:"required"`
	End         time.Time        `json:"end" validate:"required"`
	TimeZone    string           `json:"timeZone,omitempty"`
	Recurrence  *recurrence.Rule `json:"recurrence,omitempty"`
	RRule       string           `json:"rrule,omitempty" validate:"excluded_with=Recurrence"`
}

type BatchRequest struct {
	Events []EventRequest `json:"events" validate:"required,min=1"`
}

// batchBody is the wire shape of BatchRequest. Items stay raw so a malformed item fails
// on its own instead of failing the whole request.
type batchBody struct {
	Events []json.RawMessage `json:"events" validate:"required,min=1"`
}

type UpdateRequest struct {
	Title           *string          `json:"title" validate:"omitempty,min=1,max=255"`
	Description     *string          `json:"description" validate:"omitempty,max=10000"`
	Start           *time.Time       `json:"start"`
	End             *time.Time       `json:"end"`
	TimeZone        *string          `json:"timeZone"`
	Recurrence      *recurrence.Rule `json:"recurrence"`
	RRule           string           `json:"rrule" validate:"excluded_with=Recurrence"`
	ClearRecurrence bool             `json:"clearRecurrence"`
	ExpectedVersion int              `json:"expectedVersion" validate:"gte=0"`
}

type ShareRequest struct {
	UserId int    `json:"userId" validate:"required,gt=0"`
	Role   string `json:"role" validate:"required"`
}

type ConflictCheckRequest struct {
	Start          time.Time        `json:"start" validate:"required"`
	End            time.Time        `json:"end" validate:"required"`
	TimeZone       string           `json:"timeZone,omitempty"`
	Recurrence     *recurrence.Rule `json:"recurrence,omitempty"`
	RRule          string           `json:"rrule,omitempty" validate:"excluded_with=Recurrence"`
	ExcludeEventId uuid.UUID        `json:"excludeEventId"`
}

type EventDTO struct {
	Id          uuid.UUID        `json:"id"`
	OwnerId     int              `json:"ownerId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	TimeZone    string           `json:"timeZone"`
	Recurrence  *recurrence.Rule `json:"recurrence,omitempty"`
	RRule       string           `json:"rrule,omitempty"`
	Version     int              `json:"version"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type ResultDTO struct {
	EventDTO
	Warnings []conflict.Conflict `json:"warnings"`
}

type BatchItemDTO struct {
	Index  int                 `json:"index"`
	Status string              `json:"status"`
	Event  *ResultDTO          `json:"event,omitempty"`
	Error  *rest.ErrorResponse `json:"error,omitempty"`
}

type VersionDTO struct {
	Number    int              `json:"version"`
	AuthorId  int              `json:"authorId"`
	CreatedAt time.Time        `json:"createdAt"`
	Summary   string           `json:"summary"`
	Snapshot  version.Snapshot `json:"snapshot"`
}

type EntryDTO struct {
	Number    int                   `json:"version"`
	AuthorId  int                   `json:"authorId"`
	CreatedAt time.Time             `json:"createdAt"`
	Summary   string                `json:"summary"`
	Changes   []version.FieldChange `json:"changes"`
}

type PermissionDTO struct {
	UserId    int        `json:"userId"`
	Role      string     `json:"role"`
	GrantedBy int        `json:"grantedBy,omitempty"`
	GrantedAt *time.Time `json:"grantedAt,omitempty"`
}

type Handler struct {
	service  Service
	validate *validator.Validate
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// CreateEvent godoc
// @Summary Create an event
// @Description Creates version 1 of an event owned by the current user. Overlaps with other visible events are returned as warnings.
// @Tags Event
// @Accept json
// @Produce json
// @Param event body EventRequest true "Event"
// @Success 201 {object} ResultDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid event"
// @Router /api/events [post]
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating event")

	var req EventRequest
	if !h.decode(w, r, &req) {
		return
	}
	draft, err := h.toDraft(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.service.Create(r.Context(), draft)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, resultToDTO(result))
}

// BatchCreateEvents godoc
// @Summary Create several events
// @Description Every item is created independently. The response holds one entry per item, in request order.
// @Tags Event
// @Accept json
// @Produce json
// @Param batch body BatchRequest true "Events"
// @Success 201 {array} BatchItemDTO "All items created"
// @Success 207 {array} BatchItemDTO "Some items failed"
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/events/batch [post]
func (h *Handler) BatchCreateEvents(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating events in batch")

	var req batchBody
	if !h.decode(w, r, &req) {
		return
	}

	// items rejected here never reach the service
	items := make([]BatchItemDTO, len(req.Events))
	drafts := make([]Draft, 0, len(req.Events))
	positions := make([]int, 0, len(req.Events))
	for i, raw := range req.Events {
		items[i].Index = i
		draft, err := h.decodeDraft(raw)
		if err != nil {
			items[i].Status = "failed"
			items[i].Error = errorBody(err)
			continue
		}
		drafts = append(drafts, draft)
		positions = append(positions, i)
	}

	results, err := h.service.BatchCreate(r.Context(), drafts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	for _, result := range results {
		item := &items[positions[result.Index]]
		if result.Err != nil {
			item.Status = "failed"
			item.Error = errorBody(result.Err)
			continue
		}
		dto := resultToDTO(Result{Event: *result.Event, Warnings: result.Warnings})
		item.Status = "created"
		item.Event = &dto
	}

	status := http.StatusCreated
	for _, item := range items {
		if item.Error != nil {
			status = http.StatusMultiStatus
			break
		}
	}
	rest.WriteJSON(w, status, items)
}

// ListEvents godoc
// @Summary List visible events
// @Tags Event
// @Produce json
// @Param page query int false "Page number, starting at 1"
// @Param per_page query int false "Page size, at most 100"
// @Success 200 {array} EventDTO
// @Router /api/events [get]
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.List(r.Context(), rest.PageFromRequest(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventToDTO(e))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), eventId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, eventToDTO(e))
}

// UpdateEvent godoc
// @Summary Update an event
// @Description Partial update. Send expectedVersion to fail with 409 when someone else changed the event since it was read.
// @Tags Event
// @Accept json
// @Produce json
// @Param eventId path string true "Event ID"
// @Param event body UpdateRequest true "Changed fields"
// @Success 200 {object} ResultDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid update"
// @Failure 403 {object} rest.ErrorResponse "Editor role required"
// @Failure 404 {object} rest.ErrorResponse "Event not found"
// @Failure 409 {object} rest.ErrorResponse "Event was modified concurrently"
// @Router /api/events/{eventId} [put]
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	log.Debug("Updating event")
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	rule := req.Recurrence
	if req.RRule != "" {
		parsed, err := parseRRule(req.RRule)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		rule = parsed
	}
	patch := Patch{
		Title:           req.Title,
		Description:     req.Description,
		Start:           req.Start,
		End:             req.End,
		TimeZone:        req.TimeZone,
		Recurrence:      rule,
		ClearRecurrence: req.ClearRecurrence,
		ExpectedVersion: req.ExpectedVersion,
	}

	result, err := h.service.Update(r.Context(), eventId, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, resultToDTO(result))
}

// DeleteEvent godoc
// @Summary Delete an event
// @Description Records a tombstone version. History stays readable.
// @Tags Event
// @Param eventId path string true "Event ID"
// @Param expectedVersion query int false "Version the caller last read"
// @Success 204 "No Content"
// @Failure 403 {object} rest.ErrorResponse "Owner role required"
// @Router /api/events/{eventId} [delete]
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	expected, ok := expectedVersionParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), eventId, expected); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListVersions godoc
// @Summary Full version history
// @Tags Version
// @Produce json
// @Param eventId path string true "Event ID"
// @Success 200 {array} EntryDTO
// @Router /api/events/{eventId}/versions [get]
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), eventId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, entriesToDTO(entries))
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	number, ok := intVar(w, r, "version")
	if !ok {
		return
	}
	v, err := h.service.Version(r.Context(), eventId, number)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, versionToDTO(v))
}

func (h *Handler) DiffVersions(w http.ResponseWriter, r *http.Request) {
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	from, ok := intVar(w, r, "from")
	if !ok {
		return
	}
	to, ok := intVar(w, r, "to")
	if !ok {
		return
	}
	changes, err := h.service.Diff(r.Context(), eventId, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, changes)
}

// Changelog godoc
// @Summary Paginated changelog, newest first
// @Tags Version
// @Produce json
// @Param eventId path string true "Event ID"
// @Param page query int false "Page number, starting at 1"
// @Param per_page query int false "Page size, at most 100"
// @Success 200 {array} EntryDTO
// @Router /api/events/{eventId}/changelog [get]
func (h *Handler) Changelog(w http.ResponseWriter, r *http.Request) {
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	entries, err := h.service.Changelog(r.Context(), eventId, rest.PageFromRequest(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, entriesToDTO(entries))
}

func (h *Handler) VersionAt(w http.ResponseWriter, r *http.Request) {
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("at"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid 'at' parameter", "Time must be in RFC3339 format")
		return
	}
	v, err := h.service.VersionAt(r.Context(), eventId, at)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, versionToDTO(v))
}

// RollbackEvent godoc
// @Summary Roll an event back to an earlier version
// @Description Appends a new version equal to the target one.
// @Tags Version
// @Produce json
// @Param eventId path string true "Event ID"
// @Param version path int true "Target version"
// @Param expectedVersion query int false "Version the caller last read"
// @Success 200 {object} EventDTO
// @Failure 404 {object} rest.ErrorResponse "Event or version not found"
// @Failure 409 {object} rest.ErrorResponse "Event was modified concurrently"
// @Router /api/events/{eventId}/rollback/{version} [post]
func (h *Handler) RollbackEvent(w http.ResponseWriter, r *http.Request) {
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	target, ok := intVar(w, r, "version")
	if !ok {
		return
	}
	expected, ok := expectedVersionParam(w, r)
	if !ok {
		return
	}
	e, err := h.service.Rollback(r.Context(), eventId, target, expected)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, eventToDTO(e))
}

// ShareEvent godoc
// @Summary Grant a role on an event
// @Description Owner only. Granting again replaces the previous role.
// @Tags Permission
// @Accept json
// @Produce json
// @Param eventId path string true "Event ID"
// @Param grant body ShareRequest true "Grant"
// @Success 200 {object} PermissionDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid grant"
// @Failure 403 {object} rest.ErrorResponse "Owner role required"
// @Router /api/events/{eventId}/share [post]
func (h *Handler) ShareEvent(w http.ResponseWriter, r *http.Request) {
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	var req ShareRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := permission.ParseRole(req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	p, err := h.service.Share(r.Context(), eventId, req.UserId, role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, permissionToDTO(p))
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	permissions, err := h.service.ListPermissions(r.Context(), eventId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]PermissionDTO, 0, len(permissions))
	for _, p := range permissions {
		dtos = append(dtos, permissionToDTO(p))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	userId, ok := intVar(w, r, "userId")
	if !ok {
		return
	}
	if err := h.service.Revoke(r.Context(), eventId, userId); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckConflicts godoc
// @Summary Check a prospective schedule for overlaps
// @Tags Event
// @Accept json
// @Produce json
// @Param candidate body ConflictCheckRequest true "Candidate schedule"
// @Success 200 {array} conflict.Conflict
// @Router /api/conflicts/check [post]
func (h *Handler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	var req ConflictCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	rule, err := ruleFrom(req.Recurrence, req.RRule)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	draft := Draft{Start: req.Start, End: req.End, TimeZone: req.TimeZone, Recurrence: rule}
	conflicts, err := h.service.CheckConflicts(r.Context(), draft, req.ExcludeEventId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, conflicts)
}

// ExportEvent godoc
// @Summary Export an event as iCalendar
// @Tags Event
// @Produce text/calendar
// @Param eventId path string true "Event ID"
// @Success 200 {string} string "iCalendar document"
// @Router /api/events/{eventId}/ics [get]
func (h *Handler) ExportEvent(w http.ResponseWriter, r *http.Request) {
	eventId, ok := eventIdVar(w, r)
	if !ok {
		return
	}
	document, err := h.service.ExportICS(r.Context(), eventId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", eventId.String()+".ics"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(document)); err != nil {
		log.Errorf("failed to write calendar: %v", err)
	}
}

// decode reads and validates a JSON body, writing a 400 response on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return false
	}
	return true
}

func (h *Handler) decodeDraft(raw json.RawMessage) (Draft, error) {
	var req EventRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return Draft{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return h.toDraft(req)
}

func (h *Handler) toDraft(req EventRequest) (Draft, error) {
	if err := h.validate.Struct(req); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	rule, err := ruleFrom(req.Recurrence, req.RRule)
	if err != nil {
		return Draft{}, err
	}
	return Draft{
		Title:       req.Title,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
		TimeZone:    req.TimeZone,
		Recurrence:  rule,
	}, nil
}

func ruleFrom(rule *recurrence.Rule, rrule string) (*recurrence.Rule, error) {
	if rrule == "" {
		return rule, nil
	}
	return parseRRule(rrule)
}

func parseRRule(value string) (*recurrence.Rule, error) {
	rule, err := recurrence.ParseRRule(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return &rule, nil
}

func eventIdVar(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	eventId, err := uuid.Parse(mux.Vars(r)["eventId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid event id", err.Error())
		return uuid.Nil, false
	}
	return eventId, true
}

func intVar(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || value < 1 {
		rest.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name), "Must be a positive integer")
		return 0, false
	}
	return value, true
}

func expectedVersionParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("expectedVersion")
	if raw == "" {
		return 0, true
	}
	expected, err := strconv.Atoi(raw)
	if err != nil || expected < 0 {
		rest.WriteError(w, http.StatusBadRequest, "Invalid expectedVersion", "Must be a non-negative integer")
		return 0, false
	}
	return expected, true
}

// errorStatus maps service errors to HTTP statuses.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, user.ErrNoUser):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, permission.ErrAccessDenied):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, permission.ErrInvalidGrant):
		return http.StatusBadRequest, "Invalid grant"
	case errors.Is(err, ErrValidation), errors.Is(err, recurrence.ErrInvalidRule):
		return http.StatusBadRequest, "Validation failed"
	case errors.Is(err, version.ErrConcurrentModification):
		return http.StatusConflict, "Event was modified concurrently, reload and retry"
	case errors.Is(err, version.ErrVersionNotFound):
		return http.StatusNotFound, "Version not found"
	case errors.Is(err, ErrEventNotFound):
		return http.StatusNotFound, "Event not found"
	case errors.Is(err, permission.ErrPermissionNotFound):
		return http.StatusNotFound, "Permission not found"
	case errors.Is(err, user.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	}
	return http.StatusInternalServerError, "Internal server error"
}

func errorBody(err error) *rest.ErrorResponse {
	status, message := errorStatus(err)
	body := &rest.ErrorResponse{Error: message}
	if status != http.StatusInternalServerError {
		body.Details = err.Error()
	}
	return body
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, _ := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	}
	rest.WriteJSON(w, status, errorBody(err))
}

func eventToDTO(e Event) EventDTO {
	dto := EventDTO{
		Id:          e.Id,
		OwnerId:     e.OwnerId,
		Title:       e.Title,
		Description: e.Description,
		Start:       e.Start,
		End:         e.End,
		TimeZone:    e.TimeZone,
		Recurrence:  e.Recurrence,
		Version:     e.Version,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.Recurrence != nil {
		dto.RRule = e.Recurrence.RRule()
	}
	return dto
}

func resultToDTO(result Result) ResultDTO {
	warnings := result.Warnings
	if warnings == nil {
		warnings = []conflict.Conflict{}
	}
	return ResultDTO{EventDTO: eventToDTO(result.Event), Warnings: warnings}
}

func versionToDTO(v version.Version) VersionDTO {
	return VersionDTO{
		Number:    v.Number,
		AuthorId:  v.AuthorId,
		CreatedAt: v.CreatedAt,
		Summary:   v.Summary,
		Snapshot:  v.Snapshot,
	}
}

func entriesToDTO(entries []version.Entry) []EntryDTO {
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, EntryDTO{
			Number:    e.Number,
			AuthorId:  e.AuthorId,
			CreatedAt: e.CreatedAt,
			Summary:   e.Summary,
			Changes:   e.Changes,
		})
	}
	return dtos
}

func permissionToDTO(p permission.Permission) PermissionDTO {
	dto := PermissionDTO{UserId: p.UserId, Role: p.Role.String(), GrantedBy: p.GrantedBy}
	if !p.GrantedAt.IsZero() {
		grantedAt := p.GrantedAt
		dto.GrantedAt = &grantedAt
	}
	return dto
}
