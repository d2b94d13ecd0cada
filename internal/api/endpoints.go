package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"salas/internal/model"
	"salas/internal/view"
)

// Cache keys of reference data.
const (
	cacheKeyBuildings = "salas:edificios"
	cacheKeySlots     = "salas:turnos"
)

// ReservationFilter narrows GET /reservas. Empty fields are omitted.
type ReservationFilter struct {
	Date     string
	Building string
	CI       string
}

// AvailabilityQuery is the (fecha, edificio, nombre_sala) triple.
type AvailabilityQuery struct {
	Date     string
	Building string
	Room     string
}

// ReportQuery is the date range and optional limit of a report.
type ReportQuery struct {
	From  string
	To    string
	Limit int
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status"`
	DB     string `json:"db"`
}

type stateBody struct {
	State model.ReservationState `json:"estado"`
}

type attendanceBody struct {
	Present  []string `json:"presentes"`
	Sanction bool     `json:"sancionar_ausentes"`
}

type loginBody struct {
	CI string `json:"ci"`
}

func withQuery(path string, q url.Values) string {
	if enc := q.Encode(); enc != "" {
		return path + "?" + enc
	}
	return path
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func roomPath(building, name string) string {
	return fmt.Sprintf("/salas/%s/%s", url.PathEscape(building), url.PathEscape(name))
}

func slotPath(id int) string {
	return "/turnos/" + strconv.Itoa(id)
}

func participantPath(ci string) string {
	return "/participantes/" + url.PathEscape(ci)
}

func sanctionPath(ci, start string) string {
	return fmt.Sprintf("/sanciones/%s/%s", url.PathEscape(ci), url.PathEscape(start))
}

// Buildings lists every building name.
func (c *Client) Buildings(ctx context.Context, status view.Status) ([]model.Building, error) {
	var out []model.Building
	if err := c.getCached(ctx, cacheKeyBuildings, "/edificios", status, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Rooms lists rooms, optionally only those of building.
func (c *Client) Rooms(ctx context.Context, building string, status view.Status) ([]model.Room, error) {
	q := url.Values{}
	setIf(q, "edificio", building)
	var out []model.Room
	if err := c.Do(ctx, http.MethodGet, withQuery("/salas", q), nil, status, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRoom posts a new room.
func (c *Client) CreateRoom(ctx context.Context, room model.Room, status view.Status) error {
	if err := c.Do(ctx, http.MethodPost, "/salas", room, status, nil); err != nil {
		return err
	}
	c.invalidate(ctx, cacheKeyBuildings)
	return nil
}

// UpdateRoom replaces the room identified by (building, name).
func (c *Client) UpdateRoom(ctx context.Context, building, name string, room model.Room, status view.Status) error {
	if err := c.Do(ctx, http.MethodPut, roomPath(building, name), room, status, nil); err != nil {
		return err
	}
	c.invalidate(ctx, cacheKeyBuildings)
	return nil
}

// DeleteRoom removes the room identified by (building, name).
func (c *Client) DeleteRoom(ctx context.Context, building, name string, status view.Status) error {
	if err := c.Do(ctx, http.MethodDelete, roomPath(building, name), nil, status, nil); err != nil {
		return err
	}
	c.invalidate(ctx, cacheKeyBuildings)
	return nil
}

// Slots lists every slot.
func (c *Client) Slots(ctx context.Context, status view.Status) ([]model.Slot, error) {
	var out []model.Slot
	if err := c.getCached(ctx, cacheKeySlots, "/turnos", status, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Slot fetches one slot.
func (c *Client) Slot(ctx context.Context, id int, status view.Status) (model.Slot, error) {
	var out model.Slot
	if err := c.Do(ctx, http.MethodGet, slotPath(id), nil, status, &out); err != nil {
		return model.Slot{}, err
	}
	return out, nil
}

// CreateSlot posts a new slot.
func (c *Client) CreateSlot(ctx context.Context, slot model.Slot, status view.Status) error {
	if err := c.Do(ctx, http.MethodPost, "/turnos", slot, status, nil); err != nil {
		return err
	}
	c.invalidate(ctx, cacheKeySlots)
	return nil
}

// UpdateSlot replaces slot id.
func (c *Client) UpdateSlot(ctx context.Context, id int, slot model.Slot, status view.Status) error {
	if err := c.Do(ctx, http.MethodPut, slotPath(id), slot, status, nil); err != nil {
		return err
	}
	c.invalidate(ctx, cacheKeySlots)
	return nil
}

// DeleteSlot removes slot id.
func (c *Client) DeleteSlot(ctx context.Context, id int, status view.Status) error {
	if err := c.Do(ctx, http.MethodDelete, slotPath(id), nil, status, nil); err != nil {
		return err
	}
	c.invalidate(ctx, cacheKeySlots)
	return nil
}

// Participants lists every participant.
func (c *Client) Participants(ctx context.Context, status view.Status) ([]model.Participant, error) {
	var out []model.Participant
	if err := c.Do(ctx, http.MethodGet, "/participantes", nil, status, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Participant fetches one participant by normalised CI.
func (c *Client) Participant(ctx context.Context, ci string, status view.Status) (model.Participant, error) {
	var out model.Participant
	if err := c.Do(ctx, http.MethodGet, participantPath(ci), nil, status, &out); err != nil {
		return model.Participant{}, err
	}
	return out, nil
}

// CreateParticipant posts a new participant.
func (c *Client) CreateParticipant(ctx context.Context, p model.Participant, status view.Status) error {
	return c.Do(ctx, http.MethodPost, "/participantes", p, status, nil)
}

// UpdateParticipant replaces participant ci.
func (c *Client) UpdateParticipant(ctx context.Context, ci string, p model.Participant, status view.Status) error {
	return c.Do(ctx, http.MethodPut, participantPath(ci), p, status, nil)
}

// DeleteParticipant removes participant ci.
func (c *Client) DeleteParticipant(ctx context.Context, ci string, status view.Status) error {
	return c.Do(ctx, http.MethodDelete, participantPath(ci), nil, status, nil)
}

// Reservations lists reservations matching f.
func (c *Client) Reservations(ctx context.Context, f ReservationFilter, status view.Status) ([]model.Reservation, error) {
	q := url.Values{}
	setIf(q, "fecha", f.Date)
	setIf(q, "edificio", f.Building)
	setIf(q, "ci", f.CI)
	var out []model.Reservation
	if err := c.Do(ctx, http.MethodGet, withQuery("/reservas", q), nil, status, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateReservation posts a new reservation. The created record is returned when the backend sends one.
func (c *Client) CreateReservation(ctx context.Context, r model.Reservation, status view.Status) (model.Reservation, error) {
	out := r
	if err := c.Do(ctx, http.MethodPost, "/reservas", r, status, &out); err != nil {
		return model.Reservation{}, err
	}
	return out, nil
}

// UpdateReservationState patches the state of reservation id.
func (c *Client) UpdateReservationState(ctx context.Context, id int64, state model.ReservationState, status view.Status) error {
	path := "/reservas/" + strconv.FormatInt(id, 10)
	return c.Do(ctx, http.MethodPatch, path, stateBody{State: state}, status, nil)
}

// RegisterAttendance records who attended reservation id.
func (c *Client) RegisterAttendance(ctx context.Context, id int64, present []string, sanctionAbsent bool, status view.Status) (model.AttendanceResult, error) {
	if present == nil {
		present = []string{}
	}
	path := fmt.Sprintf("/reservas/%d/asistencia", id)
	var out model.AttendanceResult
	if err := c.Do(ctx, http.MethodPost, path, attendanceBody{Present: present, Sanction: sanctionAbsent}, status, &out); err != nil {
		return model.AttendanceResult{}, err
	}
	return out, nil
}

// Availability lists the slots of one room on one date with their reservation status.
func (c *Client) Availability(ctx context.Context, q AvailabilityQuery, status view.Status) ([]model.SlotAvailability, error) {
	params := url.Values{}
	params.Set("fecha", q.Date)
	params.Set("edificio", q.Building)
	params.Set("nombre_sala", q.Room)
	var out []model.SlotAvailability
	if err := c.Do(ctx, http.MethodGet, withQuery("/disponibilidad", params), nil, status, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sanctions lists sanctions, optionally of one participant.
func (c *Client) Sanctions(ctx context.Context, ci string, status view.Status) ([]model.Sanction, error) {
	q := url.Values{}
	setIf(q, "ci", ci)
	var out []model.Sanction
	if err := c.Do(ctx, http.MethodGet, withQuery("/sanciones", q), nil, status, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSanction posts a new sanction.
func (c *Client) CreateSanction(ctx context.Context, s model.Sanction, status view.Status) error {
	return c.Do(ctx, http.MethodPost, "/sanciones", s, status, nil)
}

// UpdateSanction replaces the sanction keyed by (ci, start).
func (c *Client) UpdateSanction(ctx context.Context, ci, start string, s model.Sanction, status view.Status) error {
	return c.Do(ctx, http.MethodPut, sanctionPath(ci, start), s, status, nil)
}

// DeleteSanction removes the sanction keyed by (ci, start).
func (c *Client) DeleteSanction(ctx context.Context, ci, start string, status view.Status) error {
	return c.Do(ctx, http.MethodDelete, sanctionPath(ci, start), nil, status, nil)
}

// Report runs GET /reportes/<name> and returns the raw JSON for the caller to map.
func (c *Client) Report(ctx context.Context, name string, q ReportQuery, status view.Status) (json.RawMessage, error) {
	params := url.Values{}
	setIf(params, "desde", q.From)
	setIf(params, "hasta", q.To)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	var out json.RawMessage
	if err := c.Do(ctx, http.MethodGet, withQuery("/reportes/"+url.PathEscape(name), params), nil, status, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Login posts the normalised CI and returns the user record.
func (c *Client) Login(ctx context.Context, ci string, status view.Status) (model.User, error) {
	var out model.User
	if err := c.Do(ctx, http.MethodPost, "/auth/login", loginBody{CI: ci}, status, &out); err != nil {
		return model.User{}, err
	}
	return out, nil
}

// Health calls GET /health without touching any status sink.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return HealthStatus{}, err
	}
	return out, nil
}
