package controller

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"salas/internal/api"
	"salas/internal/model"
	"salas/internal/validate"
	"salas/internal/view"
)

// MsgSanctionsApplied prefixes the attendance notification.
const MsgSanctionsApplied = "Sanciones aplicadas: "

// Reservations manages the reservations panel. Every operation needs a session;
// participants without admin rights only see their own reservations.
type Reservations struct {
	base
	items   []model.Reservation
	table   view.Table
	filter  api.ReservationFilter
	prefill view.Values
	target  int64
}

// NewReservations constructs the reservations controller.
func NewReservations(d Deps) *Reservations {
	return &Reservations{base: newBase(d, "reservations")}
}

func (c *Reservations) Tab() view.Tab { return view.TabReservations }

func (c *Reservations) Clear() {
	c.Reset()
	c.items = nil
	c.table = view.Table{}
	c.filter = api.ReservationFilter{}
	c.prefill = nil
	c.target = 0
}

func (c *Reservations) Title() string { return "Reservas" }

func (c *Reservations) Table() view.Table { return c.table }

func reservationKey(r model.Reservation) string { return strconv.FormatInt(r.ID, 10) }

// List fetches the reservations matching the filter.
func (c *Reservations) List(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	f := c.filter
	if !c.session.IsAdmin() {
		f.CI = c.session.CI()
	}
	items, err := c.api.Reservations(ctx, f, c.view)
	if err != nil {
		return c.failed(ctx, "list reservations", err)
	}
	c.items = items
	c.table = c.Render(items)
	return nil
}

// Render maps reservations to the panel table.
func (c *Reservations) Render(items []model.Reservation) view.Table {
	return RenderReservations(items, c.lookups.SlotLabel)
}

// StateBadge labels a reservation state. Values outside the enumerated set are
// shown verbatim with kind "unknown".
func StateBadge(s model.ReservationState) *view.Badge {
	kind := string(s)
	if !s.Valid() {
		kind = "unknown"
	}
	return &view.Badge{Text: string(s), Kind: kind}
}

// RenderReservations is the pure row mapper of the reservations panel.
func RenderReservations(items []model.Reservation, slotLabel func(int) string) view.Table {
	t := view.Table{
		Title:   "Reservas",
		Columns: []string{"Id", "Edificio", "Sala", "Fecha", "Turno", "Estado", "Participantes"},
		Actions: []view.Action{
			newAction(view.TabReservations, "Nueva reserva"),
			filterAction(view.TabReservations),
		},
	}
	for _, r := range items {
		key := reservationKey(r)
		t.Rows = append(t.Rows, view.Row{
			Key:   key,
			Cells: []string{key, r.Building, r.Room, r.Date, slotLabel(r.SlotID), string(r.State), strings.Join(r.Participants, ", ")},
			Badge: StateBadge(r.State),
			Actions: []view.Action{
				{Tab: view.TabReservations, Kind: view.ActionState, Key: key, Label: "Estado"},
				{Tab: view.TabReservations, Kind: view.ActionAttendance, Key: key, Label: "Asistencia"},
			},
		})
	}
	return t
}

// Prefill seeds the next creation form, e.g. from the availability panel.
func (c *Reservations) Prefill(v view.Values) {
	c.Reset()
	c.prefill = v.Clone()
}

// Form is the creation form. A prefilled building loads its rooms first.
func (c *Reservations) Form(ctx context.Context) view.Form {
	values := view.Values{}
	if !c.session.IsAdmin() {
		values["participantes"] = c.session.CI()
	}
	for k, v := range c.prefill {
		values[k] = v
	}
	if b := values.Get("edificio"); b != "" && b != c.lookups.RoomsBuilding() {
		if err := c.lookups.LoadRooms(ctx, b); err != nil {
			// The room is asked again once the combo can be loaded.
			delete(values, "nombre_sala")
			c.logger.Debug().Err(err).Str("edificio", b).Msg("rooms not loaded")
		}
	}
	estado := selectField("estado", "Estado", stringOptions(stateNames()))
	estado.Optional = true
	return view.Form{
		Tab:   view.TabReservations,
		ID:    FormMain,
		Title: "Nueva reserva",
		Fields: []view.Field{
			selectField("edificio", "Edificio", c.lookups.Buildings.Options),
			{Key: "nombre_sala", Label: "Sala", Kind: view.FieldSelect, Options: c.lookups.Rooms.Options, DependsOn: "edificio"},
			textField("fecha", "Fecha", "AAAA-MM-DD"),
			selectField("id_turno", "Turno", c.lookups.Slots.Options),
			textField("participantes", "Participantes", "CIs separadas por coma"),
			estado,
		},
		Values: values,
	}
}

// FilterForm narrows the list by date and building; admins may also filter by CI.
func (c *Reservations) FilterForm(_ context.Context) view.Form {
	fecha := textField("fecha", "Fecha", "AAAA-MM-DD, vacío para todas")
	fecha.Optional = true
	edificio := selectField("edificio", "Edificio", c.lookups.BuildingFilter.Options)
	edificio.Optional = true
	fields := []view.Field{fecha, edificio}
	if c.session.IsAdmin() {
		ci := textField("ci", "CI", "vacío para todas")
		ci.Optional = true
		fields = append(fields, ci)
	}
	return view.Form{
		Tab:    view.TabReservations,
		ID:     FormFilter,
		Title:  "Filtrar reservas",
		Fields: fields,
		Values: view.Values{"fecha": c.filter.Date, "edificio": c.filter.Building, "ci": c.filter.CI},
	}
}

func (c *Reservations) stateForm(r model.Reservation) view.Form {
	values := view.Values{}
	if r.State.Valid() {
		values["estado"] = string(r.State)
	}
	return view.Form{
		Tab:     view.TabReservations,
		ID:      FormState,
		Title:   fmt.Sprintf("Estado de la reserva %d", r.ID),
		Fields:  []view.Field{selectField("estado", "Estado", stringOptions(stateNames()))},
		Values:  values,
		Editing: true,
	}
}

func (c *Reservations) attendanceForm(r model.Reservation) view.Form {
	present := textField("presentes", "Presentes", "CIs separadas por coma, vacío si nadie asistió")
	present.Optional = true
	return view.Form{
		Tab:   view.TabReservations,
		ID:    FormAttendance,
		Title: fmt.Sprintf("Asistencia de la reserva %d", r.ID),
		Fields: []view.Field{
			present,
			{Key: "sancionar_ausentes", Label: "Sancionar ausentes", Kind: view.FieldBool},
		},
		Values:  view.Values{"presentes": strings.Join(r.Participants, ", ")},
		Editing: true,
	}
}

// Submit handles the creation, filter, state and attendance forms.
func (c *Reservations) Submit(ctx context.Context, formID string, v view.Values) error {
	switch formID {
	case FormMain:
		return c.create(ctx, v)
	case FormFilter:
		return c.applyFilter(ctx, v)
	case FormState:
		return c.changeState(ctx, v)
	case FormAttendance:
		return c.registerAttendance(ctx, v)
	default:
		return c.unknownForm(formID)
	}
}

func (c *Reservations) create(ctx context.Context, v view.Values) error {
	r, err := validate.ReservationFormFrom(v).Reservation()
	if err != nil {
		return c.invalid(err)
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	created, err := c.api.CreateReservation(ctx, r, c.view)
	if err != nil {
		return c.failed(ctx, "create reservation", err)
	}
	c.logger.Info().Int64("id_reserva", created.ID).Str("sala", r.Room).Str("fecha", r.Date).Msg("reservation created")
	c.prefill = nil
	c.Reset()
	return c.List(ctx)
}

func (c *Reservations) applyFilter(ctx context.Context, v view.Values) error {
	f := api.ReservationFilter{Building: v.Get("edificio")}
	if raw := v.Get("fecha"); raw != "" {
		d, err := validate.Date("Fecha", raw)
		if err != nil {
			return c.invalid(err)
		}
		f.Date = d
	}
	if raw := v.Get("ci"); raw != "" {
		ci, err := validate.NationalID(raw)
		if err != nil {
			return c.invalid(err)
		}
		f.CI = ci
	}
	c.filter = f
	return c.List(ctx)
}

func (c *Reservations) changeState(ctx context.Context, v view.Values) error {
	form := validate.StateForm{State: v.Get("estado")}
	if err := form.Validate(); err != nil {
		return c.invalid(err)
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	if c.target == 0 {
		return c.notFound()
	}
	state := model.ReservationState(form.State)
	if err := c.api.UpdateReservationState(ctx, c.target, state, c.view); err != nil {
		return c.failed(ctx, "update reservation state", err)
	}
	c.logger.Info().Int64("id_reserva", c.target).Str("estado", string(state)).Msg("reservation state changed")
	c.target = 0
	c.Reset()
	return c.List(ctx)
}

func (c *Reservations) registerAttendance(ctx context.Context, v view.Values) error {
	present, sanction, err := validate.AttendanceFormFrom(v).Parse()
	if err != nil {
		return c.invalid(err)
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	if c.target == 0 {
		return c.notFound()
	}
	res, err := c.api.RegisterAttendance(ctx, c.target, present, sanction, c.view)
	if err != nil {
		return c.failed(ctx, "register attendance", err)
	}
	if len(res.CreatedSanctions) > 0 {
		c.view.Notify(SanctionsSummary(res.CreatedSanctions))
	}
	c.logger.Info().
		Int64("id_reserva", c.target).
		Int("presentes", len(present)).
		Int("sanciones", len(res.CreatedSanctions)).
		Msg("attendance registered")
	c.target = 0
	c.Reset()
	return c.List(ctx)
}

// SanctionsSummary describes newly created sanctions: "<ci> (<desde> → <hasta>)".
func SanctionsSummary(items []model.Sanction) string {
	parts := make([]string, 0, len(items))
	for _, s := range items {
		parts = append(parts, fmt.Sprintf("%s (%s → %s)", s.CI, s.Start, s.End))
	}
	return MsgSanctionsApplied + strings.Join(parts, ", ")
}

// HandleAction dispatches row and toolbar buttons.
func (c *Reservations) HandleAction(ctx context.Context, a view.Action) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	switch a.Kind {
	case view.ActionNew:
		c.prefill = nil
		c.Reset()
		c.view.ShowForm(c.Form(ctx))
	case view.ActionFilter:
		c.view.ShowForm(c.FilterForm(ctx))
	case view.ActionState, view.ActionAttendance:
		r, ok := find(c.items, a.Key, reservationKey)
		if !ok {
			return c.notFound()
		}
		c.target = r.ID
		c.state = Editing(a.Key)
		if a.Kind == view.ActionState {
			c.view.ShowForm(c.stateForm(r))
		} else {
			c.view.ShowForm(c.attendanceForm(r))
		}
	}
	return nil
}

func stateNames() []string {
	out := make([]string, 0, len(model.ReservationStates))
	for _, s := range model.ReservationStates {
		out = append(out, string(s))
	}
	return out
}
