package controller

import (
	"context"
	"net/url"
	"strconv"

	"salas/internal/api"
	"salas/internal/model"
	"salas/internal/validate"
	"salas/internal/view"
)

// Availability texts.
const (
	MsgFree          = "Libre"
	MsgReserved      = "Reservado"
	MsgAskQuery      = "Indique fecha, edificio y sala"
	MsgMissingRoom   = "Seleccione edificio y sala"
	availabilityName = "Disponibilidad"
)

// Prefiller receives reservation values chosen elsewhere.
type Prefiller interface {
	Prefill(v view.Values)
	Form(ctx context.Context) view.Form
}

// Availability shows the slots of one room on one date with their reservation
// status, and offers to reserve the free ones.
type Availability struct {
	base
	reservations Prefiller
	query        api.AvailabilityQuery
	slots        []model.SlotAvailability
	table        view.Table
}

// NewAvailability constructs the availability controller. Reserve actions
// prefill target and switch to its tab.
func NewAvailability(d Deps, target Prefiller) *Availability {
	c := &Availability{base: newBase(d, "availability"), reservations: target}
	c.table = RenderAvailability(c.query, nil)
	return c
}

func (c *Availability) Tab() view.Tab { return view.TabAvailability }

func (c *Availability) Title() string { return availabilityName }

func (c *Availability) Table() view.Table { return c.table }

func (c *Availability) Clear() {
	c.Reset()
	c.query = api.AvailabilityQuery{}
	c.slots = nil
	c.table = RenderAvailability(c.query, nil)
}

// Query returns the last query run.
func (c *Availability) Query() api.AvailabilityQuery { return c.query }

// List repeats the last query; before any query it only shows the prompt.
func (c *Availability) List(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if c.query.Date == "" {
		c.table = RenderAvailability(c.query, nil)
		return nil
	}
	return c.run(ctx, c.query)
}

func (c *Availability) run(ctx context.Context, q api.AvailabilityQuery) error {
	slots, err := c.api.Availability(ctx, q, c.view)
	if err != nil {
		return c.failed(ctx, "availability", err)
	}
	c.query = q
	c.slots = slots
	c.table = RenderAvailability(q, slots)
	return nil
}

// RenderAvailability is the pure row mapper of the availability panel. Reserved
// slots carry no action; free slots carry a reserve action holding the query.
func RenderAvailability(q api.AvailabilityQuery, slots []model.SlotAvailability) view.Table {
	t := view.Table{
		Title:   availabilityName,
		Columns: []string{"Turno", "Horario", "Estado"},
		Actions: []view.Action{newAction(view.TabAvailability, "Consultar")},
	}
	if q.Date == "" {
		t.Notice = MsgAskQuery
		return t
	}
	t.Title = availabilityName + " " + q.Building + " · " + q.Room + " · " + q.Date
	for _, s := range slots {
		key := strconv.Itoa(s.SlotID)
		row := view.Row{Key: key}
		if s.Reserved {
			text := MsgReserved
			if s.ReservationState != "" {
				text += " (" + s.ReservationState + ")"
			}
			row.Cells = []string{key, s.Label(), text}
			row.Badge = &view.Badge{Text: MsgReserved, Kind: "reservado"}
		} else {
			row.Cells = []string{key, s.Label(), MsgFree}
			row.Badge = &view.Badge{Text: MsgFree, Kind: "libre"}
			row.Actions = []view.Action{{
				Tab:   view.TabAvailability,
				Kind:  view.ActionReserve,
				Key:   key,
				Value: encodeQuery(q),
				Label: "Reservar " + s.Label(),
			}}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func encodeQuery(q api.AvailabilityQuery) string {
	return url.Values{"fecha": {q.Date}, "edificio": {q.Building}, "nombre_sala": {q.Room}}.Encode()
}

// Form asks for the date, building and room.
func (c *Availability) Form(ctx context.Context) view.Form {
	values := view.Values{
		"fecha":       c.query.Date,
		"edificio":    c.query.Building,
		"nombre_sala": c.query.Room,
	}
	if b := c.query.Building; b != "" && b != c.lookups.RoomsBuilding() {
		if err := c.lookups.LoadRooms(ctx, b); err != nil {
			delete(values, "nombre_sala")
			c.logger.Debug().Err(err).Str("edificio", b).Msg("rooms not loaded")
		}
	}
	return view.Form{
		Tab:   view.TabAvailability,
		ID:    FormMain,
		Title: "Consultar disponibilidad",
		Fields: []view.Field{
			textField("fecha", "Fecha", "AAAA-MM-DD"),
			selectField("edificio", "Edificio", c.lookups.Buildings.Options),
			{Key: "nombre_sala", Label: "Sala", Kind: view.FieldSelect, Options: c.lookups.Rooms.Options, DependsOn: "edificio"},
		},
		Values: values,
	}
}

// Submit runs a query.
func (c *Availability) Submit(ctx context.Context, formID string, v view.Values) error {
	if formID != FormMain {
		return c.unknownForm(formID)
	}
	date, err := validate.Date("Fecha", v.Get("fecha"))
	if err != nil {
		return c.invalid(err)
	}
	q := api.AvailabilityQuery{Date: date, Building: v.Get("edificio"), Room: v.Get("nombre_sala")}
	if q.Building == "" || q.Room == "" {
		return c.invalid(&validate.Error{Field: "nombre_sala", Message: MsgMissingRoom})
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	return c.run(ctx, q)
}

// HandleAction handles the query button and the reserve action.
func (c *Availability) HandleAction(ctx context.Context, a view.Action) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	switch a.Kind {
	case view.ActionNew:
		c.view.ShowForm(c.Form(ctx))
	case view.ActionReserve:
		q, err := url.ParseQuery(a.Value)
		if err != nil || q.Get("fecha") == "" {
			return c.notFound()
		}
		c.reservations.Prefill(view.Values{
			"fecha":       q.Get("fecha"),
			"edificio":    q.Get("edificio"),
			"nombre_sala": q.Get("nombre_sala"),
			"id_turno":    a.Key,
		})
		c.view.SwitchTab(view.TabReservations)
		c.view.ShowForm(c.reservations.Form(ctx))
	}
	return nil
}
