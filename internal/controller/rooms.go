package controller

import (
	"context"
	"strconv"

	"salas/internal/model"
	"salas/internal/validate"
	"salas/internal/view"
)

// Rooms manages the rooms panel. Listing needs a session, mutations need admin.
type Rooms struct {
	base
	rooms []model.Room
	table view.Table
}

// NewRooms constructs the rooms controller.
func NewRooms(d Deps) *Rooms {
	return &Rooms{base: newBase(d, "rooms")}
}

func (c *Rooms) Tab() view.Tab { return view.TabRooms }

func (c *Rooms) Title() string { return "Salas" }

func (c *Rooms) Table() view.Table { return c.table }

func (c *Rooms) Clear() {
	c.Reset()
	c.rooms = nil
	c.table = view.Table{}
}

// List fetches the rooms of the filter building ("Todos" lists every room).
func (c *Rooms) List(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	rooms, err := c.api.Rooms(ctx, c.lookups.BuildingFilter.Value, c.view)
	if err != nil {
		return c.failed(ctx, "list rooms", err)
	}
	c.rooms = rooms
	c.table = c.Render(rooms)
	return nil
}

// Render maps rooms to the panel table for the current session.
func (c *Rooms) Render(rooms []model.Room) view.Table {
	return RenderRooms(rooms, c.session.IsAdmin())
}

// RenderRooms is the pure row mapper of the rooms panel.
func RenderRooms(rooms []model.Room, admin bool) view.Table {
	t := view.Table{
		Title:   "Salas",
		Columns: []string{"Edificio", "Sala", "Capacidad", "Tipo"},
		Actions: []view.Action{filterAction(view.TabRooms)},
	}
	if admin {
		t.Actions = append([]view.Action{newAction(view.TabRooms, "Nueva sala")}, t.Actions...)
	}
	for _, r := range rooms {
		actions, notice := rowActions(admin, view.TabRooms, r.Key())
		t.Rows = append(t.Rows, view.Row{
			Key:     r.Key(),
			Cells:   []string{r.Building, r.Name, strconv.Itoa(r.Capacity), r.Type},
			Badge:   &view.Badge{Text: r.Type, Kind: r.Type},
			Actions: actions,
			Notice:  notice,
		})
	}
	return t
}

// Form is the create/update form, prefilled when editing.
func (c *Rooms) Form(_ context.Context) view.Form {
	f := view.Form{
		Tab:   view.TabRooms,
		ID:    FormMain,
		Title: "Nueva sala",
		Fields: []view.Field{
			selectField("edificio", "Edificio", c.lookups.Buildings.Options),
			textField("nombre_sala", "Nombre de sala", ""),
			textField("capacidad", "Capacidad", "Número de personas"),
			selectField("tipo_sala", "Tipo de sala", stringOptions(model.RoomTypes)),
		},
		Values: view.Values{},
	}
	if r, ok := find(c.rooms, c.state.Key(), model.Room.Key); ok && c.state.IsEditing() {
		f.Title = "Editar sala " + r.Name
		f.Editing = true
		f.Values = view.Values{
			"edificio":    r.Building,
			"nombre_sala": r.Name,
			"capacidad":   strconv.Itoa(r.Capacity),
			"tipo_sala":   r.Type,
		}
	}
	return f
}

// FilterForm selects the building to list.
func (c *Rooms) FilterForm(_ context.Context) view.Form {
	return view.Form{
		Tab:    view.TabRooms,
		ID:     FormFilter,
		Title:  "Filtrar salas",
		Fields: []view.Field{selectField("edificio", "Edificio", c.lookups.BuildingFilter.Options)},
		Values: view.Values{"edificio": c.lookups.BuildingFilter.Value},
	}
}

// Submit handles the main and filter forms.
func (c *Rooms) Submit(ctx context.Context, formID string, v view.Values) error {
	switch formID {
	case FormFilter:
		c.lookups.BuildingFilter.Select(v.Get("edificio"))
		return c.List(ctx)
	case FormMain:
	default:
		return c.unknownForm(formID)
	}

	room, err := validate.RoomFormFrom(v).Room()
	if err != nil {
		return c.invalid(err)
	}
	if err := c.requireAdmin(); err != nil {
		return err
	}
	if c.state.IsEditing() {
		orig, ok := find(c.rooms, c.state.Key(), model.Room.Key)
		if !ok {
			return c.notFound()
		}
		err = c.api.UpdateRoom(ctx, orig.Building, orig.Name, room, c.view)
	} else {
		err = c.api.CreateRoom(ctx, room, c.view)
	}
	if err != nil {
		return c.failed(ctx, "save room", err)
	}
	c.logger.Info().Str("room", room.Key()).Bool("update", c.state.IsEditing()).Msg("room saved")
	c.Reset()
	if err := c.lookups.LoadBuildings(ctx); err != nil {
		return err
	}
	return c.List(ctx)
}

// HandleAction dispatches row and toolbar buttons.
func (c *Rooms) HandleAction(ctx context.Context, a view.Action) error {
	switch a.Kind {
	case view.ActionFilter:
		c.view.ShowForm(c.FilterForm(ctx))
	case view.ActionNew:
		if err := c.requireAdmin(); err != nil {
			return err
		}
		c.Reset()
		c.view.ShowForm(c.Form(ctx))
	case view.ActionEdit:
		if err := c.requireAdmin(); err != nil {
			return err
		}
		if _, ok := find(c.rooms, a.Key, model.Room.Key); !ok {
			return c.notFound()
		}
		c.state = Editing(a.Key)
		c.view.ShowForm(c.Form(ctx))
	case view.ActionDelete:
		if err := c.requireAdmin(); err != nil {
			return err
		}
		r, ok := find(c.rooms, a.Key, model.Room.Key)
		if !ok {
			return c.notFound()
		}
		if !c.confirm(a, "la sala "+r.Name) {
			return nil
		}
		if err := c.api.DeleteRoom(ctx, r.Building, r.Name, c.view); err != nil {
			return c.failed(ctx, "delete room", err)
		}
		c.logger.Info().Str("room", r.Key()).Msg("room deleted")
		if c.state.Key() == r.Key() {
			c.Reset()
		}
		return c.List(ctx)
	}
	return nil
}
