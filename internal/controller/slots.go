package controller

import (
	"context"
	"strconv"

	"salas/internal/api"
	"salas/internal/model"
	"salas/internal/validate"
	"salas/internal/view"
)

// Slots manages the time slot panel. Listing needs a session, mutations need admin.
type Slots struct {
	base
	items []model.Slot
	table view.Table
}

// NewSlots constructs the slots controller.
func NewSlots(d Deps) *Slots {
	return &Slots{base: newBase(d, "slots")}
}

func (c *Slots) Tab() view.Tab { return view.TabSlots }

func (c *Slots) Title() string { return "Turnos" }

func (c *Slots) Clear() {
	c.Reset()
	c.items = nil
	c.table = view.Table{}
}

func (c *Slots) Table() view.Table { return c.table }

func slotKey(s model.Slot) string { return strconv.Itoa(s.ID) }

// List fetches every slot, bypassing the reference cache.
func (c *Slots) List(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	items, err := c.api.Slots(api.Fresh(ctx), c.view)
	if err != nil {
		return c.failed(ctx, "list slots", err)
	}
	c.items = items
	c.table = c.Render(items)
	return nil
}

// Render maps slots to the panel table.
func (c *Slots) Render(items []model.Slot) view.Table {
	return RenderSlots(items, c.session.IsAdmin())
}

// RenderSlots is the pure row mapper of the slots panel.
func RenderSlots(items []model.Slot, admin bool) view.Table {
	t := view.Table{
		Title:   "Turnos",
		Columns: []string{"Turno", "Inicio", "Fin"},
	}
	if admin {
		t.Actions = []view.Action{newAction(view.TabSlots, "Nuevo turno")}
	}
	for _, s := range items {
		key := slotKey(s)
		actions, notice := rowActions(admin, view.TabSlots, key)
		t.Rows = append(t.Rows, view.Row{
			Key:     key,
			Cells:   []string{key, s.Start, s.End},
			Actions: actions,
			Notice:  notice,
		})
	}
	return t
}

// Form is the create/update form, prefilled when editing.
func (c *Slots) Form(_ context.Context) view.Form {
	f := view.Form{
		Tab:   view.TabSlots,
		ID:    FormMain,
		Title: "Nuevo turno",
		Fields: []view.Field{
			textField("id_turno", "Id de turno", ""),
			textField("hora_inicio", "Hora de inicio", "HH:MM"),
			textField("hora_fin", "Hora de fin", "HH:MM"),
		},
		Values: view.Values{},
	}
	if s, ok := find(c.items, c.state.Key(), slotKey); ok && c.state.IsEditing() {
		f.Title = "Editar turno " + slotKey(s)
		f.Editing = true
		f.Values = view.Values{"id_turno": slotKey(s), "hora_inicio": s.Start, "hora_fin": s.End}
	}
	return f
}

// Submit validates and saves a slot.
func (c *Slots) Submit(ctx context.Context, formID string, v view.Values) error {
	if formID != FormMain {
		return c.unknownForm(formID)
	}
	slot, err := validate.SlotFormFrom(v).Slot()
	if err != nil {
		return c.invalid(err)
	}
	if err := c.requireAdmin(); err != nil {
		return err
	}
	if c.state.IsEditing() {
		id, _ := strconv.Atoi(c.state.Key())
		err = c.api.UpdateSlot(ctx, id, slot, c.view)
	} else {
		err = c.api.CreateSlot(ctx, slot, c.view)
	}
	if err != nil {
		return c.failed(ctx, "save slot", err)
	}
	c.logger.Info().Int("id_turno", slot.ID).Bool("update", c.state.IsEditing()).Msg("slot saved")
	c.Reset()
	if err := c.lookups.LoadSlots(ctx); err != nil {
		return err
	}
	return c.List(ctx)
}

// HandleAction dispatches row and toolbar buttons.
func (c *Slots) HandleAction(ctx context.Context, a view.Action) error {
	if err := c.requireAdmin(); err != nil {
		return err
	}
	switch a.Kind {
	case view.ActionNew:
		c.Reset()
		c.view.ShowForm(c.Form(ctx))
	case view.ActionEdit:
		if _, ok := find(c.items, a.Key, slotKey); !ok {
			return c.notFound()
		}
		c.state = Editing(a.Key)
		c.view.ShowForm(c.Form(ctx))
	case view.ActionDelete:
		id, err := validate.PositiveInt("Id de turno", a.Key)
		if err != nil {
			return c.invalid(err)
		}
		if !c.confirm(a, "el turno "+a.Key) {
			return nil
		}
		if err := c.api.DeleteSlot(ctx, id, c.view); err != nil {
			return c.failed(ctx, "delete slot", err)
		}
		c.logger.Info().Int("id_turno", id).Msg("slot deleted")
		if c.state.Key() == a.Key {
			c.Reset()
		}
		if err := c.lookups.LoadSlots(ctx); err != nil {
			return err
		}
		return c.List(ctx)
	}
	return nil
}
