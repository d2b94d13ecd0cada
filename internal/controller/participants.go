package controller

import (
	"context"

	"salas/internal/model"
	"salas/internal/validate"
	"salas/internal/view"
)

// Participants manages the participants panel; every operation needs admin.
type Participants struct {
	base
	items []model.Participant
	table view.Table
}

// NewParticipants constructs the participants controller.
func NewParticipants(d Deps) *Participants {
	return &Participants{base: newBase(d, "participants")}
}

func (c *Participants) Tab() view.Tab { return view.TabParticipants }

func (c *Participants) Title() string { return "Participantes" }

func (c *Participants) Clear() {
	c.Reset()
	c.items = nil
	c.table = view.Table{}
}

func (c *Participants) Table() view.Table { return c.table }

func participantKey(p model.Participant) string { return p.CI }

// List fetches every participant.
func (c *Participants) List(ctx context.Context) error {
	if err := c.requireAdmin(); err != nil {
		return err
	}
	items, err := c.api.Participants(ctx, c.view)
	if err != nil {
		return c.failed(ctx, "list participants", err)
	}
	c.items = items
	c.table = c.Render(items)
	return nil
}

// Render maps participants to the panel table.
func (c *Participants) Render(items []model.Participant) view.Table {
	return RenderParticipants(items, c.session.IsAdmin())
}

// RenderParticipants is the pure row mapper of the participants panel.
func RenderParticipants(items []model.Participant, admin bool) view.Table {
	t := view.Table{
		Title:   "Participantes",
		Columns: []string{"CI", "Nombre", "Email", "Tipo"},
	}
	if admin {
		t.Actions = []view.Action{newAction(view.TabParticipants, "Nuevo participante")}
	}
	for _, p := range items {
		actions, notice := rowActions(admin, view.TabParticipants, p.CI)
		t.Rows = append(t.Rows, view.Row{
			Key:     p.CI,
			Cells:   []string{p.CI, p.FullName(), p.Email, p.Type},
			Badge:   &view.Badge{Text: p.Type, Kind: p.Type},
			Actions: actions,
			Notice:  notice,
		})
	}
	return t
}

// Form is the create/update form, prefilled when editing.
func (c *Participants) Form(_ context.Context) view.Form {
	f := view.Form{
		Tab:   view.TabParticipants,
		ID:    FormMain,
		Title: "Nuevo participante",
		Fields: []view.Field{
			textField("ci", "CI", "Ej. 1.234.567-8"),
			textField("nombre", "Nombre", ""),
			textField("apellido", "Apellido", ""),
			textField("email", "Email", ""),
			selectField("tipo_participante", "Tipo de participante", stringOptions(model.ParticipantTypes)),
		},
		Values: view.Values{},
	}
	if p, ok := find(c.items, c.state.Key(), participantKey); ok && c.state.IsEditing() {
		f.Title = "Editar participante " + p.CI
		f.Editing = true
		f.Values = view.Values{
			"ci":                p.CI,
			"nombre":            p.FirstName,
			"apellido":          p.LastName,
			"email":             p.Email,
			"tipo_participante": p.Type,
		}
	}
	return f
}

// Submit validates and saves a participant.
func (c *Participants) Submit(ctx context.Context, formID string, v view.Values) error {
	if formID != FormMain {
		return c.unknownForm(formID)
	}
	p, err := validate.ParticipantFormFrom(v).Participant()
	if err != nil {
		return c.invalid(err)
	}
	if err := c.requireAdmin(); err != nil {
		return err
	}
	if c.state.IsEditing() {
		err = c.api.UpdateParticipant(ctx, c.state.Key(), p, c.view)
	} else {
		err = c.api.CreateParticipant(ctx, p, c.view)
	}
	if err != nil {
		return c.failed(ctx, "save participant", err)
	}
	c.logger.Info().Str("ci", p.CI).Bool("update", c.state.IsEditing()).Msg("participant saved")
	c.Reset()
	return c.List(ctx)
}

// HandleAction dispatches row and toolbar buttons.
func (c *Participants) HandleAction(ctx context.Context, a view.Action) error {
	if err := c.requireAdmin(); err != nil {
		return err
	}
	switch a.Kind {
	case view.ActionNew:
		c.Reset()
		c.view.ShowForm(c.Form(ctx))
	case view.ActionEdit:
		if _, ok := find(c.items, a.Key, participantKey); !ok {
			return c.notFound()
		}
		c.state = Editing(a.Key)
		c.view.ShowForm(c.Form(ctx))
	case view.ActionDelete:
		ci, err := validate.NationalID(a.Key)
		if err != nil {
			return c.invalid(err)
		}
		if !c.confirm(a, "el participante "+ci) {
			return nil
		}
		if err := c.api.DeleteParticipant(ctx, ci, c.view); err != nil {
			return c.failed(ctx, "delete participant", err)
		}
		c.logger.Info().Str("ci", ci).Msg("participant deleted")
		if c.state.Key() == a.Key {
			c.Reset()
		}
		return c.List(ctx)
	}
	return nil
}
