package controller

import (
	"context"
	"strings"
	"time"

	"salas/internal/model"
	"salas/internal/validate"
	"salas/internal/view"
)

// Sanctions manages the sanctions panel; every operation needs admin.
type Sanctions struct {
	base
	items    []model.Sanction
	table    view.Table
	filterCI string
	now      func() time.Time
}

// NewSanctions constructs the sanctions controller.
func NewSanctions(d Deps) *Sanctions {
	return &Sanctions{base: newBase(d, "sanctions"), now: time.Now}
}

func (c *Sanctions) Tab() view.Tab { return view.TabSanctions }

func (c *Sanctions) Clear() {
	c.Reset()
	c.items = nil
	c.table = view.Table{}
	c.filterCI = ""
}

func (c *Sanctions) Title() string { return "Sanciones" }

func (c *Sanctions) Table() view.Table { return c.table }

// List fetches the sanctions, optionally of the filtered participant.
func (c *Sanctions) List(ctx context.Context) error {
	if err := c.requireAdmin(); err != nil {
		return err
	}
	items, err := c.api.Sanctions(ctx, c.filterCI, c.view)
	if err != nil {
		return c.failed(ctx, "list sanctions", err)
	}
	c.items = items
	c.table = c.Render(items)
	return nil
}

// Render maps sanctions to the panel table.
func (c *Sanctions) Render(items []model.Sanction) view.Table {
	return RenderSanctions(items, c.session.IsAdmin(), c.now().Format("2006-01-02"))
}

// RenderSanctions is the pure row mapper of the sanctions panel. today decides
// the vigente/cumplida badge.
func RenderSanctions(items []model.Sanction, admin bool, today string) view.Table {
	t := view.Table{
		Title:   "Sanciones",
		Columns: []string{"CI", "Desde", "Hasta", "Situación"},
		Actions: []view.Action{filterAction(view.TabSanctions)},
	}
	if admin {
		t.Actions = append([]view.Action{newAction(view.TabSanctions, "Nueva sanción")}, t.Actions...)
	}
	for _, s := range items {
		badge := &view.Badge{Text: "cumplida", Kind: "expired"}
		switch {
		case s.Start > today:
			badge = &view.Badge{Text: "futura", Kind: "pending"}
		case s.End >= today:
			badge = &view.Badge{Text: "vigente", Kind: "active"}
		}
		actions, notice := rowActions(admin, view.TabSanctions, s.Key())
		t.Rows = append(t.Rows, view.Row{
			Key:     s.Key(),
			Cells:   []string{s.CI, s.Start, s.End, badge.Text},
			Badge:   badge,
			Actions: actions,
			Notice:  notice,
		})
	}
	return t
}

// Form is the create/update form, prefilled when editing.
func (c *Sanctions) Form(_ context.Context) view.Form {
	f := view.Form{
		Tab:   view.TabSanctions,
		ID:    FormMain,
		Title: "Nueva sanción",
		Fields: []view.Field{
			textField("ci_participante", "CI", "Ej. 1.234.567-8"),
			textField("fecha_inicio", "Fecha de inicio", "AAAA-MM-DD"),
			textField("fecha_fin", "Fecha de fin", "AAAA-MM-DD"),
		},
		Values: view.Values{},
	}
	if s, ok := find(c.items, c.state.Key(), model.Sanction.Key); ok && c.state.IsEditing() {
		f.Title = "Editar sanción de " + s.CI
		f.Editing = true
		f.Values = view.Values{"ci_participante": s.CI, "fecha_inicio": s.Start, "fecha_fin": s.End}
	}
	return f
}

// FilterForm narrows the list to one participant.
func (c *Sanctions) FilterForm(_ context.Context) view.Form {
	ci := textField("ci", "CI", "vacío para todas")
	ci.Optional = true
	return view.Form{
		Tab:    view.TabSanctions,
		ID:     FormFilter,
		Title:  "Filtrar sanciones",
		Fields: []view.Field{ci},
		Values: view.Values{"ci": c.filterCI},
	}
}

// splitKey recovers (ci, fecha_inicio) from a row key and normalises the CI.
func splitKey(key string) (string, string, error) {
	rawCI, start, _ := strings.Cut(key, "/")
	ci, err := validate.NationalID(rawCI)
	if err != nil {
		return "", "", err
	}
	return ci, start, nil
}

// Submit handles the main and filter forms.
func (c *Sanctions) Submit(ctx context.Context, formID string, v view.Values) error {
	switch formID {
	case FormFilter:
		filter := ""
		if raw := v.Get("ci"); raw != "" {
			ci, err := validate.NationalID(raw)
			if err != nil {
				return c.invalid(err)
			}
			filter = ci
		}
		c.filterCI = filter
		return c.List(ctx)
	case FormMain:
	default:
		return c.unknownForm(formID)
	}

	s, err := validate.SanctionFormFrom(v).Sanction()
	if err != nil {
		return c.invalid(err)
	}
	if err := c.requireAdmin(); err != nil {
		return err
	}
	if c.state.IsEditing() {
		ci, start, kerr := splitKey(c.state.Key())
		if kerr != nil {
			return c.invalid(kerr)
		}
		err = c.api.UpdateSanction(ctx, ci, start, s, c.view)
	} else {
		err = c.api.CreateSanction(ctx, s, c.view)
	}
	if err != nil {
		return c.failed(ctx, "save sanction", err)
	}
	c.logger.Info().Str("ci", s.CI).Str("desde", s.Start).Bool("update", c.state.IsEditing()).Msg("sanction saved")
	c.Reset()
	return c.List(ctx)
}

// HandleAction dispatches row and toolbar buttons. The CI of a delete is
// normalised before anything is sent.
func (c *Sanctions) HandleAction(ctx context.Context, a view.Action) error {
	if err := c.requireAdmin(); err != nil {
		return err
	}
	switch a.Kind {
	case view.ActionFilter:
		c.view.ShowForm(c.FilterForm(ctx))
	case view.ActionNew:
		c.Reset()
		c.view.ShowForm(c.Form(ctx))
	case view.ActionEdit:
		if _, ok := find(c.items, a.Key, model.Sanction.Key); !ok {
			return c.notFound()
		}
		c.state = Editing(a.Key)
		c.view.ShowForm(c.Form(ctx))
	case view.ActionDelete:
		ci, start, err := splitKey(a.Key)
		if err != nil {
			return c.invalid(err)
		}
		if !c.confirm(a, "la sanción de "+ci+" desde "+start) {
			return nil
		}
		if err := c.api.DeleteSanction(ctx, ci, start, c.view); err != nil {
			return c.failed(ctx, "delete sanction", err)
		}
		c.logger.Info().Str("ci", ci).Str("desde", start).Msg("sanction deleted")
		if c.state.Key() == a.Key {
			c.Reset()
		}
		return c.List(ctx)
	}
	return nil
}
