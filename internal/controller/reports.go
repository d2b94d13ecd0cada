package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"salas/internal/api"
	"salas/internal/export"
	"salas/internal/validate"
	"salas/internal/view"
)

// Column maps one JSON key of a report row to a header.
type Column struct {
	Key    string
	Header string
}

// ReportDef describes one server-side report.
type ReportDef struct {
	Name      string
	Title     string
	Columns   []Column
	Limit     bool
	AdminOnly bool
	render    func(def ReportDef, raw json.RawMessage) view.Table
}

// Render maps the raw report body to a table.
func (s ReportDef) Render(raw json.RawMessage) view.Table {
	if s.render != nil {
		return s.render(s, raw)
	}
	return renderRows(s, raw)
}

// Catalogue lists the available reports in menu order.
var Catalogue = []ReportDef{
	{
		Name:  "turnos-mas-demandados",
		Title: "Turnos más demandados",
		Columns: []Column{
			{"id_turno", "Turno"}, {"hora_inicio", "Inicio"}, {"hora_fin", "Fin"}, {"total_reservas", "Reservas"},
		},
	},
	{
		Name:  "salas-mas-usadas",
		Title: "Salas más usadas",
		Columns: []Column{
			{"edificio", "Edificio"}, {"nombre_sala", "Sala"}, {"total_reservas", "Reservas"}, {"total_participantes", "Participantes"},
		},
		Limit: true,
	},
	{
		Name:  "promedio-participantes-por-sala",
		Title: "Promedio de participantes por sala",
		Columns: []Column{
			{"edificio", "Edificio"}, {"nombre_sala", "Sala"}, {"promedio_participantes", "Promedio"},
		},
	},
	{
		Name:  "reservas-por-carrera-facultad",
		Title: "Reservas por carrera y facultad",
		Columns: []Column{
			{"id_facultad", "Facultad"}, {"nombre_programa", "Programa"}, {"total_reservas", "Reservas"},
		},
	},
	{
		Name:  "ocupacion-por-edificio",
		Title: "Ocupación por edificio",
		Columns: []Column{
			{"edificio", "Edificio"}, {"total_reservas", "Reservas"}, {"porcentaje_ocupacion", "Ocupación %"},
		},
	},
	{
		Name:  "reservas-asistencias-por-rol",
		Title: "Reservas y asistencias por rol",
		Columns: []Column{
			{"rol", "Rol"}, {"tipo_programa", "Programa"}, {"total_reservas", "Reservas"},
			{"con_asistencia", "Con asistencia"}, {"sin_asistencia", "Sin asistencia"}, {"canceladas", "Canceladas"},
		},
	},
	{
		Name:  "sanciones-por-rol",
		Title: "Sanciones por rol",
		Columns: []Column{
			{"rol", "Rol"}, {"tipo_programa", "Programa"}, {"total_sanciones", "Sanciones"},
		},
		AdminOnly: true,
	},
	{
		Name:    "efectividad-reservas",
		Title:   "Efectividad de reservas",
		Columns: []Column{{"resultado", "Resultado"}, {"total", "Reservas"}, {"porcentaje", "Porcentaje"}},
		render:  renderEffectiveness,
	},
	{
		Name:  "top-participantes",
		Title: "Participantes con más reservas",
		Columns: []Column{
			{"ci_participante", "CI"}, {"total_reservas", "Reservas"},
		},
		Limit: true,
	},
	{
		Name:  "salas-no-show",
		Title: "Salas con más inasistencias",
		Columns: []Column{
			{"edificio", "Edificio"}, {"nombre_sala", "Sala"}, {"total_sin_asistencia", "Sin asistencia"},
		},
		Limit: true,
	},
	{
		Name:  "distribucion-semana-turno",
		Title: "Distribución por día y turno",
		Columns: []Column{
			{"dia_semana", "Día"}, {"id_turno", "Turno"}, {"total_reservas", "Reservas"},
		},
	},
}

// FindReport looks a report up by name.
func FindReport(name string) (ReportDef, bool) {
	for _, s := range Catalogue {
		if s.Name == name {
			return s, true
		}
	}
	return ReportDef{}, false
}

func headers(cols []Column) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.Header)
	}
	return out
}

// renderRows is the generic mapper: one row per array element (or a single
// object), one cell per declared column.
func renderRows(def ReportDef, raw json.RawMessage) view.Table {
	t := view.Table{Title: def.Title, Columns: headers(def.Columns)}
	res := gjson.ParseBytes(raw)
	var items []gjson.Result
	switch {
	case res.IsArray():
		items = res.Array()
	case res.IsObject():
		items = []gjson.Result{res}
	}
	for i, item := range items {
		cells := make([]string, 0, len(def.Columns))
		for _, col := range def.Columns {
			cells = append(cells, item.Get(col.Key).String())
		}
		t.Rows = append(t.Rows, view.Row{Key: strconv.Itoa(i), Cells: cells})
	}
	return t
}

type outcome struct {
	key   string
	state string
	label string
}

var outcomes = []outcome{
	{"finalizadas", "finalizada", "Finalizadas"},
	{"activas", "activa", "Activas"},
	{"canceladas", "cancelada", "Canceladas"},
	{"sin_asistencia", "sin_asistencia", "Sin asistencia"},
}

// renderEffectiveness builds the percentage breakdown by reservation outcome.
// It accepts the summary object (total_reservas, <outcome>, porcentaje_<outcome>)
// or the raw [{estado, total}] rows.
func renderEffectiveness(def ReportDef, raw json.RawMessage) view.Table {
	t := view.Table{Title: def.Title, Columns: headers(def.Columns)}
	res := gjson.ParseBytes(raw)

	counts := map[string]float64{}
	pcts := map[string]float64{}
	var total float64
	switch {
	case res.IsArray():
		for _, item := range res.Array() {
			counts[item.Get("estado").String()] += item.Get("total").Float()
			total += item.Get("total").Float()
		}
		for _, o := range outcomes {
			if v, ok := counts[o.state]; ok {
				counts[o.key] = v
			}
		}
	case res.IsObject():
		total = res.Get("total_reservas").Float()
		for _, o := range outcomes {
			if v := res.Get(o.key); v.Exists() {
				counts[o.key] = v.Float()
			}
			if v := res.Get("porcentaje_" + o.key); v.Exists() {
				pcts[o.key] = v.Float()
			}
		}
	default:
		return t
	}

	for _, o := range outcomes {
		count, hasCount := counts[o.key]
		pct, hasPct := pcts[o.key]
		if !hasCount && !hasPct {
			continue
		}
		if !hasPct && total > 0 {
			pct = count / total * 100
		}
		countText := ""
		if hasCount {
			countText = strconv.FormatFloat(count, 'f', -1, 64)
		}
		t.Rows = append(t.Rows, view.Row{
			Key:   o.key,
			Cells: []string{o.label, countText, fmt.Sprintf("%.1f%%", pct)},
			Badge: &view.Badge{Text: o.label, Kind: o.state},
		})
	}
	t.Rows = append(t.Rows, view.Row{
		Key:   "total",
		Cells: []string{"Total", strconv.FormatFloat(total, 'f', -1, 64), "100.0%"},
	})
	return t
}

// Reports runs the read-only report queries and exports their result.
type Reports struct {
	base
	current *ReportDef
	query   api.ReportQuery
	table   view.Table
}

// NewReports constructs the reports controller.
func NewReports(d Deps) *Reports {
	c := &Reports{base: newBase(d, "reports")}
	c.table = c.emptyTable()
	return c
}

func (c *Reports) Tab() view.Tab { return view.TabReports }

func (c *Reports) Title() string { return "Reportes" }

func (c *Reports) Table() view.Table { return c.table }

func (c *Reports) Clear() {
	c.Reset()
	c.current = nil
	c.query = api.ReportQuery{}
	c.table = c.emptyTable()
}

func (c *Reports) emptyTable() view.Table {
	return view.Table{
		Title:   "Reportes",
		Notice:  "Elija un reporte y un rango de fechas",
		Actions: []view.Action{newAction(view.TabReports, "Generar reporte")},
	}
}

// Available lists the reports the current session may run.
func (c *Reports) Available() []ReportDef {
	admin := c.session.IsAdmin()
	out := make([]ReportDef, 0, len(Catalogue))
	for _, s := range Catalogue {
		if s.AdminOnly && !admin {
			continue
		}
		out = append(out, s)
	}
	return out
}

// List re-runs the current report, if any.
func (c *Reports) List(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if c.current == nil {
		c.table = c.emptyTable()
		return nil
	}
	return c.run(ctx, *c.current, c.query)
}

func (c *Reports) run(ctx context.Context, def ReportDef, q api.ReportQuery) error {
	if def.AdminOnly {
		if err := c.requireAdmin(); err != nil {
			c.current = nil
			c.table = c.emptyTable()
			return err
		}
	}
	if !def.Limit {
		q.Limit = 0
	}
	raw, err := c.api.Report(ctx, def.Name, q, c.view)
	if err != nil {
		return c.failed(ctx, "report "+def.Name, err)
	}
	c.current = &def
	c.query = q
	t := def.Render(raw)
	t.Title = fmt.Sprintf("%s (%s a %s)", def.Title, q.From, q.To)
	t.Actions = []view.Action{newAction(view.TabReports, "Generar reporte")}
	if len(t.Rows) > 0 {
		t.Actions = append(t.Actions, view.Action{Tab: view.TabReports, Kind: view.ActionExport, Key: def.Name, Label: "Exportar"})
	}
	c.table = t
	return nil
}

// Form selects the report and its range.
func (c *Reports) Form(_ context.Context) view.Form {
	opts := make([]view.Option, 0, len(Catalogue))
	for _, s := range c.Available() {
		opts = append(opts, view.Option{Value: s.Name, Label: s.Title})
	}
	limit := textField("limit", "Límite", "Solo para reportes con límite, vacío para todos")
	limit.Optional = true
	values := view.Values{"desde": c.query.From, "hasta": c.query.To}
	if c.current != nil {
		values["reporte"] = c.current.Name
	}
	if c.query.Limit > 0 {
		values["limit"] = strconv.Itoa(c.query.Limit)
	}
	return view.Form{
		Tab:   view.TabReports,
		ID:    FormMain,
		Title: "Generar reporte",
		Fields: []view.Field{
			selectField("reporte", "Reporte", opts),
			textField("desde", "Desde", "AAAA-MM-DD"),
			textField("hasta", "Hasta", "AAAA-MM-DD"),
			limit,
		},
		Values: values,
	}
}

// Submit validates the range and runs the chosen report.
func (c *Reports) Submit(ctx context.Context, formID string, v view.Values) error {
	if formID != FormMain {
		return c.unknownForm(formID)
	}
	def, ok := FindReport(v.Get("reporte"))
	if !ok {
		return c.invalid(&validate.Error{Field: "reporte", Message: "Reporte desconocido"})
	}
	rq := validate.ReportQueryFrom(v)
	if err := rq.Validate(); err != nil {
		return c.invalid(err)
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	q := api.ReportQuery{From: rq.From, To: rq.To}
	if rq.Limit != "" {
		q.Limit, _ = strconv.Atoi(rq.Limit)
	}
	return c.run(ctx, def, q)
}

// HandleAction handles the generate and export buttons.
func (c *Reports) HandleAction(ctx context.Context, a view.Action) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	switch a.Kind {
	case view.ActionNew:
		c.view.ShowForm(c.Form(ctx))
	case view.ActionExport:
		if c.current == nil || c.table.Empty() {
			c.view.SetStatus(view.StatusError, MsgNothingShown)
			return reported(fmt.Errorf("nothing to export"))
		}
		if c.current.AdminOnly {
			if err := c.requireAdmin(); err != nil {
				return err
			}
		}
		data, err := export.Table(c.table)
		if err != nil {
			c.view.SetStatus(view.StatusError, "No se pudo exportar el reporte")
			return reported(fmt.Errorf("export %s: %w", c.current.Name, err))
		}
		c.view.SendFile(export.FileName(c.current.Name, c.query.From, c.query.To), data)
		c.view.SetStatus(view.StatusOK, api.MsgDone)
	}
	return nil
}
