package controller

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salas/internal/api"
	"salas/internal/model"
	"salas/internal/view"
)

const reservationsJSON = `[
	{"id_reserva":7,"edificio":"Central","nombre_sala":"A-001","fecha":"2024-05-02","id_turno":1,"estado":"activa","participantes":["12345678","41234567"]},
	{"id_reserva":8,"edificio":"Central","nombre_sala":"A-001","fecha":"2024-05-03","id_turno":2,"estado":"pendiente"}
]`

func TestReservations_NonAdminOnlySeesOwn(t *testing.T) {
	h := newHarness(t, &studentUser)
	ctx := context.Background()
	c := NewReservations(h.deps)
	require.NoError(t, c.List(ctx))
	assert.Equal(t, "ci=12345678", h.last().Query)

	require.NoError(t, c.Submit(ctx, FormFilter, view.Values{"fecha": "2024-05-02", "ci": "41234567"}))
	assert.Equal(t, "ci=12345678&fecha=2024-05-02", h.last().Query)

	_, hasCI := c.FilterForm(ctx).Field("ci")
	assert.False(t, hasCI)
}

func TestReservations_AdminFilter(t *testing.T) {
	h := newHarness(t, &adminUser)
	ctx := context.Background()
	c := NewReservations(h.deps)
	require.NoError(t, c.List(ctx))
	assert.Equal(t, "", h.last().Query)

	require.NoError(t, c.Submit(ctx, FormFilter, view.Values{"edificio": "Central", "ci": "4.123.456-7"}))
	assert.Equal(t, "ci=41234567&edificio=Central", h.last().Query)

	_, hasCI := c.FilterForm(ctx).Field("ci")
	assert.True(t, hasCI)
}

func TestReservations_CreateDefaultsToActive(t *testing.T) {
	h := newHarness(t, &studentUser)
	ctx := context.Background()
	h.route(http.MethodPost, "/reservas", 201, `{"id_reserva":31}`)
	c := NewReservations(h.deps)

	form := c.Form(ctx)
	assert.Equal(t, "12345678", form.Values["participantes"])

	require.NoError(t, c.Submit(ctx, FormMain, view.Values{
		"edificio": "Central", "nombre_sala": "A-001", "fecha": "2024-05-02", "id_turno": "1",
		"participantes": "1.234.567-8, 4.123.456-7",
	}))
	post := h.requests(http.MethodPost)
	require.Len(t, post, 1)
	assert.JSONEq(t, `{
		"id_reserva":0,"edificio":"Central","nombre_sala":"A-001","fecha":"2024-05-02","id_turno":1,
		"estado":"activa","participantes":["12345678","41234567"]
	}`, post[0].Body)
}

func TestReservations_CreateRejectsBadParticipant(t *testing.T) {
	h := newHarness(t, &adminUser)
	err := NewReservations(h.deps).Submit(context.Background(), FormMain, view.Values{
		"edificio": "Central", "nombre_sala": "A-001", "fecha": "2024-05-02", "id_turno": "1",
		"participantes": "12345678, 12",
	})
	require.Error(t, err)
	assert.Equal(t, "Formato de CI inválido: 12", h.view.LastStatus().Text)
	assert.Empty(t, h.requests(""))
}

func TestReservations_StateChange(t *testing.T) {
	h := newHarness(t, &adminUser)
	ctx := context.Background()
	h.route(http.MethodGet, "/reservas", 200, reservationsJSON)
	c := NewReservations(h.deps)
	require.NoError(t, c.List(ctx))

	rows := c.Table().Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "activa", rows[0].Badge.Kind)
	assert.Equal(t, "unknown", rows[1].Badge.Kind)
	assert.Equal(t, "pendiente", rows[1].Badge.Text)
	assert.Equal(t, "12345678, 41234567", rows[0].Cells[6])

	require.NoError(t, c.HandleAction(ctx, view.Action{Kind: view.ActionState, Key: "8"}))
	form := h.view.LastForm()
	assert.Equal(t, FormState, form.ID)
	assert.Empty(t, form.Values["estado"])

	assert.Error(t, c.Submit(ctx, FormState, view.Values{"estado": "pendiente"}))
	assert.Empty(t, h.mutations())

	require.NoError(t, c.Submit(ctx, FormState, view.Values{"estado": "cancelada"}))
	patch := h.requests(http.MethodPatch)
	require.Len(t, patch, 1)
	assert.Equal(t, "/reservas/8", patch[0].Path)
	assert.JSONEq(t, `{"estado":"cancelada"}`, patch[0].Body)
	assert.False(t, c.State().IsEditing())
}

func TestReservations_AttendanceNotifiesSanctions(t *testing.T) {
	h := newHarness(t, &adminUser)
	ctx := context.Background()
	h.route(http.MethodGet, "/reservas", 200, reservationsJSON)
	h.route(http.MethodPost, "/reservas/7/asistencia", 200, `{
		"reserva":{"id_reserva":7,"estado":"finalizada"},
		"sanciones_creadas":[{"ci_participante":"41234567","fecha_inicio":"2024-05-02","fecha_fin":"2024-07-01"}]
	}`)
	c := NewReservations(h.deps)
	require.NoError(t, c.List(ctx))
	require.NoError(t, c.HandleAction(ctx, view.Action{Kind: view.ActionAttendance, Key: "7"}))
	assert.Equal(t, "12345678, 41234567", h.view.LastForm().Values["presentes"])

	require.NoError(t, c.Submit(ctx, FormAttendance, view.Values{"presentes": "12345678", "sancionar_ausentes": "sí"}))
	post := h.requests(http.MethodPost)
	require.Len(t, post, 1)
	assert.JSONEq(t, `{"presentes":["12345678"],"sancionar_ausentes":true}`, post[0].Body)
	assert.Contains(t, h.view.Notifications, "Sanciones aplicadas: 41234567 (2024-05-02 → 2024-07-01)")
}

func TestReservations_AttendanceWithoutSanctionsIsQuiet(t *testing.T) {
	h := newHarness(t, &adminUser)
	ctx := context.Background()
	h.route(http.MethodGet, "/reservas", 200, reservationsJSON)
	c := NewReservations(h.deps)
	require.NoError(t, c.List(ctx))
	require.NoError(t, c.HandleAction(ctx, view.Action{Kind: view.ActionAttendance, Key: "7"}))
	require.NoError(t, c.Submit(ctx, FormAttendance, view.Values{"presentes": ""}))
	post := h.requests(http.MethodPost)
	require.Len(t, post, 1)
	assert.JSONEq(t, `{"presentes":[],"sancionar_ausentes":false}`, post[0].Body)
	assert.Empty(t, h.view.Notifications)
}

func TestReservations_SubmitWithoutTarget(t *testing.T) {
	h := newHarness(t, &adminUser)
	err := NewReservations(h.deps).Submit(context.Background(), FormState, view.Values{"estado": "activa"})
	require.Error(t, err)
	assert.Equal(t, MsgNotFound, h.view.LastStatus().Text)
}

func TestSanctionsSummary(t *testing.T) {
	got := SanctionsSummary([]model.Sanction{
		{CI: "1", Start: "2024-01-01", End: "2024-03-01"},
		{CI: "2", Start: "2024-01-01", End: "2024-03-01"},
	})
	assert.Equal(t, "Sanciones aplicadas: 1 (2024-01-01 → 2024-03-01), 2 (2024-01-01 → 2024-03-01)", got)
}

func TestRenderAvailability(t *testing.T) {
	q := api.AvailabilityQuery{Date: "2024-05-02", Building: "Central", Room: "A-001"}
	table := RenderAvailability(q, []model.SlotAvailability{
		{SlotID: 1, Start: "08:00:00", End: "09:00:00", Reserved: true, ReservationState: "activa"},
		{SlotID: 2, Start: "09:00:00", End: "10:00:00"},
	})
	require.Len(t, table.Rows, 2)

	reserved := table.Rows[0]
	assert.Equal(t, []string{"1", "08:00-09:00", "Reservado (activa)"}, reserved.Cells)
	assert.Empty(t, reserved.Actions)

	free := table.Rows[1]
	assert.Equal(t, MsgFree, free.Cells[2])
	require.Len(t, free.Actions, 1)
	assert.Equal(t, view.ActionReserve, free.Actions[0].Kind)
	assert.Equal(t, "2", free.Actions[0].Key)

	empty := RenderAvailability(api.AvailabilityQuery{}, nil)
	assert.Equal(t, MsgAskQuery, empty.Notice)
	assert.True(t, empty.Empty())
}

func TestAvailability_ReservePrefillsReservationForm(t *testing.T) {
	h := newHarness(t, &adminUser)
	ctx := context.Background()
	h.route(http.MethodGet, "/disponibilidad", 200, `[
		{"id_turno":1,"hora_inicio":"08:00:00","hora_fin":"09:00:00","reservado":true,"estado_reserva":"activa"},
		{"id_turno":2,"hora_inicio":"09:00:00","hora_fin":"10:00:00","reservado":false}
	]`)
	h.route(http.MethodGet, "/salas", 200, roomsJSON)

	reservations := NewReservations(h.deps)
	c := NewAvailability(h.deps, reservations)
	require.NoError(t, c.Submit(ctx, FormMain, view.Values{"fecha": "2024-05-02", "edificio": "Central", "nombre_sala": "A-001"}))
	assert.Equal(t, "edificio=Central&fecha=2024-05-02&nombre_sala=A-001", h.last().Query)
	assert.Equal(t, "Central", c.Query().Building)

	free := c.Table().Rows[1]
	require.NoError(t, c.HandleAction(ctx, free.Actions[0]))
	assert.Equal(t, []view.Tab{view.TabReservations}, h.view.Tabs)

	form := h.view.LastForm()
	assert.Equal(t, view.TabReservations, form.Tab)
	assert.Equal(t, "2024-05-02", form.Values["fecha"])
	assert.Equal(t, "Central", form.Values["edificio"])
	assert.Equal(t, "A-001", form.Values["nombre_sala"])
	assert.Equal(t, "2", form.Values["id_turno"])

	sala, ok := form.Field("nombre_sala")
	require.True(t, ok)
	assert.Equal(t, "edificio", sala.DependsOn)
	assert.Len(t, sala.Options, 2)
}

func TestAvailability_RequiresRoom(t *testing.T) {
	h := newHarness(t, &studentUser)
	c := NewAvailability(h.deps, NewReservations(h.deps))
	err := c.Submit(context.Background(), FormMain, view.Values{"fecha": "2024-05-02", "edificio": "Central"})
	require.Error(t, err)
	assert.Equal(t, MsgMissingRoom, h.view.LastStatus().Text)

	err = c.Submit(context.Background(), FormMain, view.Values{"fecha": "02/05/2024", "edificio": "Central", "nombre_sala": "A-001"})
	require.Error(t, err)
	assert.Empty(t, h.requests(""))
}

func TestLookups(t *testing.T) {
	h := newHarness(t, &adminUser)
	ctx := context.Background()
	h.route(http.MethodGet, "/edificios", 200, `["Mullin",{"edificio":"Central"}]`)
	h.route(http.MethodGet, "/turnos", 200, `[{"id_turno":2,"hora_inicio":"09:00:00","hora_fin":"10:00:00"},{"id_turno":1,"hora_inicio":"08:00:00","hora_fin":"09:00:00"}]`)
	h.route(http.MethodGet, "/salas", 200, roomsJSON)
	l := h.deps.Lookups

	require.NoError(t, l.LoadRooms(ctx, ""))
	assert.Empty(t, h.requests(""))
	assert.Empty(t, l.Rooms.Options)

	require.NoError(t, l.Reload(ctx))
	assert.Equal(t, []view.Option{{Value: "Central", Label: "Central"}, {Value: "Mullin", Label: "Mullin"}}, l.Buildings.Options)
	assert.Equal(t, view.AllOption, l.BuildingFilter.Options[0])
	assert.Equal(t, "1", l.Slots.Options[0].Value)
	assert.Equal(t, "08:00-09:00", l.SlotLabel(1))
	assert.Equal(t, "9", l.SlotLabel(9))
	assert.Equal(t, "Central", l.RoomsBuilding())
	assert.Len(t, l.Rooms.Options, 2)
	assert.Equal(t, "edificio=Central", h.last().Query)
}

func TestReports_EffectivenessRender(t *testing.T) {
	def, ok := FindReport("efectividad-reservas")
	require.True(t, ok)

	table := def.Render([]byte(`{"total_reservas":10,"finalizadas":6,"canceladas":3,"sin_asistencia":1,"porcentaje_finalizadas":60.0}`))
	require.Len(t, table.Rows, 4)
	assert.Equal(t, []string{"Finalizadas", "6", "60.0%"}, table.Rows[0].Cells)
	assert.Equal(t, []string{"Canceladas", "3", "30.0%"}, table.Rows[1].Cells)
	assert.Equal(t, []string{"Sin asistencia", "1", "10.0%"}, table.Rows[2].Cells)
	assert.Equal(t, []string{"Total", "10", "100.0%"}, table.Rows[3].Cells)

	rows := def.Render([]byte(`[{"estado":"activa","total":1},{"estado":"finalizada","total":3}]`))
	require.Len(t, rows.Rows, 3)
	assert.Equal(t, []string{"Finalizadas", "3", "75.0%"}, rows.Rows[0].Cells)
	assert.Equal(t, []string{"Activas", "1", "25.0%"}, rows.Rows[1].Cells)
}

func TestReports_GenericRows(t *testing.T) {
	def, ok := FindReport("salas-mas-usadas")
	require.True(t, ok)
	table := def.Render([]byte(`[{"edificio":"Central","nombre_sala":"A-001","total_reservas":4,"total_participantes":9}]`))
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"Central", "A-001", "4", "9"}, table.Rows[0].Cells)
	assert.Equal(t, []string{"Edificio", "Sala", "Reservas", "Participantes"}, table.Columns)

	_, ok = FindReport("uso-por-rol")
	assert.False(t, ok)
}

func TestReports_RunAndExport(t *testing.T) {
	h := newHarness(t, &adminUser)
	ctx := context.Background()
	h.route(http.MethodGet, "/reportes/turnos-mas-demandados", 200, `[{"id_turno":1,"hora_inicio":"08:00:00","hora_fin":"09:00:00","total_reservas":12}]`)
	c := NewReports(h.deps)

	require.NoError(t, c.Submit(ctx, FormMain, view.Values{"reporte": "turnos-mas-demandados", "desde": "2024-01-01", "hasta": "2024-06-30", "limit": "5"}))
	assert.Equal(t, "desde=2024-01-01&hasta=2024-06-30", h.last().Query)
	assert.Equal(t, "Turnos más demandados (2024-01-01 a 2024-06-30)", c.Table().Title)

	var export *view.Action
	for i, a := range c.Table().Actions {
		if a.Kind == view.ActionExport {
			export = &c.Table().Actions[i]
		}
	}
	require.NotNil(t, export)
	require.NoError(t, c.HandleAction(ctx, *export))
	require.Len(t, h.view.Files, 1)
	assert.Equal(t, "turnos-mas-demandados_2024-01-01_2024-06-30.xlsx", h.view.Files[0].Name)
	assert.NotEmpty(t, h.view.Files[0].Data)
}

func TestReports_LimitOnlyWhenSupported(t *testing.T) {
	h := newHarness(t, &adminUser)
	c := NewReports(h.deps)
	require.NoError(t, c.Submit(context.Background(), FormMain, view.Values{"reporte": "top-participantes", "desde": "2024-01-01", "hasta": "2024-06-30", "limit": "5"}))
	assert.Equal(t, "desde=2024-01-01&hasta=2024-06-30&limit=5", h.last().Query)
}

func TestReports_AdminOnly(t *testing.T) {
	h := newHarness(t, &studentUser)
	c := NewReports(h.deps)
	for _, s := range c.Available() {
		assert.NotEqual(t, "sanciones-por-rol", s.Name)
	}
	err := c.Submit(context.Background(), FormMain, view.Values{"reporte": "sanciones-por-rol", "desde": "2024-01-01", "hasta": "2024-06-30"})
	require.Error(t, err)
	assert.Empty(t, h.requests(""))
}

func TestReports_Validation(t *testing.T) {
	h := newHarness(t, &adminUser)
	c := NewReports(h.deps)
	ctx := context.Background()

	require.Error(t, c.Submit(ctx, FormMain, view.Values{"reporte": "nada", "desde": "2024-01-01", "hasta": "2024-06-30"}))
	assert.Equal(t, "Reporte desconocido", h.view.LastStatus().Text)

	require.Error(t, c.Submit(ctx, FormMain, view.Values{"reporte": "salas-no-show", "desde": "2024-06-30", "hasta": "2024-01-01"}))
	assert.Equal(t, "El rango de fechas es inválido", h.view.LastStatus().Text)

	require.Error(t, c.HandleAction(ctx, view.Action{Kind: view.ActionExport}))
	assert.Equal(t, MsgNothingShown, h.view.LastStatus().Text)
	assert.Empty(t, h.requests(""))
}

func runRoleReport(t *testing.T, h *harness, c *Reports) view.Action {
	t.Helper()
	h.route(http.MethodGet, "/reportes/sanciones-por-rol", 200, `[{"rol":"docente","tipo_programa":"grado","total_sanciones":7}]`)
	require.NoError(t, c.Submit(context.Background(), FormMain, view.Values{"reporte": "sanciones-por-rol", "desde": "2024-01-01", "hasta": "2024-01-31"}))
	require.NotEmpty(t, c.Table().Rows)
	for _, a := range c.Table().Actions {
		if a.Kind == view.ActionExport {
			return a
		}
	}
	t.Fatal("no export action")
	return view.Action{}
}

func TestReports_AdminOnlyDroppedWhenUserLosesAdmin(t *testing.T) {
	h := newHarness(t, &adminUser)
	c := NewReports(h.deps)
	runRoleReport(t, h, c)
	before := len(h.requests(""))

	h.session.Save(studentUser)
	require.Error(t, c.List(context.Background()))
	assert.Empty(t, c.Table().Rows)
	assert.Len(t, h.requests(""), before)

	require.NoError(t, c.List(context.Background()))
	assert.Empty(t, c.Table().Rows)
}

func TestReports_ExportRefusedAfterUserChange(t *testing.T) {
	h := newHarness(t, &adminUser)
	c := NewReports(h.deps)
	export := runRoleReport(t, h, c)

	h.session.Save(studentUser)
	require.Error(t, c.HandleAction(context.Background(), export))
	assert.Empty(t, h.view.Files)
}

func TestReports_Clear(t *testing.T) {
	h := newHarness(t, &adminUser)
	c := NewReports(h.deps)
	runRoleReport(t, h, c)

	c.Clear()
	assert.Empty(t, c.Table().Rows)
	assert.Equal(t, "Reportes", c.Table().Title)
	values := c.Form(context.Background()).Values
	assert.Empty(t, values.Get("reporte"))
	assert.Empty(t, values.Get("desde"))
}

func TestReservations_FormDropsRoomWhenRoomsFail(t *testing.T) {
	h := newHarness(t, &adminUser)
	ctx := context.Background()
	h.route(http.MethodGet, "/salas", 200, roomsJSON)
	require.NoError(t, h.deps.Lookups.LoadRooms(ctx, "Central"))
	require.NotEmpty(t, h.deps.Lookups.Rooms.Options)

	h.route(http.MethodGet, "/salas", 500, `{"detail":"down"}`)
	c := NewReservations(h.deps)
	c.Prefill(view.Values{"edificio": "Anexo", "nombre_sala": "A-001", "fecha": "2024-05-02"})

	form := c.Form(ctx)
	_, has := form.Values["nombre_sala"]
	assert.False(t, has)
	assert.Equal(t, "Anexo", form.Values["edificio"])
	sala, ok := form.Field("nombre_sala")
	require.True(t, ok)
	assert.Empty(t, sala.Options)
	assert.Empty(t, h.deps.Lookups.RoomsBuilding())
}

func TestAvailability_FormDropsRoomWhenRoomsFail(t *testing.T) {
	h := newHarness(t, &studentUser)
	ctx := context.Background()
	h.route(http.MethodGet, "/disponibilidad", 200, `[]`)
	h.route(http.MethodGet, "/salas", 500, `{"detail":"down"}`)
	c := NewAvailability(h.deps, NewReservations(h.deps))
	require.NoError(t, c.Submit(ctx, FormMain, view.Values{"fecha": "2024-05-02", "edificio": "Anexo", "nombre_sala": "A-001"}))

	form := c.Form(ctx)
	_, has := form.Values["nombre_sala"]
	assert.False(t, has)
	sala, ok := form.Field("nombre_sala")
	require.True(t, ok)
	assert.Empty(t, sala.Options)
}
