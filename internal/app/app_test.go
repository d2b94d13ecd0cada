package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salas/internal/api"
	"salas/internal/events"
	"salas/internal/session"
	"salas/internal/view"
	"salas/internal/view/viewtest"
)

type backend struct {
	mu     sync.Mutex
	paths  []string
	logins []string
	users  map[string]string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/auth/login":
		var body struct {
			CI string `json:"ci"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		b.logins = append(b.logins, body.CI)
		user, ok := b.users[body.CI]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Participante no encontrado"}`)
			return
		}
		_, _ = io.WriteString(w, user)
	case "/edificios":
		_, _ = io.WriteString(w, `["Central"]`)
	case "/turnos":
		_, _ = io.WriteString(w, `[{"id_turno":1,"hora_inicio":"08:00:00","hora_fin":"09:00:00"}]`)
	case "/salas":
		_, _ = io.WriteString(w, `[{"edificio":"Central","nombre_sala":"A-001","capacidad":6,"tipo_sala":"libre"}]`)
	case "/reportes/sanciones-por-rol":
		_, _ = io.WriteString(w, `[{"rol":"docente","tipo_programa":"grado","total_sanciones":7}]`)
	default:
		_, _ = io.WriteString(w, `[]`)
	}
}

func (b *backend) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.paths...)
}

func (b *backend) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = nil
}

func newApp(t *testing.T) (*App, *backend, *viewtest.Recorder) {
	t.Helper()
	b := &backend{users: map[string]string{
		"12345678": `{"ci":"12345678","nombre":"Matías","apellido":"Sastre","tipo_participante":"estudiante"}`,
		"11111111": `{"ci":"11111111","nombre":"Ana","apellido":"Admin","tipo_participante":"estudiante","es_admin":true}`,
	}}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	rec := &viewtest.Recorder{}
	client := api.New(srv.URL, "", time.Second, zerolog.Nop())
	return New(client, session.NewPolicy(nil), rec, zerolog.Nop()), b, rec
}

func TestLogin_NormalisesCI(t *testing.T) {
	a, b, _ := newApp(t)
	require.NoError(t, a.Login(context.Background(), "1.234.567-8"))
	assert.Equal(t, []string{"12345678"}, b.logins)
	assert.Equal(t, LoggedIn, a.State())
	assert.Equal(t, "12345678", a.Session().CI())
}

func TestLogin_BootstrapOrder(t *testing.T) {
	a, b, _ := newApp(t)
	require.NoError(t, a.Login(context.Background(), "12345678"))
	assert.Equal(t, []string{
		"POST /auth/login",
		"GET /edificios",
		"GET /turnos",
		"GET /salas",
		"GET /salas",
	}, b.seen())
	assert.Equal(t, view.TabRooms, a.ActiveTab())
	ctl, ok := a.Active()
	require.True(t, ok)
	assert.Len(t, ctl.Table().Rows, 1)
}

func TestLogin_Failures(t *testing.T) {
	a, b, rec := newApp(t)
	ctx := context.Background()

	err := a.Login(ctx, "12")
	require.Error(t, err)
	assert.True(t, IsReported(err))
	assert.Equal(t, MsgBadCI, rec.LastStatus().Text)
	assert.Empty(t, b.seen())

	err = a.Login(ctx, "4.123.456-7")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, api.StatusOf(err))
	assert.Equal(t, MsgUnknownCI, rec.LastStatus().Text)
	assert.Equal(t, LoggedOut, a.State())
	assert.Empty(t, a.VisibleTabs())
}

func TestTabsFollowRole(t *testing.T) {
	a, _, _ := newApp(t)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, "11111111"))
	assert.Equal(t, Tabs, a.VisibleTabs())
	require.NoError(t, a.Open(ctx, view.TabSanctions))
	assert.Equal(t, view.TabSanctions, a.ActiveTab())

	require.NoError(t, a.Login(ctx, "12345678"))
	assert.NotContains(t, a.VisibleTabs(), view.TabSanctions)
	assert.NotContains(t, a.VisibleTabs(), view.TabParticipants)
	assert.Equal(t, view.TabRooms, a.ActiveTab())

	err := a.Open(ctx, view.TabParticipants)
	require.Error(t, err)
	assert.True(t, IsReported(err))
	assert.Equal(t, view.TabRooms, a.ActiveTab())
}

func TestControllersInitialisedOnce(t *testing.T) {
	a, _, _ := newApp(t)
	ctx := context.Background()
	require.NoError(t, a.Login(ctx, "12345678"))
	first, _ := a.Controller(view.TabRooms)
	a.Logout()
	assert.Equal(t, LoggedOut, a.State())
	assert.Empty(t, a.VisibleTabs())
	assert.Equal(t, view.Tab(""), a.ActiveTab())

	require.NoError(t, a.Login(ctx, "12345678"))
	second, _ := a.Controller(view.TabRooms)
	assert.Same(t, first, second)
}

func TestLoggedOutShellRejectsEverything(t *testing.T) {
	a, b, rec := newApp(t)
	ctx := context.Background()
	assert.Error(t, a.Reload(ctx))
	assert.Error(t, a.HandleAction(ctx, view.Action{Tab: view.TabRooms, Kind: view.ActionNew}))
	assert.Error(t, a.Submit(ctx, view.Form{Tab: view.TabRooms, ID: "main"}, view.Values{}))
	assert.Equal(t, session.MsgLoginRequired, rec.LastStatus().Text)
	assert.Empty(t, b.seen())
}

func TestEventsPublished(t *testing.T) {
	a, _, _ := newApp(t)
	ctx := context.Background()
	var got []string
	for _, typ := range []string{events.SessionChanged, events.TabChanged, events.DataChanged} {
		a.Bus().Subscribe(typ, func(ev events.Event) { got = append(got, ev.Type) })
	}
	require.NoError(t, a.Login(ctx, "11111111"))
	require.NoError(t, a.HandleAction(ctx, view.Action{Tab: view.TabRooms, Kind: view.ActionFilter}))
	assert.Equal(t, []string{events.TabChanged, events.SessionChanged, events.DataChanged}, got)
}

func TestReserveSwitchesActiveTab(t *testing.T) {
	a, b, rec := newApp(t)
	ctx := context.Background()
	require.NoError(t, a.Login(ctx, "12345678"))
	b.reset()

	act := view.Action{Tab: view.TabAvailability, Kind: view.ActionReserve, Key: "1", Value: "edificio=Central&fecha=2024-05-02&nombre_sala=A-001"}
	require.NoError(t, a.HandleAction(ctx, act))
	assert.Equal(t, view.TabReservations, a.ActiveTab())
	assert.Equal(t, []view.Tab{view.TabReservations}, rec.Tabs)
	form := rec.LastForm()
	assert.Equal(t, "1", form.Values["id_turno"])
	assert.Equal(t, "12345678", form.Values["participantes"])
}

func TestFieldOptionsReloadsRooms(t *testing.T) {
	a, b, _ := newApp(t)
	ctx := context.Background()
	require.NoError(t, a.Login(ctx, "12345678"))
	b.reset()

	room := view.Field{Key: "nombre_sala", Kind: view.FieldSelect, DependsOn: "edificio"}
	opts, err := a.FieldOptions(ctx, room, view.Values{"edificio": "Central"})
	require.NoError(t, err)
	assert.Equal(t, []view.Option{{Value: "A-001", Label: "A-001"}}, opts)
	assert.Empty(t, b.seen())

	opts, err = a.FieldOptions(ctx, room, view.Values{"edificio": ""})
	require.NoError(t, err)
	assert.Empty(t, opts)
	assert.Empty(t, b.seen())

	plain := view.Field{Kind: view.FieldSelect, Options: []view.Option{{Value: "x"}}}
	opts, err = a.FieldOptions(ctx, plain, nil)
	require.NoError(t, err)
	assert.Len(t, opts, 1)
}

func runRoleReport(t *testing.T, a *App) view.Action {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.Open(ctx, view.TabReports))
	require.NoError(t, a.Submit(ctx, view.Form{Tab: view.TabReports, ID: "main"},
		view.Values{"reporte": "sanciones-por-rol", "desde": "2024-01-01", "hasta": "2024-01-31"}))
	ctl, _ := a.Active()
	require.NotEmpty(t, ctl.Table().Rows)
	for _, act := range ctl.Table().Actions {
		if act.Kind == view.ActionExport {
			return act
		}
	}
	t.Fatal("no export action")
	return view.Action{}
}

func TestLogout_DropsPreviousUserData(t *testing.T) {
	a, _, rec := newApp(t)
	ctx := context.Background()
	require.NoError(t, a.Login(ctx, "11111111"))
	export := runRoleReport(t, a)

	a.Logout()
	require.NoError(t, a.Login(ctx, "12345678"))
	require.NoError(t, a.Open(ctx, view.TabReports))
	ctl, _ := a.Active()
	assert.Empty(t, ctl.Table().Rows)

	rec.Reset()
	assert.Error(t, a.HandleAction(ctx, export))
	assert.Empty(t, rec.Files)
}

func TestLogin_OtherUserDropsPreviousData(t *testing.T) {
	a, _, rec := newApp(t)
	ctx := context.Background()
	require.NoError(t, a.Login(ctx, "11111111"))
	export := runRoleReport(t, a)

	require.NoError(t, a.Login(ctx, "12345678"))
	reports, ok := a.Controller(view.TabReports)
	require.True(t, ok)
	assert.Empty(t, reports.Table().Rows)

	rec.Reset()
	assert.Error(t, a.HandleAction(ctx, export))
	assert.Empty(t, rec.Files)
}

func TestLogin_SameUserKeepsData(t *testing.T) {
	a, _, _ := newApp(t)
	ctx := context.Background()
	require.NoError(t, a.Login(ctx, "11111111"))
	runRoleReport(t, a)

	require.NoError(t, a.Login(ctx, "1.111.111-1"))
	reports, _ := a.Controller(view.TabReports)
	assert.NotEmpty(t, reports.Table().Rows)
}
