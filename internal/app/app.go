// Package app is the application shell: it owns the session, the lookups and
// one controller per tab, and moves between the logged-out and logged-in states.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"salas/internal/api"
	"salas/internal/controller"
	"salas/internal/events"
	"salas/internal/session"
	"salas/internal/validate"
	"salas/internal/view"
)

// State of the shell.
type State int

const (
	LoggedOut State = iota
	LoggedIn
)

func (s State) String() string {
	if s == LoggedIn {
		return "logged-in"
	}
	return "logged-out"
}

// Login messages.
const (
	MsgUnknownCI   = "CI no registrada"
	MsgBadCI       = "Formato de CI inválido"
	MsgTabDisabled = "Pestaña no disponible"
	MsgLoggedOut   = "Sesión cerrada"
)

// Tabs lists every panel in menu order.
var Tabs = []view.Tab{
	view.TabRooms,
	view.TabParticipants,
	view.TabSlots,
	view.TabReservations,
	view.TabAvailability,
	view.TabSanctions,
	view.TabReports,
}

var adminTabs = map[view.Tab]bool{
	view.TabParticipants: true,
	view.TabSanctions:    true,
}

// App is the per-user shell. It is not safe for concurrent use; callers
// serialise the events of one user.
type App struct {
	api     *api.Client
	view    view.View
	bus     *events.Bus
	session *session.Session
	lookups *controller.Lookups
	logger  zerolog.Logger

	initialized bool
	// lastCI is the user whose data the controllers may still hold.
	lastCI      string
	controllers map[view.Tab]controller.Controller
	reports     *controller.Reports

	visible []view.Tab
	active  view.Tab
}

// New builds a logged-out shell drawing on v.
func New(client *api.Client, policy session.Policy, v view.View, logger zerolog.Logger) *App {
	a := &App{
		api:    client,
		bus:    events.NewBus(),
		logger: logger.With().Str("component", "app").Logger(),
	}
	a.view = &shellView{View: v, app: a}
	a.session = session.New(policy, a.bus, logger)
	a.lookups = controller.NewLookups(client, a.view)
	a.bus.Subscribe(events.SessionChanged, func(events.Event) { a.recomputeTabs() })
	return a
}

// Bus exposes the shell events to the adapter.
func (a *App) Bus() *events.Bus { return a.bus }

// Session returns the session of this shell.
func (a *App) Session() *session.Session { return a.session }

// Lookups returns the shared combos.
func (a *App) Lookups() *controller.Lookups { return a.lookups }

// State reports whether someone is logged in.
func (a *App) State() State {
	if a.session.LoggedIn() {
		return LoggedIn
	}
	return LoggedOut
}

// init builds the controllers. It runs once no matter how many logins follow.
func (a *App) init() {
	if a.initialized {
		return
	}
	d := controller.Deps{
		API:     a.api,
		Session: a.session,
		View:    a.view,
		Lookups: a.lookups,
		Logger:  a.logger,
	}
	reservations := controller.NewReservations(d)
	a.reports = controller.NewReports(d)
	a.controllers = map[view.Tab]controller.Controller{
		view.TabRooms:        controller.NewRooms(d),
		view.TabParticipants: controller.NewParticipants(d),
		view.TabSlots:        controller.NewSlots(d),
		view.TabReservations: reservations,
		view.TabAvailability: controller.NewAvailability(d, reservations),
		view.TabSanctions:    controller.NewSanctions(d),
		view.TabReports:      a.reports,
	}
	a.initialized = true
	a.logger.Debug().Int("controllers", len(a.controllers)).Msg("controllers initialized")
}

// Login validates rawCI, authenticates it and reloads every panel.
func (a *App) Login(ctx context.Context, rawCI string) error {
	ci, err := validate.NationalID(rawCI)
	if err != nil {
		validate.Report(a.view, err)
		return err
	}
	u, err := a.api.Login(ctx, ci, a.view)
	if err != nil {
		switch api.StatusOf(err) {
		case http.StatusNotFound:
			a.view.SetStatus(view.StatusError, MsgUnknownCI)
		case http.StatusUnprocessableEntity:
			a.view.SetStatus(view.StatusError, MsgBadCI)
		}
		return fmt.Errorf("login %s: %w", ci, err)
	}
	a.init()
	if a.lastCI != "" && a.lastCI != ci {
		a.clearControllers()
	}
	a.lastCI = ci
	u = a.session.Save(u)
	zerolog.Ctx(ctx).Info().Str("ci", u.CI).Bool("admin", a.session.IsAdmin()).Msg("logged in")
	return a.Reload(ctx)
}

// Logout clears the session, every form state and the data fetched for the user.
func (a *App) Logout() {
	a.clearControllers()
	a.lastCI = ""
	a.session.Clear()
	a.view.SetStatus(view.StatusInfo, MsgLoggedOut)
}

func (a *App) clearControllers() {
	for _, c := range a.controllers {
		c.Clear()
	}
}

// Reload refreshes the lookups, then lists the active tab.
func (a *App) Reload(ctx context.Context) error {
	if err := a.session.RequireSession(a.view); err != nil {
		return err
	}
	if err := a.lookups.Reload(ctx); err != nil {
		return err
	}
	c, ok := a.controllers[a.active]
	if !ok {
		return nil
	}
	return c.List(ctx)
}

func (a *App) recomputeTabs() {
	a.visible = a.visible[:0]
	if a.session.LoggedIn() {
		admin := a.session.IsAdmin()
		for _, t := range Tabs {
			if adminTabs[t] && !admin {
				continue
			}
			a.visible = append(a.visible, t)
		}
	}
	if a.Visible(a.active) {
		return
	}
	prev := a.active
	a.active = ""
	if len(a.visible) > 0 {
		a.active = a.visible[0]
	}
	if prev != a.active {
		a.bus.Publish(events.TabChanged, a.active)
	}
}

// VisibleTabs returns the tabs the session may open, in menu order.
func (a *App) VisibleTabs() []view.Tab {
	return append([]view.Tab(nil), a.visible...)
}

// Visible reports whether tab is currently offered.
func (a *App) Visible(tab view.Tab) bool {
	for _, t := range a.visible {
		if t == tab {
			return true
		}
	}
	return false
}

// ActiveTab returns the selected tab, "" when logged out.
func (a *App) ActiveTab() view.Tab { return a.active }

// Controller returns the controller of tab.
func (a *App) Controller(tab view.Tab) (controller.Controller, bool) {
	c, ok := a.controllers[tab]
	return c, ok
}

// Active returns the controller of the active tab.
func (a *App) Active() (controller.Controller, bool) {
	return a.Controller(a.active)
}

// Reports returns the reports controller once initialized.
func (a *App) Reports() *controller.Reports { return a.reports }

// Open activates tab and lists it.
func (a *App) Open(ctx context.Context, tab view.Tab) error {
	if err := a.selectTab(tab); err != nil {
		return err
	}
	return a.controllers[tab].List(ctx)
}

func (a *App) selectTab(tab view.Tab) error {
	if err := a.session.RequireSession(a.view); err != nil {
		return err
	}
	if _, ok := a.controllers[tab]; !ok || !a.Visible(tab) {
		a.view.SetStatus(view.StatusError, MsgTabDisabled)
		return fmt.Errorf("%w: tab %q", controller.ErrReported, tab)
	}
	if a.active != tab {
		a.active = tab
		a.bus.Publish(events.TabChanged, tab)
	}
	return nil
}

// HandleAction routes a to the controller of its tab.
func (a *App) HandleAction(ctx context.Context, act view.Action) error {
	tab := act.Tab
	if tab == "" {
		tab = a.active
	}
	c, err := a.routable(tab)
	if err != nil {
		return err
	}
	if err := c.HandleAction(ctx, act); err != nil {
		return err
	}
	a.publishData(tab, act.Kind)
	return nil
}

// Submit routes a filled form to the controller of its tab.
func (a *App) Submit(ctx context.Context, form view.Form, v view.Values) error {
	tab := form.Tab
	if tab == "" {
		tab = a.active
	}
	c, err := a.routable(tab)
	if err != nil {
		return err
	}
	if err := c.Submit(ctx, form.ID, v); err != nil {
		return err
	}
	a.publishData(tab, form.ID)
	return nil
}

func (a *App) routable(tab view.Tab) (controller.Controller, error) {
	if err := a.session.RequireSession(a.view); err != nil {
		return nil, err
	}
	c, ok := a.controllers[tab]
	if !ok || !a.Visible(tab) {
		a.view.SetStatus(view.StatusError, MsgTabDisabled)
		return nil, fmt.Errorf("%w: tab %q", controller.ErrReported, tab)
	}
	return c, nil
}

func (a *App) publishData(tab view.Tab, what any) {
	a.bus.Publish(events.DataChanged, DataChange{Tab: tab, What: fmt.Sprint(what)})
}

// DataChange is the payload of events.DataChanged.
type DataChange struct {
	Tab  view.Tab
	What string
}

// FieldOptions returns the options of a select field given the values entered
// so far. The room field reloads its combo for the chosen building.
func (a *App) FieldOptions(ctx context.Context, f view.Field, v view.Values) ([]view.Option, error) {
	if f.Kind != view.FieldSelect {
		return nil, nil
	}
	if f.DependsOn == "" {
		return f.Options, nil
	}
	building := v.Get(f.DependsOn)
	if building != a.lookups.RoomsBuilding() || len(a.lookups.Rooms.Options) == 0 {
		if err := a.lookups.LoadRooms(ctx, building); err != nil {
			return nil, err
		}
	}
	return append([]view.Option(nil), a.lookups.Rooms.Options...), nil
}

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	var ae *api.Error
	return errors.Is(err, controller.ErrReported) || session.IsDenied(err) ||
		validate.IsValidation(err) || errors.As(err, &ae)
}

// shellView keeps the active tab in step when a controller navigates.
type shellView struct {
	view.View
	app *App
}

func (s *shellView) SwitchTab(tab view.Tab) {
	if s.app.selectTab(tab) == nil {
		s.View.SwitchTab(tab)
	}
}
