// Package controller holds one controller per entity panel. Controllers list,
// render, submit and react to row actions; they talk to the user only through
// a view.View and never know which toolkit draws it.
package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"salas/internal/api"
	"salas/internal/session"
	"salas/internal/validate"
	"salas/internal/view"
)

// ErrReported marks a failure that was already shown to the user. Callers stop
// the action chain without reporting it again.
var ErrReported = errors.New("reported")

// Form ids accepted by Submit.
const (
	FormMain       = "main"
	FormFilter     = "filtro"
	FormState      = "estado"
	FormAttendance = "asistencia"
)

// Messages shared by several controllers.
const (
	MsgNotFound     = "Registro no encontrado"
	MsgUnknownForm  = "Formulario desconocido"
	MsgSaved        = "Guardado"
	MsgDeleted      = "Eliminado"
	MsgAskDelete    = "¿Confirma la eliminación de %s?"
	MsgNothingShown = "Sin datos para exportar"
)

// Controller is the uniform shape of an entity panel.
type Controller interface {
	Tab() view.Tab
	Title() string
	List(ctx context.Context) error
	Table() view.Table
	Form(ctx context.Context) view.Form
	Submit(ctx context.Context, formID string, v view.Values) error
	HandleAction(ctx context.Context, a view.Action) error
	Reset()
	// Clear drops every record, filter and table fetched for the current
	// user, then resets the form.
	Clear()
}

// EditState is the form state of a controller: Idle or Editing(key).
type EditState struct {
	key string
}

// Idle is the state of a form creating a new record.
var Idle = EditState{}

// Editing marks the record the form is updating.
func Editing(key string) EditState {
	return EditState{key: key}
}

// IsEditing reports whether a record is being updated.
func (s EditState) IsEditing() bool {
	return s.key != ""
}

// Key returns the record being edited.
func (s EditState) Key() string {
	return s.key
}

// Deps are the collaborators shared by every controller of one application.
type Deps struct {
	API     *api.Client
	Session *session.Session
	View    view.View
	Lookups *Lookups
	Logger  zerolog.Logger
}

type base struct {
	api     *api.Client
	session *session.Session
	view    view.View
	lookups *Lookups
	logger  zerolog.Logger
	state   EditState
}

func newBase(d Deps, component string) base {
	return base{
		api:     d.API,
		session: d.Session,
		view:    d.View,
		lookups: d.Lookups,
		logger:  d.Logger.With().Str("component", component).Logger(),
	}
}

// State returns the current form state.
func (b *base) State() EditState {
	return b.state
}

// Reset returns the form to Idle.
func (b *base) Reset() {
	b.state = Idle
}

func reported(err error) error {
	if err == nil || errors.Is(err, ErrReported) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrReported, err)
}

func (b *base) requireSession() error {
	if err := b.session.RequireSession(b.view); err != nil {
		b.view.Notify(err.Error())
		return reported(err)
	}
	return nil
}

func (b *base) requireAdmin() error {
	if err := b.session.RequireAdmin(b.view); err != nil {
		b.view.Notify(err.Error())
		return reported(err)
	}
	return nil
}

// invalid shows a validation failure in the status line and as a notification.
func (b *base) invalid(err error) error {
	validate.Report(b.view, err)
	b.view.Notify(validate.Message(err))
	return reported(err)
}

// failed wraps an error the request wrapper already wrote to the status line.
func (b *base) failed(ctx context.Context, op string, err error) error {
	zerolog.Ctx(ctx).Debug().Err(err).Str("op", op).Int("status", api.StatusOf(err)).Msg("backend call failed")
	return reported(err)
}

func (b *base) notFound() error {
	b.view.SetStatus(view.StatusError, MsgNotFound)
	return reported(errors.New(MsgNotFound))
}

func (b *base) unknownForm(formID string) error {
	b.view.SetStatus(view.StatusError, MsgUnknownForm)
	return reported(fmt.Errorf("unknown form %q", formID))
}

// confirm asks for confirmation unless a already carries it. It reports
// whether the caller may proceed now.
func (b *base) confirm(a view.Action, what string) bool {
	if a.Confirmed {
		return true
	}
	b.view.AskConfirm(fmt.Sprintf(MsgAskDelete, what), a)
	return false
}

func find[T any](items []T, key string, keyOf func(T) string) (T, bool) {
	for _, it := range items {
		if keyOf(it) == key {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func rowActions(admin bool, tab view.Tab, key string) ([]view.Action, string) {
	if !admin {
		return nil, view.ReadOnlyNotice
	}
	return []view.Action{
		{Tab: tab, Kind: view.ActionEdit, Key: key, Label: "Editar"},
		{Tab: tab, Kind: view.ActionDelete, Key: key, Label: "Eliminar"},
	}, ""
}

func newAction(tab view.Tab, label string) view.Action {
	return view.Action{Tab: tab, Kind: view.ActionNew, Label: label}
}

func filterAction(tab view.Tab) view.Action {
	return view.Action{Tab: tab, Kind: view.ActionFilter, Label: "Filtrar"}
}

func selectField(key, label string, opts []view.Option) view.Field {
	return view.Field{Key: key, Label: label, Kind: view.FieldSelect, Options: opts}
}

func textField(key, label, hint string) view.Field {
	return view.Field{Key: key, Label: label, Kind: view.FieldText, Hint: hint}
}

func stringOptions(values []string) []view.Option {
	out := make([]view.Option, 0, len(values))
	for _, v := range values {
		out = append(out, view.Option{Value: v, Label: v})
	}
	return out
}
