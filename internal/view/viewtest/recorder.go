// Package viewtest provides an in-memory view used by controller and app tests.
package viewtest

import (
	"sync"

	"salas/internal/view"
)

// StatusEntry is one recorded status write.
type StatusEntry struct {
	Kind view.StatusKind
	Text string
}

// Recorder implements view.View and keeps what it was given.
type Recorder struct {
	mu            sync.Mutex
	Statuses      []StatusEntry
	Notifications []string
	Confirms      []view.Action
	Tabs          []view.Tab
	Forms         []view.Form
	Files         []File
}

// File is one recorded SendFile call.
type File struct {
	Name string
	Data []byte
}

// SetStatus implements view.Status.
func (r *Recorder) SetStatus(kind view.StatusKind, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Statuses = append(r.Statuses, StatusEntry{Kind: kind, Text: text})
}

// Notify implements view.Notifier.
func (r *Recorder) Notify(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notifications = append(r.Notifications, text)
}

// AskConfirm implements view.Confirmer.
func (r *Recorder) AskConfirm(_ string, action view.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Confirms = append(r.Confirms, action)
}

// SwitchTab implements view.Navigator.
func (r *Recorder) SwitchTab(tab view.Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tabs = append(r.Tabs, tab)
}

// ShowForm implements view.FormPresenter.
func (r *Recorder) ShowForm(form view.Form) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Forms = append(r.Forms, form)
}

// SendFile implements view.FileSender.
func (r *Recorder) SendFile(name string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Files = append(r.Files, File{Name: name, Data: data})
}

// LastForm returns the most recently shown form.
func (r *Recorder) LastForm() view.Form {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Forms) == 0 {
		return view.Form{}
	}
	return r.Forms[len(r.Forms)-1]
}

// Texts returns the recorded status texts in order.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Statuses))
	for _, s := range r.Statuses {
		out = append(out, s.Text)
	}
	return out
}

// LastStatus returns the most recent status write.
func (r *Recorder) LastStatus() StatusEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Statuses) == 0 {
		return StatusEntry{}
	}
	return r.Statuses[len(r.Statuses)-1]
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Statuses = nil
	r.Notifications = nil
	r.Confirms = nil
	r.Tabs = nil
	r.Forms = nil
	r.Files = nil
}

var _ view.View = (*Recorder)(nil)
