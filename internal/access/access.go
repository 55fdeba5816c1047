// Package access decides which views the current session may reach.
//
// Decide is a pure function of the session. Guard wires it to a session
// store so decisions are re-evaluated on every change.
package access

import (
	"budget/internal/core"
	"budget/internal/log"
)

// State is derived from the session alone; the guard keeps no state of its own.
type State int

const (
	Anonymous State = iota
	Authenticated
	AuthenticatedAdmin
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case AuthenticatedAdmin:
		return "authenticated_admin"
	default:
		return "anonymous"
	}
}

type Requirement int

const (
	Public Requirement = iota
	RequiresAuth
	RequiresAdmin
)

type View struct {
	Name        string
	Requirement Requirement
}

var (
	ViewLogin          = View{Name: "login", Requirement: Public}
	ViewRegister       = View{Name: "register", Requirement: Public}
	ViewNotFound       = View{Name: "not-found", Requirement: Public}
	ViewDashboard      = View{Name: "dashboard", Requirement: RequiresAuth}
	ViewTransactions   = View{Name: "transactions", Requirement: RequiresAuth}
	ViewAdmin          = View{Name: "admin", Requirement: RequiresAdmin}
	ViewUserManagement = View{Name: "user-management", Requirement: RequiresAdmin}

	// ViewDefault is where authenticated users land.
	ViewDefault = ViewDashboard
)

var views = map[string]View{}

func init() {
	for _, v := range []View{ViewLogin, ViewRegister, ViewNotFound, ViewDashboard, ViewTransactions, ViewAdmin, ViewUserManagement} {
		views[v.Name] = v
	}
}

// Lookup resolves a view by name. Unknown names resolve to ViewNotFound.
func Lookup(name string) View {
	if v, ok := views[name]; ok {
		return v
	}
	return ViewNotFound
}

// Decision is the outcome of a view request. A denied request always
// carries the view to show instead and the reason it was denied.
type Decision struct {
	View     View
	Allowed  bool
	Redirect View
	Reason   error
}

// Target returns the view to display.
func (d Decision) Target() View {
	if d.Allowed {
		return d.View
	}
	return d.Redirect
}

func StateOf(s core.Session) State {
	if s.Token == "" || s.User == nil {
		return Anonymous
	}
	if s.User.IsAdmin() {
		return AuthenticatedAdmin
	}
	return Authenticated
}

// Decide reports whether s may reach v. Anonymous sessions are sent to the
// login view, authenticated non-administrators to the default view.
func Decide(s core.Session, v View) Decision {
	state := StateOf(s)
	switch {
	case v.Requirement == RequiresAuth && state == Anonymous,
		v.Requirement == RequiresAdmin && state == Anonymous:
		return Decision{View: v, Redirect: ViewLogin, Reason: &core.AuthError{Message: "login required"}}
	case v.Requirement == RequiresAdmin && state != AuthenticatedAdmin:
		return Decision{View: v, Redirect: ViewDefault, Reason: &core.AuthorizationError{Required: core.RoleAdmin}}
	default:
		return Decision{View: v, Allowed: true}
	}
}

// SessionSource is the part of the session store the guard observes.
type SessionSource interface {
	Current() core.Session
	Subscribe(fn func(core.Session)) (unsubscribe func())
}

type Guard struct {
	sessions SessionSource
	logger   *log.Logger
}

func NewGuard(sessions SessionSource, logger *log.Logger) *Guard {
	return &Guard{sessions: sessions, logger: log.OrDefault(logger, log.ComponentAccess)}
}

// Resolve decides v against the current session.
func (g *Guard) Resolve(v View) Decision {
	d := Decide(g.sessions.Current(), v)
	g.record(d)
	return d
}

// Watch calls fn with the decision for v now and after every session change,
// until the returned function is called.
func (g *Guard) Watch(v View, fn func(Decision)) (stop func()) {
	stop = g.sessions.Subscribe(func(s core.Session) {
		d := Decide(s, v)
		g.record(d)
		fn(d)
	})
	fn(g.Resolve(v))
	return stop
}

func (g *Guard) record(d Decision) {
	if d.Allowed {
		return
	}
	g.logger.Debug("View access denied",
		log.FieldView, d.View.Name,
		log.FieldRedirect, d.Redirect.Name,
		log.FieldErrorType, core.Kind(d.Reason))
}
