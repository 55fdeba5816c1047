// Package filter projects a cached transaction list for display.
//
// A Policy decides whether a filter change is answered locally from the
// cache or by a new parameterized fetch. Projections never reorder records.
package filter

import (
	"strconv"
	"strings"

	"budget/internal/core"
)

// State is the ephemeral filter input of a view.
type State struct {
	Term     string // free text over the description
	Category string // exact category, empty means all
	Owner    string // free text over owner id or username (administrative)
}

func (s State) IsZero() bool {
	return strings.TrimSpace(s.Term) == "" && s.Category == "" && strings.TrimSpace(s.Owner) == ""
}

// Query converts the state to server-side listing parameters.
func (s State) Query() core.Query {
	return core.Query{Search: strings.TrimSpace(s.Term), Category: s.Category}
}

// Predicate reports whether a record is shown.
type Predicate func(core.Transaction) bool

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// MatchDescription matches a case-insensitive substring of the description.
// An empty term matches everything.
func MatchDescription(term string) Predicate {
	term = strings.TrimSpace(term)
	return func(t core.Transaction) bool {
		return term == "" || containsFold(t.Description, term)
	}
}

// MatchCategory matches the category exactly. An empty selector matches
// everything.
func MatchCategory(category string) Predicate {
	return func(t core.Transaction) bool {
		return category == "" || t.Category == category
	}
}

// MatchOwner matches a case-insensitive substring of the owner's id or
// username.
func MatchOwner(term string) Predicate {
	term = strings.TrimSpace(term)
	return func(t core.Transaction) bool {
		if term == "" {
			return true
		}
		return containsFold(strconv.FormatInt(t.UserID, 10), term) || containsFold(t.Username, term)
	}
}

// All combines predicates with logical AND.
func All(preds ...Predicate) Predicate {
	return func(t core.Transaction) bool {
		for _, p := range preds {
			if !p(t) {
				return false
			}
		}
		return true
	}
}

// Apply returns the records matching pred, in their original order.
func Apply(records []core.Transaction, pred Predicate) []core.Transaction {
	out := make([]core.Transaction, 0, len(records))
	for _, t := range records {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// Policy is one of the three display strategies.
type Policy interface {
	// Remote reports whether a filter change requires a new fetch.
	Remote() bool
	// Project returns the records to display for state.
	Project(records []core.Transaction, state State) []core.Transaction
}

// ClientSlice shows the first Limit records of an unfiltered fetch. Used for
// the recent-activity view; the filter state is ignored.
type ClientSlice struct {
	Limit int
}

func (ClientSlice) Remote() bool { return false }

func (p ClientSlice) Project(records []core.Transaction, _ State) []core.Transaction {
	n := len(records)
	if p.Limit > 0 && p.Limit < n {
		n = p.Limit
	}
	return append([]core.Transaction(nil), records[:n]...)
}

// ServerQuery re-fetches on every filter change; the cache already holds the
// server's answer and is shown as is.
type ServerQuery struct{}

func (ServerQuery) Remote() bool { return true }

func (ServerQuery) Project(records []core.Transaction, _ State) []core.Transaction {
	return append([]core.Transaction(nil), records...)
}

// Hybrid fetches once and filters locally by description, category and
// owner. Used for the administrative list.
type Hybrid struct{}

func (Hybrid) Remote() bool { return false }

func (Hybrid) Project(records []core.Transaction, s State) []core.Transaction {
	return Apply(records, All(
		MatchDescription(s.Term),
		MatchCategory(s.Category),
		MatchOwner(s.Owner),
	))
}
