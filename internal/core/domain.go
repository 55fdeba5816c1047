package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory is stored when a draft leaves the category blank.
const DefaultCategory = "Other"

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type (
	Role string

	User struct {
		ID       int64    `json:"id"`
		Username string   `json:"username"`
		Email    string   `json:"email"`
		Roles    []Role   `json:"roles"`
		Currency Currency `json:"currency,omitempty"`
	}

	// Session is the credential and identity held for the current process.
	// The zero value is the anonymous session.
	Session struct {
		Token string `json:"token"`
		User  *User  `json:"user"`
	}

	Transaction struct {
		ID          int64           `json:"id"`
		UserID      int64           `json:"user_id,omitempty"`
		Username    string          `json:"username,omitempty"` // administrative listings only
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Date        time.Time       `json:"date"`
		Currency    Currency        `json:"currency,omitempty"` // inherited from the owner
	}

	// Draft is a transaction that has not been stored yet.
	Draft struct {
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category,omitempty"`
		Date        time.Time       `json:"date,omitzero"`
	}

	// Patch carries the fields an update replaces. Nil fields are left alone.
	Patch struct {
		Description *string          `json:"description,omitempty"`
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		Category    *string          `json:"category,omitempty"`
		Date        *time.Time       `json:"date,omitempty"`
	}

	// Query holds the server-side filter parameters of a transaction listing.
	Query struct {
		Search   string
		Category string
	}

	// UserPatch carries the account fields an administrator (or the profile
	// settings call) may replace.
	UserPatch struct {
		Username *string   `json:"username,omitempty"`
		Email    *string   `json:"email,omitempty"`
		Role     *Role     `json:"role,omitempty"`
		Currency *Currency `json:"currency,omitempty"`
	}

	// Account is a user as seen by the administrative listing.
	Account struct {
		ID       int64    `json:"id"`
		Username string   `json:"username"`
		Email    string   `json:"email"`
		Role     Role     `json:"role"`
		Currency Currency `json:"currency"`
	}
)

var ErrIncompleteSession = errors.New("session must carry both a credential and an identity")

// HasRole reports whether the user holds the role.
func (u User) HasRole(r Role) bool {
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool { return u.HasRole(RoleAdmin) }

// Clone returns a deep copy so callers cannot mutate shared identity state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = append([]Role(nil), u.Roles...)
	return &c
}

// Anonymous reports whether nobody is logged in.
func (s Session) Anonymous() bool {
	return s.Token == "" && s.User == nil
}

// Validate enforces that credential and identity are present together.
func (s Session) Validate() error {
	if (s.Token == "") != (s.User == nil) {
		return ErrIncompleteSession
	}
	return nil
}

// Clone returns a copy that shares no memory with s.
func (s Session) Clone() Session {
	return Session{Token: s.Token, User: s.User.Clone()}
}

func (t Transaction) IsExpense() bool { return t.Amount.IsNegative() }

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	return nil
}

// Normalize trims the text fields and applies the default category.
func (d Draft) Normalize() Draft {
	d.Description = strings.TrimSpace(d.Description)
	d.Category = strings.TrimSpace(d.Category)
	if d.Category == "" {
		d.Category = DefaultCategory
	}
	return d
}

// NewDraft parses a raw amount string into a draft.
func NewDraft(description, amount, category string, date time.Time) (Draft, error) {
	amt, err := ParseAmount(amount)
	if err != nil {
		return Draft{}, err
	}
	d := Draft{Description: description, Amount: amt, Category: category, Date: date}
	if err := d.Validate(); err != nil {
		return Draft{}, err
	}
	return d.Normalize(), nil
}

func (p Patch) IsEmpty() bool {
	return p.Description == nil && p.Amount == nil && p.Category == nil && p.Date == nil
}

func (p Patch) Validate() error {
	if p.IsEmpty() {
		return &ValidationError{Field: "patch", Reason: "no fields to update"}
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	return nil
}

// Apply returns t with the patched fields replaced.
func (p Patch) Apply(t Transaction) Transaction {
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}

func (p UserPatch) IsEmpty() bool {
	return p.Username == nil && p.Email == nil && p.Role == nil && p.Currency == nil
}

// ApplyToUser merges the supplied fields into a session identity.
func (p UserPatch) ApplyToUser(u User) User {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Roles = []Role{*p.Role}
	}
	if p.Currency != nil {
		u.Currency = *p.Currency
	}
	return u
}

// ApplyToAccount merges the supplied fields into an administrative listing entry.
func (p UserPatch) ApplyToAccount(a Account) Account {
	if p.Username != nil {
		a.Username = *p.Username
	}
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Role != nil {
		a.Role = *p.Role
	}
	if p.Currency != nil {
		a.Currency = *p.Currency
	}
	return a
}
