package ledger

import (
	"fmt"
	"strings"
	"time"

	"budget/internal/core"

	"github.com/shopspring/decimal"
)

// Wire representations of the service's JSON payloads. Amounts travel as bare
// JSON numbers and dates as ISO 8601 strings, with or without an offset.

// Number marshals a decimal as an unquoted JSON number.
type Number struct {
	decimal.Decimal
}

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}

// UnmarshalJSON accepts numbers, quoted numbers and null (zero).
func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		n.Decimal = decimal.Zero
		return nil
	}
	return n.Decimal.UnmarshalJSON(b)
}

type (
	TransactionJSON struct {
		ID          int64  `json:"id"`
		Description string `json:"description"`
		Amount      Number `json:"amount"`
		Category    string `json:"category"`
		Date        string `json:"date"`
		UserID      int64  `json:"user_id,omitempty"`
		Username    string `json:"username,omitempty"`
		Currency    string `json:"currency,omitempty"`
	}

	DraftJSON struct {
		Description string `json:"description"`
		Amount      Number `json:"amount"`
		Category    string `json:"category,omitempty"`
		Date        string `json:"date,omitempty"`
	}

	PatchJSON struct {
		Description *string `json:"description,omitempty"`
		Amount      *Number `json:"amount,omitempty"`
		Category    *string `json:"category,omitempty"`
		Date        *string `json:"date,omitempty"`
	}

	StatsJSON struct {
		TotalIncome  Number `json:"total_income"`
		TotalExpense Number `json:"total_expense"`
		NetBalance   Number `json:"net_balance"`
	}

	UserJSON struct {
		ID       int64    `json:"id"`
		Username string   `json:"username"`
		Email    string   `json:"email"`
		Roles    []string `json:"roles"`
		Currency string   `json:"currency,omitempty"`
	}

	AccountJSON struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Role     string `json:"role"`
		Currency string `json:"currency"`
	}

	ErrorJSON struct {
		Error string `json:"error"`
	}
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the ISO 8601 variants the service emits. Timestamps
// without an offset are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &core.ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not an ISO 8601 timestamp", s)}
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func TransactionToJSON(t core.Transaction) TransactionJSON {
	return TransactionJSON{
		ID:          t.ID,
		Description: t.Description,
		Amount:      Number{t.Amount},
		Category:    t.Category,
		Date:        FormatTimestamp(t.Date),
		UserID:      t.UserID,
		Username:    t.Username,
		Currency:    string(t.Currency),
	}
}

func (j TransactionJSON) Core() (core.Transaction, error) {
	t := core.Transaction{
		ID:          j.ID,
		UserID:      j.UserID,
		Username:    j.Username,
		Description: j.Description,
		Amount:      j.Amount.Decimal,
		Category:    j.Category,
		Currency:    core.Currency(j.Currency),
	}
	if t.Category == "" {
		t.Category = core.DefaultCategory
	}
	if j.Date != "" {
		date, err := ParseTimestamp(j.Date)
		if err != nil {
			return core.Transaction{}, err
		}
		t.Date = date
	}
	return t, nil
}

func DraftToJSON(d core.Draft) DraftJSON {
	j := DraftJSON{Description: d.Description, Amount: Number{d.Amount}, Category: d.Category}
	if !d.Date.IsZero() {
		j.Date = FormatTimestamp(d.Date)
	}
	return j
}

func (j DraftJSON) Core() (core.Draft, error) {
	d := core.Draft{Description: j.Description, Amount: j.Amount.Decimal, Category: j.Category}
	if j.Date != "" {
		date, err := ParseTimestamp(j.Date)
		if err != nil {
			return core.Draft{}, err
		}
		d.Date = date
	}
	return d, nil
}

func PatchToJSON(p core.Patch) PatchJSON {
	j := PatchJSON{Description: p.Description, Category: p.Category}
	if p.Amount != nil {
		j.Amount = &Number{*p.Amount}
	}
	if p.Date != nil {
		s := FormatTimestamp(*p.Date)
		j.Date = &s
	}
	return j
}

func (j PatchJSON) Core() (core.Patch, error) {
	p := core.Patch{Description: j.Description, Category: j.Category}
	if j.Amount != nil {
		amt := j.Amount.Decimal
		p.Amount = &amt
	}
	if j.Date != nil && *j.Date != "" {
		date, err := ParseTimestamp(*j.Date)
		if err != nil {
			return core.Patch{}, err
		}
		p.Date = &date
	}
	return p, nil
}

func StatsToJSON(r core.StatsResult) StatsJSON {
	return StatsJSON{
		TotalIncome:  Number{r.TotalIncome},
		TotalExpense: Number{r.TotalExpense},
		NetBalance:   Number{r.NetBalance},
	}
}

func (j StatsJSON) Core() core.StatsResult {
	return core.StatsResult{
		TotalIncome:  j.TotalIncome.Decimal,
		TotalExpense: j.TotalExpense.Decimal,
		NetBalance:   j.NetBalance.Decimal,
	}
}

func UserToJSON(u core.User) UserJSON {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	return UserJSON{ID: u.ID, Username: u.Username, Email: u.Email, Roles: roles, Currency: string(u.Currency)}
}

func (j UserJSON) Core() core.User {
	roles := make([]core.Role, len(j.Roles))
	for i, r := range j.Roles {
		roles[i] = core.Role(r)
	}
	return core.User{ID: j.ID, Username: j.Username, Email: j.Email, Roles: roles, Currency: core.Currency(j.Currency)}
}

func AccountToJSON(a core.Account) AccountJSON {
	return AccountJSON{ID: a.ID, Username: a.Username, Email: a.Email, Role: string(a.Role), Currency: string(a.Currency)}
}

func (j AccountJSON) Core() core.Account {
	return core.Account{ID: j.ID, Username: j.Username, Email: j.Email, Role: core.Role(j.Role), Currency: core.Currency(j.Currency)}
}
