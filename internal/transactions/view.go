package transactions

import (
	"context"
	"sync"

	"budget/internal/core"
	"budget/internal/filter"
)

// View pairs a Store with the filter policy of one screen: the dashboard
// slice, the server-queried full list, or the locally filtered admin list.
type View struct {
	store  *Store
	policy filter.Policy

	mu    sync.Mutex
	state filter.State
}

func NewView(store *Store, policy filter.Policy) *View {
	return &View{store: store, policy: policy}
}

// Load fetches the view's records. Remote policies send the current filter
// to the server; local policies fetch the unfiltered set.
func (v *View) Load(ctx context.Context) ([]core.Transaction, error) {
	if _, err := v.store.Fetch(ctx, v.query()); err != nil {
		return nil, err
	}
	return v.Visible(), nil
}

// SetFilter replaces the filter state. Under a remote policy this issues a
// new fetch; a fetch overtaken by a later SetFilter returns
// core.ErrSuperseded and leaves the newer result in place.
func (v *View) SetFilter(ctx context.Context, state filter.State) ([]core.Transaction, error) {
	v.mu.Lock()
	v.state = state
	v.mu.Unlock()

	if v.policy.Remote() {
		if _, err := v.store.Fetch(ctx, state.Query()); err != nil {
			return nil, err
		}
	}
	return v.Visible(), nil
}

// Visible projects the cache through the policy, preserving order.
func (v *View) Visible() []core.Transaction {
	return v.policy.Project(v.store.Snapshot(), v.Filter())
}

func (v *View) Filter() filter.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *View) Store() *Store { return v.store }

func (v *View) query() core.Query {
	if !v.policy.Remote() {
		return core.Query{}
	}
	return v.Filter().Query()
}
