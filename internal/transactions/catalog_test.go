package transactions

import (
	"context"
	"sync"
	"testing"
	"time"

	"budget/internal/ledger"
	"budget/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedCategories holds the first listing until release is closed. The list
// it answers with is read when the call returns.
type gatedCategories struct {
	mu      sync.Mutex
	cats    []string
	calls   int
	started chan struct{}
	release chan struct{}
}

func (g *gatedCategories) ListCategories(context.Context) ([]string, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	snapshot := append([]string(nil), g.cats...)
	g.mu.Unlock()
	if first {
		close(g.started)
		<-g.release
	}
	return snapshot, nil
}

func (g *gatedCategories) add(c string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cats = append(g.cats, c)
}

func TestCatalogInvalidateDuringLoadIsNotOverwritten(t *testing.T) {
	client := &gatedCategories{
		cats:    []string{"Food"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	catalog := NewCatalog(client, ledger.CredentialFunc(func() string { return "tok" }), time.Hour, log.Discard())

	var (
		wg    sync.WaitGroup
		stale []string
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		stale, _ = catalog.Categories(context.Background())
	}()
	<-client.started

	client.add("Travel")
	catalog.Invalidate()
	close(client.release)
	wg.Wait()
	assert.Equal(t, []string{"Food"}, stale)

	cats, err := catalog.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "Travel"}, cats)
	assert.Equal(t, 2, client.calls)
}

func TestCatalogCachesPerCredential(t *testing.T) {
	client := &gatedCategories{cats: []string{"Food"}, started: make(chan struct{}), release: make(chan struct{})}
	close(client.release)
	token := "alice"
	catalog := NewCatalog(client, ledger.CredentialFunc(func() string { return token }), time.Hour, log.Discard())

	for i := 0; i < 2; i++ {
		_, err := catalog.Categories(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, client.calls)

	token = "bob"
	_, err := catalog.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}
