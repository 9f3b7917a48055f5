package portfolio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	items []Item
}

func (f *failingStore) Load() ([]Item, error) { return f.items, nil }
func (f *failingStore) Save([]Item) error      { return errors.New("disk full") }

func TestLedgerAddRemove(t *testing.T) {
	var events []string
	l, err := NewLedger(nil, nil, func(event string, fields map[string]interface{}) {
		events = append(events, fields["action"].(string))
	})
	require.NoError(t, err)

	it, err := l.Add(NewItem{CoinID: " bitcoin ", Quantity: 0.5, PurchasePrice: 50000})
	require.NoError(t, err)
	assert.NotEmpty(t, it.ID)
	assert.Equal(t, "bitcoin", it.CoinID)

	other, err := l.Add(NewItem{CoinID: "ethereum", Quantity: 10})
	require.NoError(t, err)
	assert.NotEqual(t, it.ID, other.ID)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 60000.0, l.TotalValue(map[string]float64{"bitcoin": 60000, "ethereum": 3000}))

	require.NoError(t, l.Remove(it.ID))
	assert.ErrorIs(t, l.Remove(it.ID), ErrNotFound)
	assert.Equal(t, []Item{other}, l.Items())
	assert.Equal(t, []string{"add", "add", "remove"}, events)
}

func TestLedgerRejectsInvalidItems(t *testing.T) {
	l, err := NewLedger(nil, nil, nil)
	require.NoError(t, err)

	cases := []NewItem{
		{CoinID: "", Quantity: 1},
		{CoinID: "  ", Quantity: 1},
		{CoinID: "bitcoin", Quantity: 0},
		{CoinID: "bitcoin", Quantity: -1},
		{CoinID: "bitcoin", Quantity: 1, PurchasePrice: -5},
	}
	for _, c := range cases {
		_, err := l.Add(c)
		assert.ErrorIs(t, err, ErrInvalidItem, "%+v", c)
	}
	assert.Equal(t, 0, l.Len())
}

func TestLedgerRollsBackOnSaveFailure(t *testing.T) {
	seed := Item{ID: "6f1c1f8e-3a52-4a7b-9d3b-2c1a8f0e4d11", CoinID: "bitcoin", Quantity: 1}
	l, err := NewLedger(&failingStore{items: []Item{seed}}, nil, nil)
	require.NoError(t, err)

	_, err = l.Add(NewItem{CoinID: "ethereum", Quantity: 1})
	require.Error(t, err)
	assert.Error(t, l.Remove(seed.ID))
	assert.Equal(t, []Item{seed}, l.Items())
}

func TestLedgerPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultPath)
	store := NewFileStore(path)

	l, err := NewLedger(store, nil, nil)
	require.NoError(t, err)
	a, err := l.Add(NewItem{CoinID: "bitcoin", Quantity: 0.5, PurchasePrice: 50000})
	require.NoError(t, err)
	_, err = l.Add(NewItem{CoinID: "solana", Quantity: 3, PurchasePrice: 120})
	require.NoError(t, err)

	reopened, err := NewLedger(NewFileStore(path), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, l.Items(), reopened.Items())

	require.NoError(t, reopened.Remove(a.ID))
	again, err := NewLedger(NewFileStore(path), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Len())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLedgerClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	var events []string
	l, err := NewLedger(NewFileStore(path), nil, func(event string, fields map[string]interface{}) {
		events = append(events, fields["action"].(string))
	})
	require.NoError(t, err)
	_, err = l.Add(NewItem{CoinID: "bitcoin", Quantity: 1})
	require.NoError(t, err)
	_, err = l.Add(NewItem{CoinID: "ethereum", Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, l.Clear())
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, []string{"add", "add", "clear", "clear"}, events)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(raw))

	reopened, err := NewLedger(NewFileStore(path), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Len())
}

func TestLedgerClearRollsBackOnSaveFailure(t *testing.T) {
	seed := Item{ID: "6f1c1f8e-3a52-4a7b-9d3b-2c1a8f0e4d11", CoinID: "bitcoin", Quantity: 1}
	l, err := NewLedger(&failingStore{items: []Item{seed}}, nil, nil)
	require.NoError(t, err)

	require.Error(t, l.Clear())
	assert.Equal(t, []Item{seed}, l.Items())
}

func TestFileStoreMissingFile(t *testing.T) {
	items, err := NewFileStore(filepath.Join(t.TempDir(), "none.json")).Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewLedger(NewFileStore(path), nil, nil)
	assert.Error(t, err)
}

func TestLedgerSkipsInvalidStoredItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"items":[
		{"id":"6f1c1f8e-3a52-4a7b-9d3b-2c1a8f0e4d11","coinId":"bitcoin","quantity":1,"purchasePrice":1},
		{"id":"bad","coinId":"","quantity":0,"purchasePrice":0}
	]}`), 0o644))

	l, err := NewLedger(NewFileStore(path), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())
}
