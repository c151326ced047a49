// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"remindsync/internal/store"
)

// FakeStore is an in-memory implementation of store.Store for testing.
//
// Besides the backing data it tracks every mutating call in Mutations,
// which lets tests assert that a repeated sync with an unchanged snapshot
// performs zero external writes.
type FakeStore struct {
	mu      sync.Mutex
	lists   []store.List
	items   map[string][]store.Item // listID -> items
	listSeq int
	itemSeq int

	// Mutations counts CreateList/UpdateList/DeleteList/UpsertItem/
	// MoveItem/DeleteItem calls that reached the backing data.
	Mutations int

	// TransientFailures makes the next N calls (any operation) fail with
	// a Transient error before touching the data.
	TransientFailures int

	// Calls counts every Store call, including failed ones.
	Calls int

	// Error injection per operation.
	ListAllErr    error
	CreateListErr error
	UpdateListErr error
	DeleteListErr error
	ListItemsErr  map[string]error // listID -> error
	UpsertItemErr error
	MoveItemErr   error
	DeleteItemErr error
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		items:        make(map[string][]store.Item),
		ListItemsErr: make(map[string]error),
	}
}

// SeedList adds a list directly to the backing data (no mutation count).
func (f *FakeStore) SeedList(title, colorHex string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextListID()
	f.lists = append(f.lists, store.List{ExternalID: id, Title: title, ColorHex: colorHex})
	f.items[id] = nil
	return id
}

// SeedItem adds an item directly to the backing data (no mutation count).
func (f *FakeStore) SeedItem(listID string, item store.Item) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ExternalID = f.nextItemID()
	item.ListExternalID = listID
	f.items[listID] = append(f.items[listID], item)
	return item.ExternalID
}

// RemoveItem deletes an item out-of-band, as if the user edited the
// external store directly.
func (f *FakeStore) RemoveItem(listID, itemID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteItemLocked(listID, itemID)
}

// Lists returns a copy of the current lists.
func (f *FakeStore) Lists() []store.List {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.List, len(f.lists))
	copy(out, f.lists)
	return out
}

// ItemsIn returns a copy of a list's items.
func (f *FakeStore) ItemsIn(listID string) []store.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Item, len(f.items[listID]))
	copy(out, f.items[listID])
	return out
}

// FindList returns the first list with the given title.
func (f *FakeStore) FindList(title string) (store.List, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lists {
		if l.Title == title {
			return l, true
		}
	}
	return store.List{}, false
}

// ListAll implements store.Store.
func (f *FakeStore) ListAll(ctx context.Context) ([]store.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("ListAll", f.ListAllErr); err != nil {
		return nil, err
	}
	out := make([]store.List, len(f.lists))
	copy(out, f.lists)
	return out, nil
}

// CreateList implements store.Store.
func (f *FakeStore) CreateList(ctx context.Context, title, colorHex string) (store.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("CreateList", f.CreateListErr); err != nil {
		return store.List{}, err
	}
	f.Mutations++
	l := store.List{ExternalID: f.nextListID(), Title: title, ColorHex: colorHex}
	f.lists = append(f.lists, l)
	f.items[l.ExternalID] = nil
	return l, nil
}

// UpdateList implements store.Store.
func (f *FakeStore) UpdateList(ctx context.Context, listID, title, colorHex string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("UpdateList", f.UpdateListErr); err != nil {
		return err
	}
	for i, l := range f.lists {
		if l.ExternalID == listID {
			f.Mutations++
			f.lists[i].Title = title
			f.lists[i].ColorHex = colorHex
			return nil
		}
	}
	return store.NewError(store.NotFound, "UpdateList", fmt.Errorf("list %s", listID))
}

// DeleteList implements store.Store.
func (f *FakeStore) DeleteList(ctx context.Context, listID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("DeleteList", f.DeleteListErr); err != nil {
		return err
	}
	for i, l := range f.lists {
		if l.ExternalID == listID {
			f.Mutations++
			f.lists = append(f.lists[:i], f.lists[i+1:]...)
			delete(f.items, listID)
			return nil
		}
	}
	return store.NewError(store.NotFound, "DeleteList", fmt.Errorf("list %s", listID))
}

// ListItems implements store.Store.
func (f *FakeStore) ListItems(ctx context.Context, listID string) ([]store.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("ListItems", f.ListItemsErr[listID]); err != nil {
		return nil, err
	}
	items, ok := f.items[listID]
	if !ok {
		return nil, store.NewError(store.NotFound, "ListItems", fmt.Errorf("list %s", listID))
	}
	out := make([]store.Item, len(items))
	copy(out, items)
	return out, nil
}

// UpsertItem implements store.Store.
func (f *FakeStore) UpsertItem(ctx context.Context, item store.Item) (store.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("UpsertItem", f.UpsertItemErr); err != nil {
		return store.Item{}, err
	}
	items, ok := f.items[item.ListExternalID]
	if !ok {
		return store.Item{}, store.NewError(store.NotFound, "UpsertItem", fmt.Errorf("list %s", item.ListExternalID))
	}
	f.Mutations++
	if item.ExternalID == "" {
		item.ExternalID = f.nextItemID()
		f.items[item.ListExternalID] = append(items, item)
		return item, nil
	}
	for i, it := range items {
		if it.ExternalID == item.ExternalID {
			f.items[item.ListExternalID][i] = item
			return item, nil
		}
	}
	return store.Item{}, store.NewError(store.NotFound, "UpsertItem", fmt.Errorf("item %s", item.ExternalID))
}

// MoveItem implements store.Store. Keeps the item ID stable, unlike some
// real backends; the engine must cope with either.
func (f *FakeStore) MoveItem(ctx context.Context, itemID, fromListID, toListID string) (store.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("MoveItem", f.MoveItemErr); err != nil {
		return store.Item{}, err
	}
	if _, ok := f.items[toListID]; !ok {
		return store.Item{}, store.NewError(store.NotFound, "MoveItem", fmt.Errorf("list %s", toListID))
	}
	for _, it := range f.items[fromListID] {
		if it.ExternalID == itemID {
			f.Mutations++
			f.deleteItemLocked(fromListID, itemID)
			it.ListExternalID = toListID
			f.items[toListID] = append(f.items[toListID], it)
			return it, nil
		}
	}
	return store.Item{}, store.NewError(store.NotFound, "MoveItem", fmt.Errorf("item %s", itemID))
}

// DeleteItem implements store.Store.
func (f *FakeStore) DeleteItem(ctx context.Context, listID, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("DeleteItem", f.DeleteItemErr); err != nil {
		return err
	}
	for _, it := range f.items[listID] {
		if it.ExternalID == itemID {
			f.Mutations++
			f.deleteItemLocked(listID, itemID)
			return nil
		}
	}
	return store.NewError(store.NotFound, "DeleteItem", fmt.Errorf("item %s", itemID))
}

// gate applies the shared failure knobs. Caller holds the lock.
func (f *FakeStore) gate(op string, injected error) error {
	f.Calls++
	if f.TransientFailures > 0 {
		f.TransientFailures--
		return store.NewError(store.Transient, op, fmt.Errorf("injected transient failure"))
	}
	if injected != nil {
		return injected
	}
	return nil
}

func (f *FakeStore) deleteItemLocked(listID, itemID string) {
	items := f.items[listID]
	for i, it := range items {
		if it.ExternalID == itemID {
			f.items[listID] = append(items[:i], items[i+1:]...)
			return
		}
	}
}

func (f *FakeStore) nextListID() string {
	f.listSeq++
	return fmt.Sprintf("l%d", f.listSeq)
}

func (f *FakeStore) nextItemID() string {
	f.itemSeq++
	return fmt.Sprintf("i%d", f.itemSeq)
}
