package engine_test

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"remindsync/internal/engine"
	"remindsync/internal/health"
	"remindsync/internal/identity"
	"remindsync/internal/store"
	"remindsync/internal/testutil"
)

// testEnv bundles an engine wired to a FakeStore with a fresh identity
// map under a temp dir.
type testEnv struct {
	fake     *testutil.FakeStore
	eng      *engine.Engine
	ids      *identity.Map
	idsPath  string
	factory  int // factory call count
	mappings []engine.MappingEvent
}

func newTestEnv(t *testing.T, opts ...engine.Option) *testEnv {
	t.Helper()

	env := &testEnv{
		fake:    testutil.NewFakeStore(),
		idsPath: filepath.Join(t.TempDir(), "identity.json"),
	}

	ids, err := identity.Load(env.idsPath)
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	env.ids = ids

	factory := func(ctx context.Context) (store.Store, error) {
		env.factory++
		return env.fake, nil
	}

	opts = append([]engine.Option{
		engine.WithLogger(log.New(io.Discard, "", 0)),
		engine.OnMapping(func(ev engine.MappingEvent) {
			env.mappings = append(env.mappings, ev)
		}),
	}, opts...)

	env.eng = engine.New(factory, ids, opts...)
	return env
}

func (env *testEnv) sync(t *testing.T, groupings []engine.Grouping, tasks []engine.Task) engine.SyncResult {
	t.Helper()
	result, err := env.eng.Sync(context.Background(), groupings, tasks)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !result.Success {
		t.Fatal("expected successful pass")
	}
	return result
}

func (env *testEnv) mustFindList(t *testing.T, title string) store.List {
	t.Helper()
	l, ok := env.fake.FindList(title)
	if !ok {
		t.Fatalf("list %q not found, have %v", title, env.fake.Lists())
	}
	return l
}

func TestSyncCreatesListsAndItems(t *testing.T) {
	env := newTestEnv(t)

	groupings := []engine.Grouping{{ID: "g1", Title: "Bills", SortOrder: 0}}
	tasks := []engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g1"}}

	result := env.sync(t, groupings, tasks)

	if result.Matched != 1 {
		t.Errorf("expected 1 matched, got %d", result.Matched)
	}
	if len(result.ErrorsByTask) != 0 {
		t.Errorf("expected no task errors, got %v", result.ErrorsByTask)
	}

	l := env.mustFindList(t, "[Remind] Bills")
	items := env.fake.ItemsIn(l.ExternalID)
	if len(items) != 1 || items[0].Title != "Pay rent" {
		t.Fatalf("expected item 'Pay rent' in list, got %v", items)
	}

	if id, ok := env.ids.ListID("g1"); !ok || id != l.ExternalID {
		t.Errorf("expected list mapping g1 -> %s, got %q", l.ExternalID, id)
	}
	if id, ok := env.ids.ItemID("t1"); !ok || id != items[0].ExternalID {
		t.Errorf("expected item mapping t1 -> %s, got %q", items[0].ExternalID, id)
	}

	want := []engine.MappingEvent{
		{Kind: engine.KindGrouping, LocalID: "g1", ExternalID: l.ExternalID},
		{Kind: engine.KindTask, LocalID: "t1", ExternalID: items[0].ExternalID},
	}
	if diff := cmp.Diff(want, env.mappings); diff != "" {
		t.Errorf("mapping events mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncUnchangedSnapshotMakesNoMutations(t *testing.T) {
	env := newTestEnv(t)

	due := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	groupings := []engine.Grouping{{ID: "g1", Title: "Bills"}}
	tasks := []engine.Task{
		{ID: "t1", Title: "Pay rent", Notes: "transfer", GroupingID: "g1", DueAt: &due},
		{ID: "t2", Title: "Buy milk"},
	}

	env.sync(t, groupings, tasks)
	before := env.fake.Mutations

	result := env.sync(t, groupings, tasks)

	if env.fake.Mutations != before {
		t.Errorf("expected zero mutations on unchanged snapshot, got %d", env.fake.Mutations-before)
	}
	if result.Matched != 2 {
		t.Errorf("expected 2 matched, got %d", result.Matched)
	}
}

func TestSyncDueDateComparedAtDayGranularity(t *testing.T) {
	env := newTestEnv(t)

	morning := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	groupings := []engine.Grouping{{ID: "g1", Title: "Bills"}}
	env.sync(t, groupings, []engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g1", DueAt: &morning}})
	before := env.fake.Mutations

	// Same day, different hour. Backends store date precision only, so
	// this must not count as drift.
	evening := time.Date(2026, 3, 14, 17, 30, 0, 0, time.UTC)
	env.sync(t, groupings, []engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g1", DueAt: &evening}})

	if env.fake.Mutations != before {
		t.Errorf("expected no mutations for same-day due change, got %d", env.fake.Mutations-before)
	}
}

func TestSyncRenamedGroupingKeepsListIdentity(t *testing.T) {
	env := newTestEnv(t)

	env.sync(t,
		[]engine.Grouping{{ID: "g1", Title: "Bills"}},
		[]engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g1"}},
	)
	listID, _ := env.ids.ListID("g1")
	itemID, _ := env.ids.ItemID("t1")

	env.sync(t,
		[]engine.Grouping{{ID: "g1", Title: "Invoices"}},
		[]engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g1"}},
	)

	l := env.mustFindList(t, "[Remind] Invoices")
	if l.ExternalID != listID {
		t.Errorf("rename should keep list %s, got %s", listID, l.ExternalID)
	}
	if id, _ := env.ids.ItemID("t1"); id != itemID {
		t.Errorf("rename should keep item %s, got %s", itemID, id)
	}
	if _, ok := env.fake.FindList("[Remind] Bills"); ok {
		t.Error("old list title should be gone after rename")
	}
}

func TestSyncRenamedTaskUpdatesSameItem(t *testing.T) {
	env := newTestEnv(t)

	groupings := []engine.Grouping{{ID: "g1", Title: "Bills"}}
	env.sync(t, groupings, []engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g1"}})
	itemID, _ := env.ids.ItemID("t1")

	env.sync(t, groupings, []engine.Task{{ID: "t1", Title: "Pay rent by the 1st", GroupingID: "g1"}})

	listID, _ := env.ids.ListID("g1")
	items := env.fake.ItemsIn(listID)
	if len(items) != 1 {
		t.Fatalf("rename must not create a second item, got %d", len(items))
	}
	if items[0].ExternalID != itemID {
		t.Errorf("rename should update item %s, got %s", itemID, items[0].ExternalID)
	}
	if items[0].Title != "Pay rent by the 1st" {
		t.Errorf("expected renamed title, got %q", items[0].Title)
	}
}

func TestSyncDeletesUserItemInManagedListKeepsEmptyList(t *testing.T) {
	env := newTestEnv(t)

	groupings := []engine.Grouping{{ID: "g1", Title: "Bills"}}
	env.sync(t, groupings, []engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g1"}})

	// An item the user typed directly into the managed list is
	// indistinguishable from an abandoned managed item.
	listID, _ := env.ids.ListID("g1")
	env.fake.SeedItem(listID, store.Item{Title: "Handwritten"})

	result := env.sync(t, groupings, nil)

	if result.OrphansRemoved != 2 {
		t.Errorf("expected both items swept, got %d", result.OrphansRemoved)
	}
	if items := env.fake.ItemsIn(listID); len(items) != 0 {
		t.Errorf("expected managed list emptied, got %v", items)
	}
	// Lists are never deleted merely for being empty.
	if _, ok := env.fake.FindList("[Remind] Bills"); !ok {
		t.Error("expected empty managed list to remain")
	}
}

func TestSyncAdoptsExistingListAndItemByTitle(t *testing.T) {
	env := newTestEnv(t)

	// State left behind by a previous install; the identity map is empty.
	listID := env.fake.SeedList("[Remind] Bills", "")
	itemID := env.fake.SeedItem(listID, store.Item{Title: "Pay rent"})

	result := env.sync(t,
		[]engine.Grouping{{ID: "g1", Title: "Bills"}},
		[]engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g1"}},
	)

	if result.Matched != 1 {
		t.Errorf("expected 1 matched, got %d", result.Matched)
	}
	if env.fake.Mutations != 0 {
		t.Errorf("adoption should not mutate matching state, got %d mutations", env.fake.Mutations)
	}
	if id, _ := env.ids.ListID("g1"); id != listID {
		t.Errorf("expected adopted list %s, got %s", listID, id)
	}
	if id, _ := env.ids.ItemID("t1"); id != itemID {
		t.Errorf("expected adopted item %s, got %s", itemID, id)
	}
}

func TestSyncEqualTitlesDoNotCollapse(t *testing.T) {
	env := newTestEnv(t)

	groupings := []engine.Grouping{{ID: "g1", Title: "Chores"}}
	tasks := []engine.Task{
		{ID: "t1", Title: "Water plants", GroupingID: "g1"},
		{ID: "t2", Title: "Water plants", GroupingID: "g1"},
	}

	env.sync(t, groupings, tasks)
	env.sync(t, groupings, tasks)

	l := env.mustFindList(t, "[Remind] Chores")
	if items := env.fake.ItemsIn(l.ExternalID); len(items) != 2 {
		t.Fatalf("expected 2 items for equally titled tasks, got %d", len(items))
	}
	id1, _ := env.ids.ItemID("t1")
	id2, _ := env.ids.ItemID("t2")
	if id1 == id2 {
		t.Errorf("both tasks mapped to the same item %s", id1)
	}
}

func TestSyncDuplicateGroupingTitlesGetSeparateLists(t *testing.T) {
	env := newTestEnv(t)

	groupings := []engine.Grouping{
		{ID: "g1", Title: "Bills", SortOrder: 0},
		{ID: "g2", Title: "Bills", SortOrder: 1},
	}
	tasks := []engine.Task{
		{ID: "t1", Title: "Pay rent", GroupingID: "g1"},
		{ID: "t2", Title: "Pay water", GroupingID: "g2"},
	}

	env.sync(t, groupings, tasks)

	l1, ok := env.ids.ListID("g1")
	if !ok {
		t.Fatal("expected g1 mapped")
	}
	l2, ok := env.ids.ListID("g2")
	if !ok {
		t.Fatal("expected g2 mapped")
	}
	if l1 == l2 {
		t.Fatalf("equally titled groupings collapsed onto list %s", l1)
	}

	var managed int
	for _, l := range env.fake.Lists() {
		if l.Title == "[Remind] Bills" {
			managed++
		}
	}
	if managed != 2 {
		t.Fatalf("expected 2 lists titled '[Remind] Bills', got %d", managed)
	}
	if items := env.fake.ItemsIn(l1); len(items) != 1 || items[0].Title != "Pay rent" {
		t.Fatalf("expected 'Pay rent' in g1's list, got %v", items)
	}
	if items := env.fake.ItemsIn(l2); len(items) != 1 || items[0].Title != "Pay water" {
		t.Fatalf("expected 'Pay water' in g2's list, got %v", items)
	}

	// Dropping one of the pair must not touch the other's list.
	env.sync(t, groupings[1:], tasks[1:])

	if _, ok := env.ids.ListID("g1"); ok {
		t.Error("expected g1 mapping dropped")
	}
	if items := env.fake.ItemsIn(l2); len(items) != 1 || items[0].Title != "Pay water" {
		t.Fatalf("expected g2's list intact, got %v", items)
	}
}

func TestSyncSharedListMappingSurvivesGroupingRemoval(t *testing.T) {
	env := newTestEnv(t)

	// A stale identity file can map two groupings to one list. Removing
	// one grouping must not delete the list out from under the other.
	listID := env.fake.SeedList("[Remind] Bills", "")
	env.fake.SeedItem(listID, store.Item{Title: "Pay rent"})
	env.ids.SetListID("g1", listID)
	env.ids.SetListID("g2", listID)

	groupings := []engine.Grouping{{ID: "g2", Title: "Bills"}}
	tasks := []engine.Task{{ID: "t2", Title: "Pay rent", GroupingID: "g2"}}

	env.sync(t, groupings, tasks)

	if _, ok := env.fake.FindList("[Remind] Bills"); !ok {
		t.Fatal("surviving grouping's list was deleted")
	}
	if id, ok := env.ids.ListID("g2"); !ok || id != listID {
		t.Fatalf("expected g2 still mapped to %s, got %q", listID, id)
	}
	if _, ok := env.ids.ListID("g1"); ok {
		t.Error("expected g1 mapping dropped")
	}
	if items := env.fake.ItemsIn(listID); len(items) != 1 || items[0].Title != "Pay rent" {
		t.Fatalf("expected item preserved, got %v", items)
	}
}

func TestSyncRecreatesItemDeletedOutOfBand(t *testing.T) {
	env := newTestEnv(t)

	groupings := []engine.Grouping{{ID: "g1", Title: "Bills"}}
	tasks := []engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g1"}}
	env.sync(t, groupings, tasks)

	listID, _ := env.ids.ListID("g1")
	oldItemID, _ := env.ids.ItemID("t1")
	env.fake.RemoveItem(listID, oldItemID)

	result := env.sync(t, groupings, tasks)

	if result.Matched != 1 {
		t.Errorf("expected 1 matched, got %d", result.Matched)
	}
	items := env.fake.ItemsIn(listID)
	if len(items) != 1 || items[0].Title != "Pay rent" {
		t.Fatalf("expected recreated item, got %v", items)
	}
	if id, _ := env.ids.ItemID("t1"); id == oldItemID {
		t.Error("stale mapping should have been replaced")
	}
}

func TestSyncMovesItemBetweenGroupings(t *testing.T) {
	env := newTestEnv(t)

	groupings := []engine.Grouping{
		{ID: "g1", Title: "Bills", SortOrder: 0},
		{ID: "g2", Title: "Errands", SortOrder: 1},
	}
	env.sync(t, groupings, []engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g1"}})

	result := env.sync(t, groupings, []engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g2"}})

	billsID, _ := env.ids.ListID("g1")
	errandsID, _ := env.ids.ListID("g2")
	if items := env.fake.ItemsIn(billsID); len(items) != 0 {
		t.Errorf("expected source list empty after move, got %v", items)
	}
	items := env.fake.ItemsIn(errandsID)
	if len(items) != 1 || items[0].Title != "Pay rent" {
		t.Fatalf("expected item in target list, got %v", items)
	}
	// The moved item must not be swept as an orphan of either list.
	if result.OrphansRemoved != 0 {
		t.Errorf("move must not trigger orphan removal, got %d", result.OrphansRemoved)
	}
}

func TestSyncUngroupedTaskGoesToInbox(t *testing.T) {
	env := newTestEnv(t)

	env.sync(t, nil, []engine.Task{{ID: "t1", Title: "Buy milk"}})

	l := env.mustFindList(t, "[Remind] Inbox")
	items := env.fake.ItemsIn(l.ExternalID)
	if len(items) != 1 || items[0].Title != "Buy milk" {
		t.Fatalf("expected item in inbox, got %v", items)
	}
}

func TestSyncRemovedTaskSweptAsOrphan(t *testing.T) {
	env := newTestEnv(t)

	groupings := []engine.Grouping{{ID: "g1", Title: "Bills"}}
	env.sync(t, groupings, []engine.Task{
		{ID: "t1", Title: "Pay rent", GroupingID: "g1"},
		{ID: "t2", Title: "Pay water", GroupingID: "g1"},
	})

	result := env.sync(t, groupings, []engine.Task{
		{ID: "t1", Title: "Pay rent", GroupingID: "g1"},
	})

	if result.OrphansRemoved != 1 {
		t.Errorf("expected 1 orphan removed, got %d", result.OrphansRemoved)
	}
	listID, _ := env.ids.ListID("g1")
	items := env.fake.ItemsIn(listID)
	if len(items) != 1 || items[0].Title != "Pay rent" {
		t.Fatalf("expected only the kept task's item, got %v", items)
	}
	if _, ok := env.ids.ItemID("t2"); ok {
		t.Error("removed task should lose its mapping")
	}
}

func TestSyncOrphanAlreadyGoneIsNotCounted(t *testing.T) {
	env := newTestEnv(t)

	listID := env.fake.SeedList("[Remind] Bills", "")
	env.fake.SeedItem(listID, store.Item{Title: "Stale"})
	env.fake.DeleteItemErr = store.NewError(store.NotFound, "DeleteItem", errors.New("gone"))

	result := env.sync(t, []engine.Grouping{{ID: "g1", Title: "Bills"}}, nil)

	if result.OrphansRemoved != 0 {
		t.Errorf("expected no orphans counted for an already-deleted item, got %d", result.OrphansRemoved)
	}
}

func TestSyncNeverTouchesUnmanagedLists(t *testing.T) {
	env := newTestEnv(t)

	userList := env.fake.SeedList("Groceries", "")
	env.fake.SeedItem(userList, store.Item{Title: "Cheese"})

	result := env.sync(t, nil, []engine.Task{{ID: "t1", Title: "Buy milk"}})

	if result.OrphansRemoved != 0 {
		t.Errorf("expected no orphans in unmanaged lists, got %d", result.OrphansRemoved)
	}
	items := env.fake.ItemsIn(userList)
	if len(items) != 1 || items[0].Title != "Cheese" {
		t.Fatalf("unmanaged list was modified: %v", items)
	}
}

func TestSyncRemovedGroupingDeletesListAndMappings(t *testing.T) {
	env := newTestEnv(t)

	env.sync(t,
		[]engine.Grouping{{ID: "g1", Title: "Bills"}},
		[]engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g1"}},
	)

	env.sync(t, nil, nil)

	if _, ok := env.fake.FindList("[Remind] Bills"); ok {
		t.Error("expected external list deleted with its grouping")
	}
	if _, ok := env.ids.ListID("g1"); ok {
		t.Error("expected grouping mapping removed")
	}
	if _, ok := env.ids.ItemID("t1"); ok {
		t.Error("expected item mappings of the deleted list removed")
	}
}

func TestSyncListRenamedAwayFromPrefixIsReleased(t *testing.T) {
	env := newTestEnv(t)

	// The user stripped the managed prefix off an external list; it is
	// theirs now. The engine must leave it alone and start fresh.
	theirs := env.fake.SeedList("Bills", "")
	env.ids.SetListID("g1", theirs)

	env.sync(t, []engine.Grouping{{ID: "g1", Title: "Bills"}}, nil)

	fresh := env.mustFindList(t, "[Remind] Bills")
	if fresh.ExternalID == theirs {
		t.Error("expected a fresh managed list, not the released one")
	}
	if l, ok := env.fake.FindList("Bills"); !ok || l.ExternalID != theirs {
		t.Error("released list should be untouched")
	}
	if id, _ := env.ids.ListID("g1"); id != fresh.ExternalID {
		t.Errorf("expected mapping re-derived to %s, got %s", fresh.ExternalID, id)
	}
}

func TestSyncProvenanceFooterAppendedOnce(t *testing.T) {
	env := newTestEnv(t)

	tasks := []engine.Task{{
		ID:     "t1",
		Title:  "Re: Invoice due",
		Notes:  "please pay by friday",
		Origin: engine.OriginEmail,
		OriginMeta: &engine.OriginMeta{
			Sender:  "billing@example.com",
			Subject: "Re: Invoice due",
		},
	}}

	env.sync(t, nil, tasks)
	env.sync(t, nil, tasks)

	l := env.mustFindList(t, "[Remind] Inbox")
	items := env.fake.ItemsIn(l.ExternalID)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	notes := items[0].Notes
	if !engine.HasProvenance(notes) {
		t.Fatalf("expected provenance marker in notes, got %q", notes)
	}
	if n := strings.Count(notes, "[remindsync:v1]"); n != 1 {
		t.Errorf("expected exactly one marker, got %d in %q", n, notes)
	}
	if !strings.Contains(notes, "billing@example.com") {
		t.Errorf("expected sender in footer, got %q", notes)
	}
	if !strings.HasPrefix(notes, "please pay by friday") {
		t.Errorf("expected original notes preserved, got %q", notes)
	}
}

func TestSyncPersistsIdentityMap(t *testing.T) {
	env := newTestEnv(t)

	env.sync(t,
		[]engine.Grouping{{ID: "g1", Title: "Bills"}},
		[]engine.Task{{ID: "t1", Title: "Pay rent", GroupingID: "g1"}},
	)

	reloaded, err := identity.Load(env.idsPath)
	if err != nil {
		t.Fatalf("reload identity: %v", err)
	}
	if diff := cmp.Diff(env.ids.Lists, reloaded.Lists); diff != "" {
		t.Errorf("persisted list mappings mismatch (-mem +disk):\n%s", diff)
	}
	if diff := cmp.Diff(env.ids.Items, reloaded.Items); diff != "" {
		t.Errorf("persisted item mappings mismatch (-mem +disk):\n%s", diff)
	}
}

func TestSyncRejectsConcurrentCall(t *testing.T) {
	env := newTestEnv(t)

	var busyErr error
	eng := env.eng
	// Re-enter from the mapping callback, which fires mid-pass.
	reentrant := engine.OnMapping(func(engine.MappingEvent) {
		if busyErr == nil {
			_, busyErr = eng.Sync(context.Background(), nil, nil)
		}
	})
	ids, err := identity.Load(filepath.Join(t.TempDir(), "identity.json"))
	if err != nil {
		t.Fatal(err)
	}
	eng = engine.New(func(ctx context.Context) (store.Store, error) {
		return env.fake, nil
	}, ids, engine.WithLogger(log.New(io.Discard, "", 0)), reentrant)

	if _, err := eng.Sync(context.Background(), []engine.Grouping{{ID: "g1", Title: "Bills"}}, nil); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if busyErr != engine.ErrBusy {
		t.Errorf("expected ErrBusy from concurrent call, got %v", busyErr)
	}
}

func TestSyncRetriesTransientFailure(t *testing.T) {
	env := newTestEnv(t)

	env.fake.TransientFailures = 1

	result := env.sync(t, nil, []engine.Task{{ID: "t1", Title: "Buy milk"}})

	if result.Matched != 1 {
		t.Errorf("expected 1 matched after retry, got %d", result.Matched)
	}
	if env.factory < 2 {
		t.Errorf("expected a reconnect through the factory, got %d calls", env.factory)
	}
	if got := env.eng.Status().State; got != health.Success {
		t.Errorf("expected Success state, got %v", got)
	}
}

func TestSyncTransientExhaustionFails(t *testing.T) {
	monitor := health.NewMonitor(log.New(io.Discard, "", 0))
	monitor.SetMaxRetries(0)
	env := newTestEnv(t, engine.WithMonitor(monitor))

	env.fake.TransientFailures = 10

	_, err := env.eng.Sync(context.Background(), nil, []engine.Task{{ID: "t1", Title: "Buy milk"}})
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if !store.IsTransient(err) {
		t.Errorf("expected transient classification, got %v", err)
	}
	status := env.eng.Status()
	if status.State != health.Failed {
		t.Errorf("expected Failed state, got %v", status.State)
	}
	if status.Message != "sync failed: retry later" {
		t.Errorf("unexpected status message %q", status.Message)
	}
}

func TestSyncPermissionDeniedIsTerminal(t *testing.T) {
	env := newTestEnv(t)

	env.fake.ListAllErr = store.NewError(store.PermissionDenied, "ListAll", nil)

	_, err := env.eng.Sync(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if store.KindOf(err) != store.PermissionDenied {
		t.Errorf("expected permission denied, got %v", err)
	}
	if env.fake.Calls != 1 {
		t.Errorf("permission denied must not be retried, got %d calls", env.fake.Calls)
	}
	if msg := env.eng.Status().Message; !strings.Contains(msg, "permission needed") {
		t.Errorf("unexpected status message %q", msg)
	}
}

func TestSyncUnknownItemFailureDoesNotAbortPass(t *testing.T) {
	env := newTestEnv(t)

	env.fake.UpsertItemErr = store.NewError(store.Unknown, "UpsertItem", nil)

	result := env.sync(t, nil, []engine.Task{
		{ID: "t1", Title: "Buy milk"},
		{ID: "t2", Title: "Buy eggs"},
	})

	if result.Matched != 0 {
		t.Errorf("expected 0 matched, got %d", result.Matched)
	}
	if len(result.ErrorsByTask) != 2 {
		t.Fatalf("expected 2 task errors, got %v", result.ErrorsByTask)
	}
	if _, ok := result.ErrorsByTask["t1"]; !ok {
		t.Error("expected error recorded for t1")
	}
}

func TestRecoverLeaksMovesMarkedItemsToInbox(t *testing.T) {
	env := newTestEnv(t)

	userList := env.fake.SeedList("Groceries", "")
	leaked := env.fake.SeedItem(userList, store.Item{
		Title: "Re: Invoice due",
		Notes: "please pay\n\n[remindsync:v1] from: billing@example.com | subject: Re: Invoice due",
	})
	env.fake.SeedItem(userList, store.Item{Title: "Cheese", Notes: "the good kind"})

	recovered, err := env.eng.RecoverLeaks(context.Background())
	if err != nil {
		t.Fatalf("recover leaks: %v", err)
	}
	if recovered != 1 {
		t.Errorf("expected 1 recovered, got %d", recovered)
	}

	inbox := env.mustFindList(t, "[Remind] Inbox")
	items := env.fake.ItemsIn(inbox.ExternalID)
	if len(items) != 1 || items[0].ExternalID != leaked {
		t.Fatalf("expected leaked item in inbox, got %v", items)
	}

	remaining := env.fake.ItemsIn(userList)
	if len(remaining) != 1 || remaining[0].Title != "Cheese" {
		t.Fatalf("unmarked item must stay put, got %v", remaining)
	}
	if _, ok := env.fake.FindList("Groceries"); !ok {
		t.Error("unmanaged list must never be deleted")
	}
}
