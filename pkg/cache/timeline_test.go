package cache

import (
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"roostdb/pkg/models"
	"roostdb/pkg/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "db"), store.Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db.ForUser(42)
}

func post(id int64) *models.Post {
	return &models.Post{
		ID:        id,
		IDStr:     strconv.FormatInt(id, 10),
		Text:      "post " + strconv.FormatInt(id, 10),
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Second),
	}
}

func TestUpdatePost(t *testing.T) {
	st := testStore(t)
	tl := NewTimeline("home", st)
	if err := tl.Replace([]*models.Post{post(1), post(2)}); err != nil {
		t.Fatal(err)
	}

	upd := post(1)
	upd.Favorited = true
	if !tl.UpdatePost(upd) {
		t.Fatal("present post not updated")
	}
	if got := tl.Get(1); got == nil || !got.Favorited {
		t.Fatalf("cache entry not swapped: %+v", got)
	}
	// the update is durable
	stored := st.FindByIDs([]int64{1})
	if len(stored) != 1 || !stored[0].Favorited {
		t.Fatalf("update not persisted: %+v", stored)
	}

	if tl.UpdatePost(post(99)) {
		t.Fatal("absent post reported as updated")
	}
	if tl.UpdatePost(nil) {
		t.Fatal("nil post reported as updated")
	}
}

func TestReplaceKeepsStoredTranslation(t *testing.T) {
	st := testStore(t)
	tl := NewTimeline("home", st)

	translated := post(1)
	translated.Extra.Translation = &models.Translation{Text: "hola", Unchanged: false}
	if err := tl.Replace([]*models.Post{translated}); err != nil {
		t.Fatal(err)
	}

	// a refresh delivers the same post without local extension data
	fresh := post(1)
	fresh.FavoriteCount = 8
	if err := tl.Replace([]*models.Post{fresh, post(2)}); err != nil {
		t.Fatal(err)
	}

	got := tl.Get(1)
	if got == nil || got.Extra.Translation == nil || got.Extra.Translation.Text != "hola" {
		t.Fatalf("translation lost on refresh: %+v", got)
	}
	if got.FavoriteCount != 8 {
		t.Fatalf("fresh counters lost: %+v", got)
	}
}

func TestPrepend(t *testing.T) {
	st := testStore(t)
	tl := NewTimeline("home", st)
	if err := tl.Replace([]*models.Post{post(3), post(2), post(1)}); err != nil {
		t.Fatal(err)
	}

	refreshed := post(3)
	refreshed.Retweeted = true
	if err := tl.Prepend([]*models.Post{post(5), post(4), refreshed}); err != nil {
		t.Fatal(err)
	}

	got := tl.Posts()
	wantOrder := []int64{5, 4, 3, 2, 1}
	if len(got) != len(wantOrder) {
		t.Fatalf("len = %d, want %d", len(got), len(wantOrder))
	}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Fatalf("order[%d] = %d, want %d", i, got[i].ID, want)
		}
	}
	// the already-cached post was replaced in place, not duplicated
	if !tl.Get(3).Retweeted {
		t.Fatal("in-place replacement lost")
	}
	// index is rebuilt for shifted entries
	if tl.Get(1) == nil || tl.Get(1).ID != 1 {
		t.Fatal("index stale after prepend")
	}
}

func TestHydrate(t *testing.T) {
	st := testStore(t)
	if err := st.PutBatch([]*models.Post{post(1), post(2), post(3)}); err != nil {
		t.Fatal(err)
	}

	tl := NewTimeline("home", st)
	if n := tl.Hydrate(2); n != 2 {
		t.Fatalf("hydrated %d, want 2", n)
	}
	got := tl.Posts()
	if got[0].ID != 3 || got[1].ID != 2 {
		t.Fatalf("hydrate order wrong: [%d %d]", got[0].ID, got[1].ID)
	}
}

func TestClearKeepsDurableRecords(t *testing.T) {
	st := testStore(t)
	tl := NewTimeline("home", st)
	if err := tl.Replace([]*models.Post{post(1), post(2)}); err != nil {
		t.Fatal(err)
	}

	tl.Clear()
	if tl.Len() != 0 {
		t.Fatalf("len after clear = %d", tl.Len())
	}
	if n, _ := st.Count(); n != 2 {
		t.Fatalf("clear touched storage, count = %d", n)
	}
}

func TestReplaceDropsDuplicates(t *testing.T) {
	st := testStore(t)
	tl := NewTimeline("home", st)
	if err := tl.Replace([]*models.Post{post(1), post(1), nil, post(2)}); err != nil {
		t.Fatal(err)
	}
	if tl.Len() != 2 {
		t.Fatalf("len = %d, want 2", tl.Len())
	}
}
