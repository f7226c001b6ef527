package replies

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"roostdb/pkg/models"
)

type fakeSearch struct {
	pages [][]*models.Post
	i     int

	failAt  int // 1-based page index that errors, 0 for never
	failErr error

	gotQuery []string
	gotSince []int64
	gotMax   []int64
	gotCount []int
}

func (f *fakeSearch) Search(_ context.Context, q string, sinceID, maxID int64, count int) ([]*models.Post, error) {
	f.gotQuery = append(f.gotQuery, q)
	f.gotSince = append(f.gotSince, sinceID)
	f.gotMax = append(f.gotMax, maxID)
	f.gotCount = append(f.gotCount, count)
	if f.failAt > 0 && len(f.gotQuery) == f.failAt {
		return nil, f.failErr
	}
	if f.i >= len(f.pages) {
		return nil, nil
	}
	p := f.pages[f.i]
	f.i++
	return p, nil
}

func target(id int64) *models.Post {
	return &models.Post{
		ID:    id,
		IDStr: strconv.FormatInt(id, 10),
		User:  &models.User{ID: 7, Handle: "ada"},
	}
}

func reply(id, inReplyTo int64) *models.Post {
	return &models.Post{
		ID:          id,
		InReplyToID: inReplyTo,
		CreatedAt:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Second),
		User:        &models.User{ID: 9, Handle: "bob"},
	}
}

func TestCollectWalksUntilShortPage(t *testing.T) {
	f := &fakeSearch{pages: [][]*models.Post{
		{reply(2005, 1000), reply(2004, 1000), reply(2003, 1000)},
		{reply(2002, 1000), reply(2001, 999), reply(2000, 1000)},
		{reply(1999, 1000)},
	}}
	w, err := NewWalker(f, target(1000), WithPageSize(3))
	if err != nil {
		t.Fatal(err)
	}

	got := w.Collect(context.Background())
	if w.Err() != nil {
		t.Fatalf("err = %v", w.Err())
	}
	want := []int64{1999, 2000, 2002, 2003, 2004, 2005}
	if len(got) != len(want) {
		t.Fatalf("collected %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("got[%d] = %d, want %d", i, got[i].ID, id)
		}
	}

	// the query addresses the author, bounded below by the target id
	if f.gotQuery[0] != "to:ada" {
		t.Fatalf("query = %q", f.gotQuery[0])
	}
	for _, s := range f.gotSince {
		if s != 1000 {
			t.Fatalf("sinceID = %d", s)
		}
	}
	// each page upper bound steps below the previous page's oldest id
	if f.gotMax[0] != 0 || f.gotMax[1] != 2002 || f.gotMax[2] != 1999 {
		t.Fatalf("maxID sequence = %v", f.gotMax)
	}
	if f.gotCount[0] != 3 {
		t.Fatalf("page size = %d", f.gotCount[0])
	}
}

func TestShortFirstPageStopsAfterOneFetch(t *testing.T) {
	f := &fakeSearch{pages: [][]*models.Post{
		{reply(2001, 1000), reply(2000, 1000)},
	}}
	w, err := NewWalker(f, target(1000), WithPageSize(5))
	if err != nil {
		t.Fatal(err)
	}
	got := w.Collect(context.Background())
	if len(got) != 2 || len(f.gotQuery) != 1 {
		t.Fatalf("collected %d over %d fetches", len(got), len(f.gotQuery))
	}
}

func TestPageErrorKeepsEarlierReplies(t *testing.T) {
	f := &fakeSearch{
		pages: [][]*models.Post{
			{reply(2002, 1000), reply(2001, 1000), reply(2000, 1000)},
		},
		failAt:  2,
		failErr: errors.New("search unavailable"),
	}
	w, err := NewWalker(f, target(1000), WithPageSize(3))
	if err != nil {
		t.Fatal(err)
	}

	got := w.Collect(context.Background())
	if len(got) != 3 {
		t.Fatalf("collected %d", len(got))
	}
	if w.Err() == nil {
		t.Fatal("walk error lost")
	}
}

func TestFullPageOfNonMatchesContinues(t *testing.T) {
	f := &fakeSearch{pages: [][]*models.Post{
		{reply(2002, 555), reply(2001, 556), reply(2000, 557)},
		{reply(1999, 1000)},
	}}
	w, err := NewWalker(f, target(1000), WithPageSize(3))
	if err != nil {
		t.Fatal(err)
	}
	got := w.Collect(context.Background())
	if len(got) != 1 || got[0].ID != 1999 {
		t.Fatalf("collected %+v", got)
	}
	if len(f.gotQuery) != 2 {
		t.Fatalf("fetched %d pages", len(f.gotQuery))
	}
}

func TestMaxPagesCapsTheWalk(t *testing.T) {
	f := &fakeSearch{pages: [][]*models.Post{
		{reply(2005, 1000), reply(2004, 1000), reply(2003, 1000)},
		{reply(2002, 1000), reply(2001, 1000), reply(2000, 1000)},
		{reply(1999, 1000), reply(1998, 1000), reply(1997, 1000)},
	}}
	w, err := NewWalker(f, target(1000), WithPageSize(3), WithMaxPages(2))
	if err != nil {
		t.Fatal(err)
	}
	got := w.Collect(context.Background())
	if len(got) != 6 {
		t.Fatalf("collected %d, want 6", len(got))
	}
	if len(f.gotQuery) != 2 {
		t.Fatalf("fetched %d pages, want 2", len(f.gotQuery))
	}
	if w.Err() != nil {
		t.Fatalf("page cap is a clean stop, got %v", w.Err())
	}
}

func TestWalkerResolvesRetweetWrapper(t *testing.T) {
	inner := target(1000)
	wrapper := &models.Post{ID: 5000, IDStr: "5000", RetweetedStatus: inner}

	f := &fakeSearch{pages: [][]*models.Post{
		{reply(2000, 1000)},
	}}
	w, err := NewWalker(f, wrapper, WithPageSize(3))
	if err != nil {
		t.Fatal(err)
	}
	got := w.Collect(context.Background())
	if len(got) != 1 {
		t.Fatalf("collected %d", len(got))
	}
	if f.gotSince[0] != 1000 {
		t.Fatalf("walk bounded by wrapper id, since = %d", f.gotSince[0])
	}
}

func TestNewWalkerRejectsUnusableTargets(t *testing.T) {
	if _, err := NewWalker(&fakeSearch{}, nil); err == nil {
		t.Fatal("nil target accepted")
	}
	if _, err := NewWalker(&fakeSearch{}, &models.Post{ID: 1, IDStr: "1"}); err == nil {
		t.Fatal("target without author accepted")
	}
}

func TestSortThread(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ps := []*models.Post{
		{ID: 3, CreatedAt: base.Add(2 * time.Second)},
		{ID: 2, CreatedAt: base},
		{ID: 1, CreatedAt: base},
	}
	SortThread(ps)
	want := []int64{1, 2, 3}
	for i, id := range want {
		if ps[i].ID != id {
			t.Fatalf("order[%d] = %d, want %d", i, ps[i].ID, id)
		}
	}
}
