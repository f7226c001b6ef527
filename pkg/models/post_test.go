package models

import (
	"testing"
	"time"
)

func TestConstructors(t *testing.T) {
	ada := &User{ID: 7, Handle: "ada"}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	p := NewPost(41, "hello", ada, at)
	if p.Kind() != KindPlain || p.IDStr != "41" || p.User != ada {
		t.Fatalf("plain post = %+v", p)
	}

	rt, err := NewRetweet(42, ada, at, p)
	if err != nil {
		t.Fatal(err)
	}
	if rt.Kind() != KindRetweet || rt.Target() != p || rt.IDStr != "42" {
		t.Fatalf("wrapper = %+v", rt)
	}

	// retweeting a wrapper attaches to the underlying post
	rt2, err := NewRetweet(43, ada, at, rt)
	if err != nil {
		t.Fatal(err)
	}
	if rt2.Target() != p {
		t.Fatalf("nested wrapper target = %+v", rt2.Target())
	}

	if _, err := NewRetweet(44, ada, at, nil); err == nil {
		t.Fatal("retweet of nil accepted")
	}
}

func TestKindAndTarget(t *testing.T) {
	plain := &Post{ID: 1, IDStr: "1"}
	if plain.Kind() != KindPlain || plain.Target() != plain || plain.Canonical() != plain {
		t.Fatal("plain post must resolve to itself")
	}

	inner := &Post{ID: 2, IDStr: "2"}
	wrapper := &Post{ID: 3, IDStr: "3", RetweetedStatus: inner}
	if wrapper.Kind() != KindRetweet {
		t.Fatal("wrapper not recognized")
	}
	if wrapper.Target() != inner || wrapper.Canonical() != inner {
		t.Fatal("wrapper must resolve to the retweeted post")
	}
}

func TestCanonicalize(t *testing.T) {
	t.Run("derives id_str", func(t *testing.T) {
		p := &Post{ID: 42}
		if err := p.Canonicalize(); err != nil {
			t.Fatal(err)
		}
		if p.IDStr != "42" {
			t.Fatalf("id_str = %q", p.IDStr)
		}
	})

	t.Run("parses id from id_str", func(t *testing.T) {
		p := &Post{IDStr: "99"}
		if err := p.Canonicalize(); err != nil {
			t.Fatal(err)
		}
		if p.ID != 99 {
			t.Fatalf("id = %d", p.ID)
		}
	})

	t.Run("no identity", func(t *testing.T) {
		if err := (&Post{Text: "ghost"}).Canonicalize(); err == nil {
			t.Fatal("post without ids accepted")
		}
	})

	t.Run("unparseable id_str", func(t *testing.T) {
		if err := (&Post{IDStr: "not-a-number"}).Canonicalize(); err == nil {
			t.Fatal("garbage id_str accepted")
		}
	})

	t.Run("clamps negative counters", func(t *testing.T) {
		p := &Post{ID: 1, RetweetCount: -2, FavoriteCount: -1}
		if err := p.Canonicalize(); err != nil {
			t.Fatal(err)
		}
		if p.RetweetCount != 0 || p.FavoriteCount != 0 {
			t.Fatalf("counters = %d/%d", p.RetweetCount, p.FavoriteCount)
		}
	})

	t.Run("flattens double wrap", func(t *testing.T) {
		p := &Post{ID: 1, RetweetedStatus: &Post{ID: 2, RetweetedStatus: &Post{ID: 3}}}
		if err := p.Canonicalize(); err != nil {
			t.Fatal(err)
		}
		if p.RetweetedStatus.ID != 3 || p.RetweetedStatus.RetweetedStatus != nil {
			t.Fatalf("wrap chain survived: %+v", p.RetweetedStatus)
		}
	})

	t.Run("nested failure names the parent", func(t *testing.T) {
		p := &Post{ID: 1, QuotedStatus: &Post{Text: "no id"}}
		err := p.Canonicalize()
		if err == nil {
			t.Fatal("broken quote accepted")
		}
	})
}
