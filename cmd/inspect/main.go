// Command inspect dumps a user's stored posts from a roostdb data dir
// without starting the server. Useful for checking what survived a crash
// or what retention left behind.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"roostdb/pkg/logger"
	"roostdb/pkg/state"
	"roostdb/pkg/store"
)

func main() {
	var (
		dbPath string
		userID int64
		limit  int
		asJSON bool
	)
	flag.StringVar(&dbPath, "db", "./.roostdb", "roostdb data dir")
	flag.Int64Var(&userID, "user", 0, "user id whose posts to dump")
	flag.IntVar(&limit, "n", 20, "max posts to print, newest first")
	flag.BoolVar(&asJSON, "json", false, "emit full records as JSON")
	flag.Parse()

	if userID == 0 {
		fmt.Fprintln(os.Stderr, "--user required")
		os.Exit(2)
	}

	// keep tool output clean; only real problems reach the terminal
	logger.InitWithLevel("error")

	db, err := store.Open(state.StorePath(dbPath), store.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer db.Close()

	st := db.ForUser(userID)
	count, err := st.Count()
	if err != nil {
		fmt.Fprintf(os.Stderr, "count: %v\n", err)
		os.Exit(1)
	}
	posts := st.Recent(limit)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, p := range posts {
			if err := enc.Encode(p); err != nil {
				fmt.Fprintf(os.Stderr, "encode %d: %v\n", p.ID, err)
				os.Exit(1)
			}
		}
		return
	}

	fmt.Printf("user %d: %d stored, showing %d\n\n", userID, count, len(posts))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tFAV\tRT\tFLAGS\tTEXT")
	for _, p := range posts {
		flags := ""
		if p.Favorited {
			flags += "F"
		}
		if p.Retweeted {
			flags += "R"
		}
		if p.RetweetedStatus != nil {
			flags += "W"
		}
		if p.Canonical().Extra.Translation != nil {
			flags += "T"
		}
		text := p.Text
		if p.RetweetedStatus != nil {
			text = "RT: " + p.RetweetedStatus.Text
		}
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n",
			p.ID, p.CreatedAt.Format("2006-01-02 15:04"),
			p.FavoriteCount, p.RetweetCount, flags, text)
	}
	_ = tw.Flush()
}
