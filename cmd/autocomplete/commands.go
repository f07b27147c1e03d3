package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"
	_ "modernc.org/sqlite"

	"autocomplete/internal/channel"
	mylog "autocomplete/internal/log"
	"autocomplete/internal/models"
	"autocomplete/internal/registry"
	"autocomplete/internal/server"
	sqlm "autocomplete/internal/storage/sqlite"
	"autocomplete/internal/store"
)

func openEnv() (*server.Env, error) {
	return server.OpenEnv(context.Background(), mylog.New())
}

// openDurableEnv is used by commands that write records.
func openDurableEnv() (*server.Env, error) {
	return server.OpenDurableEnv(context.Background(), mylog.New())
}

func serverURL() string {
	if v := os.Getenv("AUTOCOMPLETE_SERVER_URL"); v != "" {
		return v
	}
	return "http://localhost:8089"
}

func channelsCmd(_ []string, out io.Writer) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tURL\tLIMIT\tBOOTSTRAP")
	for _, ch := range env.Registry.List() {
		u, err := ch.GetAbsoluteURL()
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", ch.Name(), u, ch.LimitResults(), ch.Bootstrap())
	}
	return tw.Flush()
}

func searchCmd(args []string, out io.Writer) error {
	if len(args) < 2 {
		return errors.New("usage: autocomplete search <channel> \"<query>\" [--html]")
	}
	name, query := args[0], args[1]
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	html := fs.Bool("html", false, "print rendered result html")
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	ch, err := env.Registry.Lookup(name)
	if err != nil {
		return err
	}
	req := channel.NewRequest(url.Values{channel.QueryParam: {query}})
	results, err := ch.InitForRequest(req).GetResults(context.Background(), nil)
	if err != nil {
		return err
	}
	if *html {
		for _, r := range results {
			h, err := ch.ResultAsHTML(r)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, h)
		}
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.Name, humanize.Time(r.Created))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s result(s)\n", humanize.Comma(int64(len(results))))
	return nil
}

func validateCmd(args []string, out io.Writer) (bool, error) {
	if len(args) < 1 {
		return false, errors.New("usage: autocomplete validate <channel> <id>...")
	}
	env, err := openEnv()
	if err != nil {
		return false, err
	}
	defer env.Close()
	ch, err := env.Registry.Lookup(args[0])
	if err != nil {
		return false, err
	}
	ok, err := ch.AreValid(context.Background(), append([]string{}, args[1:]...))
	if err != nil {
		return false, err
	}
	if ok {
		fmt.Fprintln(out, "valid")
	} else {
		fmt.Fprintln(out, "invalid")
	}
	return ok, nil
}

// readRecords accepts a definitions file with a records section or a bare
// YAML/JSON list of records.
func readRecords(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if f, err := registry.Parse(data); err == nil {
		return f.Records, nil
	}
	var recs []models.Record
	if err := yaml.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%s: not a definitions file or record list: %w", path, err)
	}
	return recs, nil
}

func importCmd(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: autocomplete import <file>")
	}
	recs, err := readRecords(args[0])
	if err != nil {
		return err
	}
	env, err := openDurableEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	n, err := store.Import(context.Background(), env.Store, recs)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %s record(s)\n", humanize.Comma(int64(n)))
	return nil
}

func statsCmd(_ []string, out io.Writer) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	st, err := env.Store.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "records:  %s\n", humanize.Comma(int64(st["records"])))
	fmt.Fprintf(out, "kinds:    %s\n", humanize.Comma(int64(st["kinds"])))
	fmt.Fprintf(out, "channels: %s\n", humanize.Comma(int64(env.Registry.Len())))
	if path := os.Getenv("AUTOCOMPLETE_SQLITE_PATH"); path != "" {
		if fi, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "database: %s (%s)\n", path, humanize.Bytes(uint64(fi.Size())))
		}
	}
	return nil
}

func migrateCmd(args []string, out io.Writer) error {
	path := os.Getenv("AUTOCOMPLETE_SQLITE_PATH")
	if path == "" {
		return server.ErrNoDatabase
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()
	m := sqlm.Manager{}
	action := "status"
	if len(args) > 0 {
		action = args[0]
	}
	switch action {
	case "up":
		err = m.UpToLatest(ctx, db)
	case "down":
		err = m.DownOne(ctx, db)
	case "status":
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		return err
	}
	v, err := m.Version(ctx, db)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema version %d\n", v)
	return nil
}

func metricsCmd(out io.Writer) error {
	resp, err := http.Get(serverURL() + "/metrics")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}
