// Command journalsearch manages and searches a local journal kept in an
// embedded buntdb file.
//
// Usage:
//
//	journalsearch [-config path] add [-kind journal] [-label s] [-prompt s] text...
//	journalsearch [-config path] rm id
//	journalsearch [-config path] search [-limit n] [-kind k,...] [-from YYYY-MM-DD] [-to YYYY-MM-DD] query...
//	journalsearch [-config path] stats
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/journal/store/bunt"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	storePath := flag.String("store", "", "entry store path (overrides config)")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, "text")
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	if err := run(context.Background(), cfg, flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "journalsearch: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: journalsearch [-config path] [-store path] <add|rm|search|stats> [args]")
	flag.PrintDefaults()
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string, out io.Writer) error {
	store, err := bunt.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	switch cmd {
	case "add":
		return runAdd(store, args, out, time.Now)
	case "rm":
		if len(args) != 1 {
			return errors.New("rm needs exactly one entry id")
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "removed %s\n", args[0])
		return nil
	case "search":
		return runSearch(ctx, cfg, store, args, out)
	case "stats":
		return runStats(ctx, cfg, store, out)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runAdd(store *bunt.Store, args []string, out io.Writer, now func() time.Time) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	kind := fs.String("kind", string(document.KindJournal), "entry kind")
	label := fs.String("label", "", "entry label")
	prompt := fs.String("prompt", "", "prompt the entry answers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rec := document.Record{
		ID:        uuid.NewString(),
		Kind:      document.ParseKind(*kind),
		CreatedAt: now().UTC(),
		Text:      strings.Join(fs.Args(), " "),
		Label:     *label,
		Prompt:    *prompt,
	}
	if err := journal.Validate(rec); err != nil {
		return err
	}
	if err := store.Put(rec); err != nil {
		return err
	}
	fmt.Fprintln(out, rec.ID)
	return nil
}

func loadEngine(ctx context.Context, cfg *config.Config, store *bunt.Store) (*indexer.Engine, error) {
	engine := indexer.NewEngine()
	if _, err := journal.NewSyncer(store, engine, cfg.Store.LoadTimeout, nil).Resync(ctx); err != nil {
		return nil, err
	}
	return engine, nil
}

func runSearch(ctx context.Context, cfg *config.Config, store *bunt.Store, args []string, out io.Writer) error {
	loc, err := cfg.Search.Location()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	limit := fs.Int("limit", cfg.Search.DefaultLimit, "maximum results")
	kinds := fs.String("kind", "", "comma separated kinds to keep")
	from := fs.String("from", "", "first day to include (YYYY-MM-DD)")
	to := fs.String("to", "", "first day to exclude (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := executor.Options{Limit: *limit, SnippetLength: cfg.Search.SnippetLength}
	for _, k := range strings.Split(*kinds, ",") {
		if k = strings.TrimSpace(k); k != "" {
			opts.Kinds = append(opts.Kinds, document.ParseKind(k))
		}
	}
	if opts.From, err = parseDay(*from, loc); err != nil {
		return fmt.Errorf("invalid -from: %w", err)
	}
	if opts.To, err = parseDay(*to, loc); err != nil {
		return fmt.Errorf("invalid -to: %w", err)
	}

	engine, err := loadEngine(ctx, cfg, store)
	if err != nil {
		return err
	}
	hits := executor.New(engine, executor.WithLocation(loc)).Search(strings.Join(fs.Args(), " "), opts)
	if len(hits) == 0 {
		fmt.Fprintln(out, "no matches")
		return nil
	}
	for _, h := range hits {
		fmt.Fprintf(out, "%s  %-10s  %.3f  %s\n    %s\n",
			h.CreatedAt.In(loc).Format(time.DateOnly), h.Kind, h.Score, h.ID, h.Snippet)
	}
	return nil
}

func runStats(ctx context.Context, cfg *config.Config, store *bunt.Store, out io.Writer) error {
	engine, err := loadEngine(ctx, cfg, store)
	if err != nil {
		return err
	}
	stored, err := store.Count()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "entries: %d\nindexed: %d\nterms:   %d\n", stored, engine.Size(), engine.TermCount())
	return nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.DateOnly, s, loc)
}
