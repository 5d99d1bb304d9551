package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wikignome/internal"
	"wikignome/internal/assets"
	"wikignome/internal/config"
	"wikignome/internal/mover"
	"wikignome/internal/pipeline"
	"wikignome/internal/storage"
	"wikignome/internal/wiki"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "pages:normalize":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		category := fs.String("category", "", "category to walk")
		kind := fs.String("kind", "", "leaguecup|player|results")
		start := fs.String("start", "", "resume after this title (overrides saved cursor)")
		batch := fs.Int("batch", cfg.NormalizeBatch, "pages per run")
		dryRun := fs.Bool("dry-run", false, "do not save edits")
		reset := fs.Bool("reset-cursor", false, "forget the saved cursor and start over")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*category) == "" || strings.TrimSpace(*kind) == "" {
			must(fmt.Errorf("--category and --kind are required"))
		}
		pageKind, err := parseKind(*kind)
		must(err)
		if *reset {
			must(db.ClearCursor(*category))
		}
		client := wiki.NewClient(cfg)
		svc := pipeline.NewProcessingService(db, client, cfg)
		summary, err := svc.NormalizeCategory(context.Background(), *category, pageKind, *start, *batch, *dryRun)
		must(err)
		fmt.Printf("normalize done trace=%s processed=%d saved=%d skipped=%d failed=%d\n",
			summary.TraceID, summary.Processed, summary.Saved, summary.Skipped, summary.Failed)
	case "pages:move":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		category := fs.String("category", "", "category to walk")
		limit := fs.Int("limit", 0, "max pages to move (0 = all)")
		dryRun := fs.Bool("dry-run", false, "report moves without performing them")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*category) == "" {
			must(fmt.Errorf("--category is required"))
		}
		client := wiki.NewClient(cfg)
		svc := mover.NewService(client)
		result, err := svc.MoveCategory(context.Background(), *category, *limit, *dryRun)
		must(err)
		fmt.Printf("move done moved=%d skipped=%d\n", result.Moved, result.Skipped)
	case "assets:sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		list := fs.String("list", "", "path to a sprite name list file")
		indexURL := fs.String("index-url", cfg.SpriteIndexURL, "HTML directory index of sprite files")
		limit := fs.Int("limit", 0, "max uploads (0 = all)")
		_ = fs.Parse(os.Args[2:])
		must(cfg.Require("WIKI_API_TOKEN", cfg.WikiAPIToken))
		client := wiki.NewClient(cfg)
		svc := assets.NewService(client, cfg)
		var result assets.SyncResult
		if strings.TrimSpace(*list) != "" {
			result, err = svc.SyncFromFile(context.Background(), *list, *limit)
		} else if strings.TrimSpace(*indexURL) != "" {
			result, err = svc.SyncFromIndex(context.Background(), *indexURL, *limit)
		} else {
			err = fmt.Errorf("--list or --index-url is required")
		}
		must(err)
		fmt.Printf("sprite sync done uploaded=%d skipped=%d\n", result.Uploaded, result.Skipped)
	case "pages:failed":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 50, "max pages to list")
		_ = fs.Parse(os.Args[2:])
		pages, err := db.ListPagesByStatus(internal.PageFailed, *limit)
		must(err)
		for _, p := range pages {
			when := ""
			if p.UpdatedAt != nil {
				when = " at " + *p.UpdatedAt
			}
			fmt.Printf("%s (%s)%s\n", p.Title, p.Kind, when)
		}
		fmt.Printf("%d failed pages\n", len(pages))
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		run := fs.String("run", "", "trace id of a normalize run")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*run) == "" {
			must(fmt.Errorf("--run is required"))
		}
		target := *out
		if strings.TrimSpace(target) == "" {
			target = filepath.Join(cfg.OutputDir, "edits-"+*run+".xlsx")
		}
		rows, err := db.GetEditReportRows(*run)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no edits for run=%s", *run))
		}
		must(pipeline.ExportEditReportToXLSX(rows, target))
		fmt.Printf("exported %d rows to %s\n", len(rows), target)
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "path to a wikitext file")
		kind := fs.String("kind", "", "leaguecup|player|results")
		title := fs.String("title", "", "page title the text belongs to")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *kind == "" || *title == "" {
			must(fmt.Errorf("--input --kind --title are required"))
		}
		pageKind, err := parseKind(*kind)
		must(err)
		raw, err := os.ReadFile(*input)
		must(err)
		page := internal.Page{Title: *title, Text: string(raw), OriginalText: string(raw)}

		// Offline run: page-existence lookups always answer no.
		result, err := pipeline.Normalize(pageKind, page, pipeline.NeverExists{})
		must(err)
		if !result.Changed {
			fmt.Println("no changes")
			return
		}
		fmt.Printf("summary: %s\n", result.Summary)
		fmt.Println("----")
		fmt.Print(result.Text)
	default:
		usage()
		os.Exit(1)
	}
}

func parseKind(kind string) (internal.PageKind, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "leaguecup":
		return internal.KindLeagueCup, nil
	case "player":
		return internal.KindPlayer, nil
	case "results":
		return internal.KindResults, nil
	default:
		return "", fmt.Errorf("unsupported kind: %s", kind)
	}
}

func usage() {
	fmt.Println("usage: wikignome <command>")
	fmt.Println("commands:")
	fmt.Println("  pages:normalize --category=... --kind=leaguecup|player|results [--start=...] [--batch=50] [--dry-run] [--reset-cursor]")
	fmt.Println("  pages:move --category=... [--limit=0] [--dry-run]")
	fmt.Println("  pages:failed [--limit=50]")
	fmt.Println("  assets:sync [--list=names.txt | --index-url=...] [--limit=0]")
	fmt.Println("  export:xlsx --run=<traceId> [--out=./out/report.xlsx]")
	fmt.Println("  run --input=page.txt --kind=leaguecup|player|results --title=...")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
