package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"wikignome/internal"
	"wikignome/internal/config"
	"wikignome/internal/storage"
)

type fakeSource struct {
	titles []string
	pages  map[string]string
	saved  map[string]string
}

func (f *fakeSource) ListCategoryMembers(_ context.Context, _ string, startAfter string, _ int) ([]internal.PageRef, error) {
	var refs []internal.PageRef
	for _, title := range f.titles {
		if title == startAfter {
			continue
		}
		refs = append(refs, internal.PageRef{Title: title})
	}
	return refs, nil
}

func (f *fakeSource) FetchPage(_ context.Context, title string) (internal.Page, error) {
	text := f.pages[title]
	return internal.Page{Title: title, Text: text, OriginalText: text, BaseTimestamp: "2021-02-01T00:00:00Z"}, nil
}

func (f *fakeSource) SavePage(_ context.Context, page internal.Page, _ string) error {
	f.saved[page.Title] = page.Text
	return nil
}

func (f *fakeSource) PageExists(context.Context, string) (bool, error) {
	return false, nil
}

func TestNormalizeCategoryContinuesAfterPageFailure(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	badTitle := "Pokemon League Cup/Hamburg/01-01-2022"
	badPage := `{{Infobox league
|name=League Cup - Hamburg 01-01-2022
|game=TCG
|country=Germany
|city=Hamburg
|date=January 1, 2022
}}
`
	stableTitle := "Pokemon League Cup/Berlin/05-03-2022"
	stablePage := `{{Infobox league
|name=League Cup - Berlin 05-03-2022
|game=TCG
|series=Pokémon League Cup
|country=Germany
|city=Berlin
|date=2022-03-05
}}
The '''Berlin League Cup''' was a tournament.

==References==
{{Reflist}}`

	source := &fakeSource{
		titles: []string{badTitle, stableTitle, leagueCupTitle},
		pages: map[string]string{
			badTitle:       badPage,
			stableTitle:    stablePage,
			leagueCupTitle: leagueCupInput,
		},
		saved: map[string]string{},
	}

	svc := NewProcessingService(db, source, config.Config{})
	summary, err := svc.NormalizeCategory(context.Background(), "League Cups", internal.KindLeagueCup, "", 0, false)
	if err != nil {
		t.Fatal(err)
	}

	// The unparseable date fails its own page only; the walk keeps going.
	if summary.Processed != 3 || summary.Failed != 1 || summary.Skipped != 1 || summary.Saved != 1 {
		t.Fatalf("summary=%+v", summary)
	}

	if _, ok := source.saved[badTitle]; ok {
		t.Fatal("failed page was saved")
	}
	saved, ok := source.saved[leagueCupTitle]
	if !ok {
		t.Fatal("changed page was not saved")
	}
	if !strings.Contains(saved, "==References==") {
		t.Fatalf("saved text not normalized:\n%s", saved)
	}

	badRow, err := db.GetPageByTitle(badTitle)
	if err != nil {
		t.Fatal(err)
	}
	if badRow == nil || badRow.Status != string(internal.PageFailed) {
		t.Fatalf("bad row=%+v", badRow)
	}
	if badRow.UpdatedAt == nil || *badRow.UpdatedAt == "" {
		t.Fatalf("no updatedAt on %+v", badRow)
	}

	cursor, err := db.GetCursor("League Cups")
	if err != nil {
		t.Fatal(err)
	}
	if cursor != leagueCupTitle {
		t.Fatalf("cursor=%q", cursor)
	}

	rows, err := db.GetEditReportRows(summary.TraceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Title != leagueCupTitle {
		t.Fatalf("rows=%+v", rows)
	}

	failed, err := db.ListPagesByStatus(internal.PageFailed, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].Title != badTitle {
		t.Fatalf("failed=%+v", failed)
	}
}
