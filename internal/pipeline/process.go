package pipeline

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"wikignome/internal"
	"wikignome/internal/config"
	"wikignome/internal/storage"
)

// Result is one pipeline pass over a page. Changed gates persistence:
// when false the summary is empty and the caller must skip the save.
type Result struct {
	Text    string
	Summary string
	Fired   []string
	Changed bool
}

func RulesFor(kind internal.PageKind, title string, checker PageChecker) ([]Rule, error) {
	switch kind {
	case internal.KindLeagueCup:
		return LeagueCupRules(title), nil
	case internal.KindPlayer:
		return PlayerRules(checker), nil
	case internal.KindResults:
		return ResultsRules(title, checker), nil
	default:
		return nil, fmt.Errorf("unsupported page kind: %s", kind)
	}
}

// Normalize runs the full rule sequence for the page's kind. It performs no
// wiki I/O beyond what the injected checker answers.
func Normalize(kind internal.PageKind, page internal.Page, checker PageChecker) (Result, error) {
	rules, err := RulesFor(kind, page.Title, checker)
	if err != nil {
		return Result{}, err
	}

	final, fired, err := NewEngine(rules).Run(page.Text)
	if err != nil {
		return Result{}, err
	}

	changed, summary := Summarize(page.OriginalText, final, fired)
	return Result{Text: final, Summary: summary, Fired: fired, Changed: changed}, nil
}

// PageSource is the wiki surface the batch loop needs. *wiki.Client satisfies
// it; tests substitute a fake.
type PageSource interface {
	ListCategoryMembers(ctx context.Context, category, startAfter string, limit int) ([]internal.PageRef, error)
	FetchPage(ctx context.Context, title string) (internal.Page, error)
	SavePage(ctx context.Context, page internal.Page, summary string) error
	PageExists(ctx context.Context, title string) (bool, error)
}

type ProcessingService struct {
	db     *storage.DB
	source PageSource
	cfg    config.Config
}

func NewProcessingService(db *storage.DB, source PageSource, cfg config.Config) *ProcessingService {
	return &ProcessingService{db: db, source: source, cfg: cfg}
}

type RunSummary struct {
	TraceID   string
	Processed int
	Saved     int
	Skipped   int
	Failed    int
}

type clientChecker struct {
	ctx    context.Context
	source PageSource
}

func (c clientChecker) PageExists(title string) (bool, error) {
	return c.source.PageExists(c.ctx, title)
}

// NormalizeCategory walks one category, normalizing each member page in
// order. The cursor is advanced after every page, so an aborted run resumes
// where it stopped. A page-level failure (missing mandatory field, edit
// conflict) marks that page and moves on; transport failures abort the run.
func (s *ProcessingService) NormalizeCategory(ctx context.Context, category string, kind internal.PageKind, start string, batch int, dryRun bool) (RunSummary, error) {
	began := time.Now()

	if start == "" {
		cursor, err := s.db.GetCursor(category)
		if err != nil {
			return RunSummary{}, err
		}
		start = cursor
	}

	refs, err := s.source.ListCategoryMembers(ctx, category, start, batch)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{TraceID: traceID()}
	checker := clientChecker{ctx: ctx, source: s.source}

	for _, ref := range refs {
		page, err := s.source.FetchPage(ctx, ref.Title)
		if err != nil {
			return summary, err
		}
		summary.Processed++
		if _, err := s.db.UpsertPage(ref.Title, category, kind, internal.PageFetched, textHash(page.OriginalText)); err != nil {
			return summary, err
		}

		// Rule-level errors (missing mandatory field, unparseable date) are
		// scoped to the page; only transport and storage errors abort the run.
		result, err := Normalize(kind, page, checker)
		if err != nil {
			fmt.Printf("page %s failed: %v\n", ref.Title, err)
			if _, dbErr := s.db.UpsertPage(ref.Title, category, kind, internal.PageFailed, textHash(page.OriginalText)); dbErr != nil {
				return summary, dbErr
			}
			summary.Failed++
			if err := s.db.SetCursor(category, ref.Title); err != nil {
				return summary, err
			}
			continue
		}

		if !result.Changed {
			fmt.Printf("no changes to %s, page skipped\n", ref.Title)
			if _, err := s.db.UpsertPage(ref.Title, category, kind, internal.PageSkipped, textHash(page.OriginalText)); err != nil {
				return summary, err
			}
			summary.Skipped++
			if err := s.db.SetCursor(category, ref.Title); err != nil {
				return summary, err
			}
			continue
		}

		oldHash := textHash(page.OriginalText)
		newHash := textHash(result.Text)
		status := internal.PageSaved

		if !dryRun {
			page.Text = result.Text
			if err := s.source.SavePage(ctx, page, result.Summary); err != nil {
				if !errors.Is(err, internal.ErrEditConflict) {
					return summary, err
				}
				fmt.Printf("page %s failed: %v\n", ref.Title, err)
				status = internal.PageFailed
			}
		}

		row, err := s.db.UpsertPage(ref.Title, category, kind, status, newHash)
		if err != nil {
			return summary, err
		}
		if status == internal.PageFailed {
			summary.Failed++
		} else {
			if _, err := s.db.InsertEdit(summary.TraceID, row.ID, result.Summary, result.Fired, oldHash, newHash, dryRun); err != nil {
				return summary, err
			}
			fmt.Printf("page %s: %s\n", ref.Title, result.Summary)
			summary.Saved++
		}
		if err := s.db.SetCursor(category, ref.Title); err != nil {
			return summary, err
		}
	}

	err = s.db.InsertRun(summary.TraceID, category,
		map[string]float64{"totalMs": float64(time.Since(began).Milliseconds())},
		map[string]int{"processed": summary.Processed, "saved": summary.Saved, "skipped": summary.Skipped, "failed": summary.Failed})
	if err != nil {
		return summary, err
	}

	return summary, nil
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
