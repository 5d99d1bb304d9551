package mover

import (
	"context"
	"fmt"
	"strings"

	"wikignome/internal/wiki"
)

const moveReason = "consistent formatting of tournament URL"

// NewTitle maps an old-scheme league-cup title to the canonical one:
// Pokemon League Cup/<loc>/<dd-mm-yy> becomes
// Pokemon Championships/League Cup/<loc>/<yyyy-mm-dd>. ok is false for
// titles that do not follow the old scheme.
func NewTitle(title string) (string, bool) {
	parts := strings.Split(title, "/")
	if len(parts) != 3 || parts[0] != "Pokemon League Cup" {
		return "", false
	}
	locality := parts[1]

	dmy := strings.Split(parts[2], "-")
	if len(dmy) != 3 {
		return "", false
	}
	day, month, year := dmy[0], dmy[1], dmy[2]
	if len(year) == 2 {
		year = "20" + year
	}

	return fmt.Sprintf("Pokemon Championships/League Cup/%s/%s-%s-%s", locality, year, month, day), true
}

type Service struct {
	client *wiki.Client
}

func NewService(client *wiki.Client) *Service {
	return &Service{client: client}
}

type MoveResult struct {
	Moved   int
	Skipped int
}

// MoveCategory renames every old-scheme page in the category without leaving
// a redirect behind. Pages already on the new scheme are skipped.
func (s *Service) MoveCategory(ctx context.Context, category string, limit int, dryRun bool) (MoveResult, error) {
	refs, err := s.client.ListCategoryMembers(ctx, category, "", limit)
	if err != nil {
		return MoveResult{}, err
	}

	result := MoveResult{}
	for _, ref := range refs {
		to, ok := NewTitle(ref.Title)
		if !ok {
			result.Skipped++
			continue
		}
		fmt.Printf("page move: %s >>>> %s\n", ref.Title, to)
		if !dryRun {
			if err := s.client.MovePage(ctx, ref.Title, to, moveReason); err != nil {
				return result, err
			}
		}
		result.Moved++
	}

	return result, nil
}
