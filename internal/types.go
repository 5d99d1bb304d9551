package internal

import (
	"errors"
	"fmt"
)

type PageKind string

const (
	KindLeagueCup PageKind = "leaguecup"
	KindPlayer    PageKind = "player"
	KindResults   PageKind = "results"
)

type PageRef struct {
	Title string
}

// Page is the working copy of one wiki page. Text is mutated by the rule
// engine; OriginalText stays frozen for change detection.
type Page struct {
	Title         string
	Text          string
	OriginalText  string
	BaseTimestamp string
}

// Field is one named value inside a template invocation. Order matters when
// fields are re-serialized, so fields live in a slice, not a map.
type Field struct {
	Name  string
	Value string
}

type TemplateInvocation struct {
	Name   string
	Fields []Field
}

func (t TemplateInvocation) Get(name string) (string, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

type PageStatus string

const (
	PageFetched PageStatus = "fetched"
	PageSkipped PageStatus = "skipped"
	PageSaved   PageStatus = "saved"
	PageFailed  PageStatus = "error"
)

type PageRow struct {
	ID        int
	Title     string
	Category  string
	Kind      string
	Status    string
	Hash      string
	UpdatedAt *string
}

type EditReportRow struct {
	Title     string
	Kind      string
	Summary   string
	Fired     []string
	OldHash   string
	NewHash   string
	DryRun    bool
	CreatedAt string
}

// MissingFieldError reports a rule that needed a template field which is
// structurally absent. It aborts the whole page run instead of letting a
// later rule operate on partial state.
type MissingFieldError struct {
	Template string
	Field    string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing mandatory field %q in template %q", e.Field, e.Template)
}

// ErrEditConflict is returned by the page store when the stored revision
// changed between fetch and save. The core never retries it.
var ErrEditConflict = errors.New("edit conflict: page changed since fetch")
