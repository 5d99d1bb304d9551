package assets

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"wikignome/internal/config"
	"wikignome/internal/wiki"
)

const uploadComment = "Uploaded sprite"

type Service struct {
	client     *wiki.Client
	cfg        config.Config
	httpClient *http.Client
}

func NewService(client *wiki.Client, cfg config.Config) *Service {
	return &Service{
		client:     client,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.WikiTimeoutMs) * time.Millisecond},
	}
}

type SyncResult struct {
	Uploaded int
	Skipped  int
}

// SyncFromFile uploads every sprite named in the list file (one name per
// line) that the wiki does not already have.
func (s *Service) SyncFromFile(ctx context.Context, listPath string, limit int) (SyncResult, error) {
	f, err := os.Open(listPath)
	if err != nil {
		return SyncResult{}, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return SyncResult{}, err
	}

	return s.sync(ctx, names, limit)
}

// SyncFromIndex discovers sprite names from an HTML directory index instead
// of a local list file.
func (s *Service) SyncFromIndex(ctx context.Context, indexURL string, limit int) (SyncResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return SyncResult{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return SyncResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return SyncResult{}, fmt.Errorf("sprite index: status %d", resp.StatusCode)
	}

	names, err := ParseSpriteIndex(resp.Body)
	if err != nil {
		return SyncResult{}, err
	}
	return s.sync(ctx, names, limit)
}

// ParseSpriteIndex extracts sprite names from the .png links of an HTML
// directory listing.
func ParseSpriteIndex(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var names []string
	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.HasSuffix(href, ".png") {
			return
		}
		name := strings.TrimSuffix(path.Base(href), ".png")
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	})

	return names, nil
}

func (s *Service) sync(ctx context.Context, names []string, limit int) (SyncResult, error) {
	result := SyncResult{}
	for _, name := range names {
		if limit > 0 && result.Uploaded >= limit {
			break
		}

		filename := s.cfg.SpriteNamePrefix + name + ".png"
		exists, err := s.client.FileExists(ctx, filename)
		if err != nil {
			return result, err
		}
		if exists {
			result.Skipped++
			continue
		}

		blob, err := s.download(ctx, s.cfg.SpriteSourceBaseURL+name+".png")
		if err != nil {
			return result, err
		}

		if err := s.client.UploadFile(ctx, filename, blob, uploadComment, Description(name)); err != nil {
			return result, err
		}
		fmt.Printf("uploaded %s (%d bytes)\n", filename, len(blob))
		result.Uploaded++
	}

	return result, nil
}

func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Description renders the file description page for a sprite.
func Description(name string) string {
	return fmt.Sprintf(`== Summary ==
{{FileInfo
|featured=
|featured2=
|description=A Pokémon sprite of %s
|license=fairuse
|game=pokemon
|event=
|date=
|author=Pokémon
|copyright=Nintendo / Creatures Inc. / GAME FREAK Inc.
|note=
|source=Sprites are sourced from the PokéSprite project, a database for Pokémon sprites. (https://msikma.github.io/pokesprite/)
}}

[[Category:Pokémon sprites]]`, displayName(name))
}

// displayName turns a sprite slug like "mr-mime" into "Mr Mime".
func displayName(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "-", " "), " ")
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			r[0] = unicode.ToUpper(r[0])
			words[i] = string(r)
		}
	}
	return strings.Join(words, " ")
}
