package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"wikignome/internal"
	"wikignome/internal/config"
)

// Client speaks the MediaWiki Action API. It is the only component that
// performs wiki I/O; the rule pipeline never touches it directly.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter

	mu        sync.Mutex
	csrfToken string
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type apiResponse struct {
	Error    *apiError         `json:"error"`
	Continue map[string]string `json:"continue"`
	Query    *queryPayload     `json:"query"`
	Edit     *editPayload      `json:"edit"`
	Move     json.RawMessage   `json:"move"`
	Upload   *uploadPayload    `json:"upload"`
}

type queryPayload struct {
	CategoryMembers []struct {
		Title string `json:"title"`
	} `json:"categorymembers"`
	Pages  []pagePayload     `json:"pages"`
	Tokens map[string]string `json:"tokens"`
}

type pagePayload struct {
	Title     string `json:"title"`
	Missing   bool   `json:"missing"`
	Revisions []struct {
		Timestamp string `json:"timestamp"`
		Slots     map[string]struct {
			Content string `json:"content"`
		} `json:"slots"`
	} `json:"revisions"`
}

type editPayload struct {
	Result string `json:"result"`
}

type uploadPayload struct {
	Result string `json:"result"`
}

func NewClient(cfg config.Config) *Client {
	timeout := time.Duration(cfg.WikiTimeoutMs) * time.Millisecond
	httpClient := &http.Client{Timeout: timeout}
	if strings.TrimSpace(cfg.WikiAPIToken) != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.WikiAPIToken, TokenType: "Bearer"})
		httpClient = oauth2.NewClient(context.Background(), src)
		httpClient.Timeout = timeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    NewRateLimiter(cfg.WikiRateLimitRPS),
	}
}

// ListCategoryMembers walks a category in the wiki's stable listing order,
// following the API continuation token. startAfter resumes the walk from a
// previous run's cursor (exclusive). limit <= 0 means no cap.
func (c *Client) ListCategoryMembers(ctx context.Context, category, startAfter string, limit int) ([]internal.PageRef, error) {
	out := make([]internal.PageRef, 0)
	cont := ""

	for {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "categorymembers")
		params.Set("cmtitle", "Category:"+category)
		params.Set("cmnamespace", "0")
		params.Set("cmlimit", "500")
		if startAfter != "" {
			params.Set("cmstartsortkeyprefix", startAfter)
		}
		if cont != "" {
			params.Set("cmcontinue", cont)
		}

		resp, err := c.get(ctx, params)
		if err != nil {
			return nil, err
		}
		if resp.Query == nil {
			return nil, errors.New("wiki api: empty query payload")
		}

		for _, member := range resp.Query.CategoryMembers {
			if member.Title == startAfter {
				continue
			}
			out = append(out, internal.PageRef{Title: member.Title})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}

		cont = resp.Continue["cmcontinue"]
		if cont == "" {
			return out, nil
		}
	}
}

func (c *Client) FetchPage(ctx context.Context, title string) (internal.Page, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "revisions")
	params.Set("rvprop", "content|timestamp")
	params.Set("rvslots", "main")
	params.Set("titles", title)

	resp, err := c.get(ctx, params)
	if err != nil {
		return internal.Page{}, err
	}
	if resp.Query == nil || len(resp.Query.Pages) == 0 {
		return internal.Page{}, fmt.Errorf("wiki api: no page payload for %s", title)
	}

	pg := resp.Query.Pages[0]
	if pg.Missing {
		return internal.Page{}, fmt.Errorf("page not found: %s", title)
	}
	if len(pg.Revisions) == 0 {
		return internal.Page{}, fmt.Errorf("page has no revisions: %s", title)
	}

	rev := pg.Revisions[0]
	content := rev.Slots["main"].Content
	return internal.Page{
		Title:         pg.Title,
		Text:          content,
		OriginalText:  content,
		BaseTimestamp: rev.Timestamp,
	}, nil
}

func (c *Client) PageExists(ctx context.Context, title string) (bool, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", title)

	resp, err := c.get(ctx, params)
	if err != nil {
		return false, err
	}
	if resp.Query == nil || len(resp.Query.Pages) == 0 {
		return false, nil
	}
	return !resp.Query.Pages[0].Missing, nil
}

func (c *Client) FileExists(ctx context.Context, filename string) (bool, error) {
	return c.PageExists(ctx, "File:"+filename)
}

// SavePage persists new text with the edit summary. basetimestamp makes the
// edit all-or-nothing: a revision landed since fetch surfaces as
// internal.ErrEditConflict, never as a silent overwrite.
func (c *Client) SavePage(ctx context.Context, page internal.Page, summary string) error {
	token, err := c.csrf(ctx)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("action", "edit")
	form.Set("title", page.Title)
	form.Set("text", page.Text)
	form.Set("summary", summary)
	form.Set("nocreate", "1")
	if page.BaseTimestamp != "" {
		form.Set("basetimestamp", page.BaseTimestamp)
	}
	form.Set("token", token)

	resp, err := c.postForm(ctx, form)
	if err != nil {
		var apiErr *apiCodeError
		if errors.As(err, &apiErr) && apiErr.Code == "editconflict" {
			return internal.ErrEditConflict
		}
		return err
	}
	if resp.Edit == nil || resp.Edit.Result != "Success" {
		return fmt.Errorf("wiki api: edit of %s did not succeed", page.Title)
	}
	return nil
}

func (c *Client) MovePage(ctx context.Context, from, to, reason string) error {
	token, err := c.csrf(ctx)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("action", "move")
	form.Set("from", from)
	form.Set("to", to)
	form.Set("reason", reason)
	form.Set("noredirect", "1")
	form.Set("token", token)

	_, err = c.postForm(ctx, form)
	return err
}

func (c *Client) UploadFile(ctx context.Context, filename string, source []byte, comment, description string) error {
	token, err := c.csrf(ctx)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := map[string]string{
		"action":         "upload",
		"format":         "json",
		"formatversion":  "2",
		"filename":       filename,
		"comment":        comment,
		"text":           description,
		"ignorewarnings": "1",
		"token":          token,
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(source); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := c.send(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WikiAPIURL, bytes.NewReader(body.Bytes()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return err
	}
	if resp.Upload == nil || resp.Upload.Result != "Success" {
		return fmt.Errorf("wiki api: upload of %s did not succeed", filename)
	}
	return nil
}

func (c *Client) csrf(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.csrfToken
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "tokens")
	params.Set("type", "csrf")

	resp, err := c.get(ctx, params)
	if err != nil {
		return "", err
	}
	if resp.Query == nil {
		return "", errors.New("wiki api: empty token payload")
	}
	token := resp.Query.Tokens["csrftoken"]
	if token == "" {
		return "", errors.New("wiki api: no csrf token granted")
	}

	c.mu.Lock()
	c.csrfToken = token
	c.mu.Unlock()
	return token, nil
}

func (c *Client) get(ctx context.Context, params url.Values) (*apiResponse, error) {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	endpoint := c.cfg.WikiAPIURL + "?" + params.Encode()

	return c.send(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
}

func (c *Client) postForm(ctx context.Context, form url.Values) (*apiResponse, error) {
	form.Set("format", "json")
	form.Set("formatversion", "2")
	encoded := form.Encode()

	return c.send(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WikiAPIURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

type apiCodeError struct {
	Code string
	Info string
}

func (e *apiCodeError) Error() string {
	return fmt.Sprintf("wiki api error: %s: %s", e.Code, e.Info)
}

func (c *Client) send(ctx context.Context, build func() (*http.Request, error)) (*apiResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		req, err := build()
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.cfg.WikiUserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("wiki status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("wiki api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if apiResp.Error != nil {
			if isRetryableCode(apiResp.Error.Code) && attempt < 5 {
				lastErr = &apiCodeError{Code: apiResp.Error.Code, Info: apiResp.Error.Info}
				time.Sleep(time.Duration(250*attempt) * time.Millisecond)
				continue
			}
			return nil, &apiCodeError{Code: apiResp.Error.Code, Info: apiResp.Error.Info}
		}
		return &apiResp, nil
	}

	if lastErr == nil {
		lastErr = errors.New("wiki request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func isRetryableCode(code string) bool {
	switch code {
	case "maxlag", "ratelimited":
		return true
	default:
		return false
	}
}
