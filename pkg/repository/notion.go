package repository

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/config"
	"github.com/Borislavv/notion-widget-cache/pkg/model"
	"github.com/valyala/fasthttp"
)

const (
	DefaultNotionAPIURL     = "https://api.notion.com"
	DefaultNotionAPIVersion = "2022-06-28"

	defaultRequestTimeout = 10 * time.Second
	queryPageSize         = 100
)

// ContentSource reads posts from a remote database on behalf of a widget.
type ContentSource interface {
	QueryDatabase(ctx context.Context, token, databaseID string, f model.Filters) ([]model.Post, error)
	TestConnection(ctx context.Context, token, databaseID string) error
	DetectColumns(ctx context.Context, token, databaseID string) (model.Columns, error)
}

// APIError is a non-2xx answer of the Notion API.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("notion api responded with status %d", e.Status)
	}
	return fmt.Sprintf("notion api responded with status %d (%s): %s", e.Status, e.Code, e.Message)
}

// IsUnauthorized reports whether the token was rejected or lacks access to the database.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == fasthttp.StatusUnauthorized || e.Status == fasthttp.StatusForbidden
}

type Notion struct {
	baseURL string
	version string
	client  *fasthttp.Client
}

func NewNotion(cfg config.Upstream) *Notion {
	baseURL := strings.TrimRight(cfg.NotionAPIURL, "/")
	if baseURL == "" {
		baseURL = DefaultNotionAPIURL
	}
	version := cfg.NotionAPIVersion
	if version == "" {
		version = DefaultNotionAPIVersion
	}
	return &Notion{
		baseURL: baseURL,
		version: version,
		client: &fasthttp.Client{
			Name:                     "notion-widget-cache",
			MaxConnsPerHost:          64,
			ReadTimeout:              defaultRequestTimeout,
			WriteTimeout:             defaultRequestTimeout,
			NoDefaultUserAgentHeader: true,
		},
	}
}

// QueryDatabase fetches the first page of rows, filters them by platform and status
// and orders them by publish date, newest first.
func (n *Notion) QueryDatabase(ctx context.Context, token, databaseID string, f model.Filters) ([]model.Post, error) {
	body, err := json.Marshal(queryRequest{PageSize: queryPageSize})
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err = n.do(ctx, fasthttp.MethodPost, "/v1/databases/"+databaseID+"/query", token, body, &resp); err != nil {
		return nil, err
	}

	posts := make([]model.Post, 0, len(resp.Results))
	for _, page := range resp.Results {
		if post := page.toPost(); post.Matches(f) {
			posts = append(posts, post)
		}
	}
	slices.SortStableFunc(posts, func(a, b model.Post) int {
		return cmp.Compare(b.PublishDate, a.PublishDate)
	})
	return posts, nil
}

func (n *Notion) TestConnection(ctx context.Context, token, databaseID string) error {
	var db database
	return n.do(ctx, fasthttp.MethodGet, "/v1/databases/"+databaseID, token, nil, &db)
}

// DetectColumns maps database properties onto gallery roles the same way rows are read.
func (n *Notion) DetectColumns(ctx context.Context, token, databaseID string) (model.Columns, error) {
	var db database
	if err := n.do(ctx, fasthttp.MethodGet, "/v1/databases/"+databaseID, token, nil, &db); err != nil {
		return model.Columns{}, err
	}

	cols := model.Columns{Media: []string{}}
	for _, name := range sortedKeys(db.Properties) {
		switch prop := db.Properties[name]; {
		case prop.Type == "title" && cols.Title == "":
			cols.Title = name
		case prop.Type == "date" && cols.Date == "":
			cols.Date = name
		case prop.Type == "files":
			cols.Media = append(cols.Media, name)
		case isPlatformProperty(name, prop.Type) && cols.Platform == "":
			cols.Platform = name
		case isStatusProperty(name, prop.Type) && cols.Status == "":
			cols.Status = name
		}
	}
	return cols, nil
}

func (n *Notion) do(ctx context.Context, method, path, token string, body []byte, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(n.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	req.Header.Set("Notion-Version", n.version)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(body)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = n.client.DoDeadline(req, resp, deadline)
	} else {
		err = n.client.DoTimeout(req, resp, defaultRequestTimeout)
	}
	if err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) && ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return err
	}

	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		apiErr := &APIError{Status: status}
		_ = json.Unmarshal(resp.Body(), apiErr)
		return apiErr
	}
	if err = json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode notion response: %w", err)
	}
	return nil
}

type queryRequest struct {
	PageSize int `json:"page_size"`
}

type queryResponse struct {
	Results []page `json:"results"`
}

type database struct {
	Properties map[string]property `json:"properties"`
}

type page struct {
	ID         string              `json:"id"`
	Properties map[string]property `json:"properties"`
}

type richText struct {
	PlainText string `json:"plain_text"`
}

type option struct {
	Name string `json:"name"`
}

type fileObject struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	File     *link  `json:"file"`
	External *link  `json:"external"`
}

type link struct {
	URL string `json:"url"`
}

type property struct {
	Type        string     `json:"type"`
	Title       []richText `json:"title"`
	RichText    []richText `json:"rich_text"`
	Select      *option    `json:"select"`
	MultiSelect []option   `json:"multi_select"`
	Status      *option    `json:"status"`
	Date        *struct {
		Start string `json:"start"`
	} `json:"date"`
	Files []fileObject `json:"files"`
}

func (p property) text() string {
	switch p.Type {
	case "title":
		return joinText(p.Title)
	case "rich_text":
		return joinText(p.RichText)
	case "select":
		if p.Select != nil {
			return p.Select.Name
		}
	case "multi_select":
		if len(p.MultiSelect) > 0 {
			return p.MultiSelect[0].Name
		}
	case "status":
		if p.Status != nil {
			return p.Status.Name
		}
	case "date":
		if p.Date != nil {
			return p.Date.Start
		}
	}
	return ""
}

func (pg page) toPost() model.Post {
	post := model.Post{ID: pg.ID, Images: []model.MediaRef{}, Videos: []model.MediaRef{}}
	for _, name := range sortedKeys(pg.Properties) {
		prop := pg.Properties[name]
		switch {
		case prop.Type == "title" && post.Title == "":
			post.Title = prop.text()
		case prop.Type == "date" && post.PublishDate == "":
			post.PublishDate = prop.text()
		case prop.Type == "files":
			for _, file := range prop.Files {
				ref := model.MediaRef{Name: file.Name}
				if file.File != nil {
					ref.URL = file.File.URL
				} else if file.External != nil {
					ref.URL = file.External.URL
				}
				if ref.URL == "" {
					continue
				}
				if ref.IsVideo() {
					post.Videos = append(post.Videos, ref)
				} else {
					post.Images = append(post.Images, ref)
				}
			}
		case isPlatformProperty(name, prop.Type) && post.Platform == "":
			post.Platform = prop.text()
		case isStatusProperty(name, prop.Type) && post.Status == "":
			post.Status = prop.text()
		}
	}
	return post
}

func isPlatformProperty(name, typ string) bool {
	if !strings.EqualFold(strings.TrimSpace(name), "platform") {
		return false
	}
	return typ == "select" || typ == "multi_select" || typ == "rich_text"
}

func isStatusProperty(name, typ string) bool {
	if !strings.EqualFold(strings.TrimSpace(name), "status") {
		return false
	}
	return typ == "status" || typ == "select"
}

func joinText(parts []richText) string {
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(part.PlainText)
	}
	return sb.String()
}

// sortedKeys gives a stable property order, so "the first date property" is deterministic.
func sortedKeys(props map[string]property) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
