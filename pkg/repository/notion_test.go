package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/config"
	"github.com/Borislavv/notion-widget-cache/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const queryFixture = `{
  "object": "list",
  "results": [
    {
      "id": "p-old",
      "properties": {
        "Name": {"type": "title", "title": [{"plain_text": "Old "}, {"plain_text": "post"}]},
        "Publish Date": {"type": "date", "date": {"start": "2024-01-01"}},
        "Platform": {"type": "select", "select": {"name": "Instagram"}},
        "Status": {"type": "status", "status": {"name": "Published"}},
        "Attachments": {"type": "files", "files": [
          {"name": "a.png", "type": "file", "file": {"url": "https://s3/a.png?sig=1"}},
          {"name": "clip.MP4", "type": "external", "external": {"url": "https://cdn/clip"}}
        ]}
      }
    },
    {
      "id": "p-new",
      "properties": {
        "Name": {"type": "title", "title": [{"plain_text": "New post"}]},
        "Publish Date": {"type": "date", "date": {"start": "2024-03-01"}},
        "Platform": {"type": "multi_select", "multi_select": [{"name": "instagram"}]},
        "Status": {"type": "select", "select": {"name": "Draft"}},
        "Attachments": {"type": "files", "files": []}
      }
    },
    {
      "id": "p-tiktok",
      "properties": {
        "Name": {"type": "title", "title": [{"plain_text": "Dance"}]},
        "Publish Date": {"type": "date", "date": null},
        "Platform": {"type": "rich_text", "rich_text": [{"plain_text": "TikTok"}]},
        "Status": {"type": "status", "status": {"name": "Published"}}
      }
    }
  ]
}`

type recorded struct {
	method  string
	path    string
	auth    string
	version string
	body    string
}

func newNotionServer(t *testing.T, status int, payload string) (*Notion, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*rec = recorded{
			method:  r.Method,
			path:    r.URL.Path,
			auth:    r.Header.Get("Authorization"),
			version: r.Header.Get("Notion-Version"),
			body:    string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)
	return NewNotion(config.Upstream{NotionAPIURL: srv.URL + "/"}), rec
}

func TestQueryDatabaseMapsAndOrdersPosts(t *testing.T) {
	notion, rec := newNotionServer(t, http.StatusOK, queryFixture)

	posts, err := notion.QueryDatabase(context.Background(), "secret_x", "db1", model.Filters{})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/v1/databases/db1/query", rec.path)
	assert.Equal(t, "Bearer secret_x", rec.auth)
	assert.Equal(t, DefaultNotionAPIVersion, rec.version)
	var body map[string]int
	require.NoError(t, json.Unmarshal([]byte(rec.body), &body))
	assert.Equal(t, 100, body["page_size"])

	require.Len(t, posts, 3)
	assert.Equal(t, []string{"p-new", "p-old", "p-tiktok"}, []string{posts[0].ID, posts[1].ID, posts[2].ID})

	old := posts[1]
	assert.Equal(t, "Old post", old.Title)
	assert.Equal(t, "2024-01-01", old.PublishDate)
	assert.Equal(t, "Instagram", old.Platform)
	assert.Equal(t, "Published", old.Status)
	assert.Equal(t, []model.MediaRef{{URL: "https://s3/a.png?sig=1", Name: "a.png"}}, old.Images)
	assert.Equal(t, []model.MediaRef{{URL: "https://cdn/clip", Name: "clip.MP4"}}, old.Videos)

	assert.Empty(t, posts[0].Images)
	assert.NotNil(t, posts[0].Images)
}

func TestQueryDatabaseFilters(t *testing.T) {
	notion, _ := newNotionServer(t, http.StatusOK, queryFixture)
	ctx := context.Background()

	posts, err := notion.QueryDatabase(ctx, "t", "db1", model.Filters{Platform: "INSTAGRAM"})
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	posts, err = notion.QueryDatabase(ctx, "t", "db1", model.Filters{Platform: "Instagram", Status: "published"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p-old", posts[0].ID)

	posts, err = notion.QueryDatabase(ctx, "t", "db1", model.Filters{Platform: "LinkedIn"})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestQueryDatabaseAPIError(t *testing.T) {
	notion, _ := newNotionServer(t, http.StatusUnauthorized,
		`{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`)

	_, err := notion.QueryDatabase(context.Background(), "bad", "db1", model.Filters{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsUnauthorized())
	assert.Contains(t, err.Error(), "API token is invalid.")
}

func TestQueryDatabaseHonorsDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()
	notion := NewNotion(config.Upstream{NotionAPIURL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := notion.QueryDatabase(ctx, "t", "db1", model.Filters{})
	assert.Error(t, err)
}

func TestQueryDatabaseCanceledContext(t *testing.T) {
	notion, rec := newNotionServer(t, http.StatusOK, queryFixture)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := notion.QueryDatabase(ctx, "t", "db1", model.Filters{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.path, "no request is sent")
}

func TestDetectColumnsAndTestConnection(t *testing.T) {
	notion, rec := newNotionServer(t, http.StatusOK, `{
	  "object": "database",
	  "properties": {
	    "Name": {"id": "title", "type": "title"},
	    "Due": {"id": "a", "type": "date"},
	    "Publish Date": {"id": "b", "type": "date"},
	    "platform": {"id": "c", "type": "multi_select"},
	    "Status": {"id": "d", "type": "status"},
	    "Cover": {"id": "e", "type": "files"},
	    "Gallery": {"id": "f", "type": "files"},
	    "Notes": {"id": "g", "type": "rich_text"}
	  }
	}`)
	ctx := context.Background()

	require.NoError(t, notion.TestConnection(ctx, "t", "db1"))
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/v1/databases/db1", rec.path)

	cols, err := notion.DetectColumns(ctx, "t", "db1")
	require.NoError(t, err)
	assert.Equal(t, model.Columns{
		Title:    "Name",
		Date:     "Due",
		Platform: "platform",
		Status:   "Status",
		Media:    []string{"Cover", "Gallery"},
	}, cols)
}
