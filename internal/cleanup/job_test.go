// File: internal/cleanup/job_test.go
package cleanup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/kgtool/internal/cms"
)

// -- Mock Definitions --

type mockArticles struct {
	mock.Mock
}

func (m *mockArticles) ListArticles(ctx context.Context) ([]cms.Article, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]cms.Article)
	return list, args.Error(1)
}

func (m *mockArticles) DeleteArticle(ctx context.Context, documentID string) (int, error) {
	args := m.Called(ctx, documentID)
	return args.Int(0), args.Error(1)
}

func (m *mockArticles) CountArticles(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func article(id int, docID, title string, withImage bool) cms.Article {
	a := cms.Article{ID: id, DocumentID: docID, Title: &title}
	if withImage {
		a.GridImage = []byte(`{"id":1}`)
	}
	return a
}

// -- Test Cases --

func TestRun_DeletesOnlyIncomplete(t *testing.T) {
	svc := new(mockArticles)
	svc.On("ListArticles", mock.Anything).Return([]cms.Article{
		article(1, "doc-1", "Keep me", true),
		article(2, "doc-2", "Drop me", false),
		article(4, "doc-4", "Locked", false),
	}, nil)
	svc.On("DeleteArticle", mock.Anything, "doc-2").Return(http.StatusOK, nil).Once()
	svc.On("DeleteArticle", mock.Anything, "doc-4").Return(http.StatusInternalServerError, nil).Once()
	svc.On("CountArticles", mock.Anything).Return(2, nil).Once()

	var out bytes.Buffer
	report, err := NewJob(svc, &out, nil, false).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Report{
		Total:      3,
		Incomplete: 2,
		Deleted:    1,
		Failed:     1,
		Remaining:  2,
		Failures:   []Failure{{ID: 4, DocumentID: "doc-4", Status: 500}},
	}, report)

	text := out.String()
	assert.Contains(t, text, "Total articles: 3\n")
	assert.Contains(t, text, "Incomplete articles (no images): 2\n")
	assert.Contains(t, text, "Articles to delete:\n  - [2] Drop me\n  - [4] Locked\n")
	assert.Contains(t, text, "Deleting 2 incomplete articles...\n")
	assert.Contains(t, text, "  ✓ Deleted: Drop me\n")
	assert.Contains(t, text, "  ✗ Failed to delete [4]: 500\n")
	assert.True(t, strings.HasSuffix(text, "Done! Remaining articles: 2\n"))
	svc.AssertExpectations(t)
}

func TestRun_NothingToDelete(t *testing.T) {
	svc := new(mockArticles)
	svc.On("ListArticles", mock.Anything).Return([]cms.Article{article(1, "a", "Fine", true)}, nil)

	var out bytes.Buffer
	report, err := NewJob(svc, &out, nil, false).Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "No incomplete articles found!")
	assert.Equal(t, 1, report.Remaining)
	svc.AssertNotCalled(t, "DeleteArticle", mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "CountArticles", mock.Anything)
}

func TestRun_DryRun(t *testing.T) {
	svc := new(mockArticles)
	svc.On("ListArticles", mock.Anything).Return([]cms.Article{
		article(7, "d7", "Draft", false),
		{ID: 8, DocumentID: "d8"},
	}, nil)

	var out bytes.Buffer
	report, err := NewJob(svc, &out, nil, true).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Incomplete)
	assert.Zero(t, report.Deleted)
	assert.Contains(t, out.String(), "  - [8] NO TITLE\n")
	assert.Contains(t, out.String(), "Dry run: 2 articles would be deleted.")
	svc.AssertNotCalled(t, "DeleteArticle", mock.Anything, mock.Anything)
}

func TestRun_ListFailureAborts(t *testing.T) {
	svc := new(mockArticles)
	svc.On("ListArticles", mock.Anything).Return(nil, cms.ErrUnexpectedStatus)

	_, err := NewJob(svc, nil, nil, false).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cms.ErrUnexpectedStatus)
}

func TestRun_TransportFailureIsPerItem(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	svc := new(mockArticles)
	svc.On("ListArticles", mock.Anything).Return([]cms.Article{
		article(1, "a", "First", false),
		article(2, "b", "Second", false),
	}, nil)
	svc.On("DeleteArticle", mock.Anything, "a").Return(0, errors.New("connection reset")).Once()
	svc.On("DeleteArticle", mock.Anything, "b").Return(http.StatusOK, nil).Once()
	svc.On("CountArticles", mock.Anything).Return(0, nil).Once()

	var out bytes.Buffer
	report, err := NewJob(svc, &out, zap.New(core), false).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, out.String(), "  ✗ Failed to delete [1]: connection reset\n")
	assert.Equal(t, 1, logs.FilterMessage("Delete request failed").Len())
}

func TestRun_CountFailure(t *testing.T) {
	svc := new(mockArticles)
	svc.On("ListArticles", mock.Anything).Return([]cms.Article{article(1, "a", "x", false)}, nil)
	svc.On("DeleteArticle", mock.Anything, "a").Return(http.StatusOK, nil)
	svc.On("CountArticles", mock.Anything).Return(0, errors.New("boom"))

	report, err := NewJob(svc, nil, nil, false).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count remaining articles")
	assert.Equal(t, 1, report.Deleted)
}

func TestRun_CancelledBeforeDeletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := new(mockArticles)
	svc.On("ListArticles", mock.Anything).Run(func(mock.Arguments) { cancel() }).
		Return([]cms.Article{article(1, "a", "x", false)}, nil)

	_, err := NewJob(svc, nil, nil, false).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	svc.AssertNotCalled(t, "DeleteArticle", mock.Anything, mock.Anything)
}

// An end-to-end run against a fake Strapi that tracks its own state.
func TestRun_AgainstHTTPServer(t *testing.T) {
	var mu sync.Mutex
	records := map[string]string{
		"keep": `{"id":1,"documentId":"keep","title":"Kept","gridImage":null,"featuredImage":{"id":3}}`,
		"old1": `{"id":2,"documentId":"old1","title":"Old one","gridImage":null,"featuredImage":null}`,
		"old2": `{"id":3,"documentId":"old2","title":"Old two"}`,
	}
	order := []string{"keep", "old1", "old2"}
	deletes := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			var parts []string
			for _, id := range order {
				if rec, ok := records[id]; ok {
					parts = append(parts, rec)
				}
			}
			fmt.Fprintf(w, `{"data":[%s],"meta":{"pagination":{"page":1,"pageSize":25,"pageCount":1,"total":%d}}}`,
				strings.Join(parts, ","), len(parts))
		case http.MethodDelete:
			id := strings.TrimPrefix(r.URL.Path, "/api/articles/")
			if _, ok := records[id]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(records, id)
			deletes++
			fmt.Fprint(w, `{}`)
		}
	}))
	defer server.Close()

	client, err := cms.NewClient(server.URL, nil, cms.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	var out bytes.Buffer
	report, err := NewJob(client, &out, nil, false).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, deletes)
	assert.Equal(t, 2, report.Deleted)
	assert.Equal(t, 1, report.Remaining)
	assert.Contains(t, out.String(), "Done! Remaining articles: 1\n")
}
