package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeAPI serves canned bodies by path and records every request.
type fakeAPI struct {
	mu       sync.Mutex
	bodies   map[string]string
	failures map[string][]error
	requests []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{bodies: map[string]string{}, failures: map[string][]error{}}
}

func (f *fakeAPI) Fetch(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, path)

	if errs := f.failures[path]; len(errs) > 0 {
		f.failures[path] = errs[1:]
		return nil, errs[0]
	}
	body, ok := f.bodies[path]
	if !ok {
		return nil, &TransportError{Path: path, StatusCode: http.StatusNotFound}
	}
	return []byte(body), nil
}

func (f *fakeAPI) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func pageBody(ids []string, next string) string {
	data := ""
	for i, id := range ids {
		if i > 0 {
			data += ","
		}
		data += fmt.Sprintf(`{"id":%q,"message":"m%s","from":{"name":"author %s"},"created_time":"2020-01-01T00:00:00+0000"}`, id, id, id)
	}
	if next == "" {
		return fmt.Sprintf(`{"data":[%s],"paging":{}}`, data)
	}
	return fmt.Sprintf(`{"data":[%s],"paging":{"next":%q}}`, data, next)
}

func threePageAPI() *fakeAPI {
	api := newFakeAPI()
	api.bodies["/1/comments?&access_token=tok"] = pageBody([]string{"a", "b"}, "https://graph.facebook.com/v2.8/1/comments?access_token=tok&after=p2")
	api.bodies["/1/comments?access_token=tok&after=p2"] = pageBody([]string{"c"}, "https://graph.facebook.com/v2.8/1/comments?access_token=tok&after=p3")
	api.bodies["/1/comments?access_token=tok&after=p3"] = pageBody([]string{"d", "e", "f"}, "")
	return api
}

func TestPaginateFollowsCursors(t *testing.T) {
	api := threePageAPI()
	p := NewPaginator(api)

	pages, err := p.Paginate(context.Background(), "/1/comments?&access_token=tok")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	require.Equal(t, "a", pages[0].Data[0].ID)
	require.Equal(t, "c", pages[1].Data[0].ID)
	require.Equal(t, "f", pages[2].Data[2].ID)

	require.Equal(t, []string{
		"/1/comments?&access_token=tok",
		"/1/comments?access_token=tok&after=p2",
		"/1/comments?access_token=tok&after=p3",
	}, api.Requests())
}

func TestPaginateSinglePage(t *testing.T) {
	api := newFakeAPI()
	api.bodies["/x"] = `{"data":[]}`

	pages, err := NewPaginator(api).Paginate(context.Background(), "/x")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Empty(t, pages[0].Data)
}

func TestPaginateFailureDiscardsPages(t *testing.T) {
	api := threePageAPI()
	api.failures["/1/comments?access_token=tok&after=p3"] = []error{
		&TransportError{Path: "/1/comments?access_token=tok&after=p3", StatusCode: http.StatusBadRequest},
	}

	pages, err := NewPaginator(api).Paginate(context.Background(), "/1/comments?&access_token=tok")
	require.Nil(t, pages)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusBadRequest, te.StatusCode)
}

func TestPaginateMalformedBodies(t *testing.T) {
	for name, body := range map[string]string{
		"not json":     `<html>oops</html>`,
		"missing data": `{"paging":{}}`,
		"null data":    `{"data":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			api := newFakeAPI()
			api.bodies["/x"] = body

			pages, err := NewPaginator(api).Paginate(context.Background(), "/x")
			require.Nil(t, pages)

			var me *MalformedResponseError
			require.ErrorAs(t, err, &me)
		})
	}
}

func TestPaginateBadCursor(t *testing.T) {
	api := newFakeAPI()
	api.bodies["/x"] = pageBody([]string{"a"}, "not-a-url")

	_, err := NewPaginator(api).Paginate(context.Background(), "/x")
	var me *MalformedResponseError
	require.ErrorAs(t, err, &me)
}

func TestPaginatePageLimit(t *testing.T) {
	api := newFakeAPI()
	for i := 0; i < 10; i++ {
		api.bodies[fmt.Sprintf("/n?after=%d", i)] = pageBody([]string{fmt.Sprint(i)}, fmt.Sprintf("https://graph.facebook.com/v2.8/n?after=%d", i+1))
	}

	pages, err := NewPaginator(api, WithMaxPages(3)).Paginate(context.Background(), "/n?after=0")
	require.Nil(t, pages)
	require.ErrorIs(t, err, ErrPageLimit)
	require.Len(t, api.Requests(), 3)
}

func TestPaginateCursorLoop(t *testing.T) {
	api := newFakeAPI()
	api.bodies["/loop?after=1"] = pageBody([]string{"a"}, "https://graph.facebook.com/v2.8/loop?after=2")
	api.bodies["/loop?after=2"] = pageBody([]string{"b"}, "https://graph.facebook.com/v2.8/loop?after=1")

	pages, err := NewPaginator(api).Paginate(context.Background(), "/loop?after=1")
	require.Nil(t, pages)
	require.ErrorIs(t, err, ErrCursorLoop)
	require.Len(t, api.Requests(), 2)
}

func TestPaginateCancelledBeforeFetch(t *testing.T) {
	api := threePageAPI()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pages, err := NewPaginator(api).Paginate(ctx, "/1/comments?&access_token=tok")
	require.Nil(t, pages)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, api.Requests())
}

func TestPaginateCancelledDuringDelay(t *testing.T) {
	api := threePageAPI()
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := FetcherFunc(func(ctx context.Context, path string) ([]byte, error) {
		body, err := api.Fetch(ctx, path)
		cancel()
		return body, err
	})

	pages, err := NewPaginator(fetcher, WithPageDelay(time.Hour)).Paginate(ctx, "/1/comments?&access_token=tok")
	require.Nil(t, pages)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, api.Requests(), 1)
}

func TestPaginateRetriesServerErrors(t *testing.T) {
	api := threePageAPI()
	api.failures["/1/comments?access_token=tok&after=p2"] = []error{
		&TransportError{StatusCode: http.StatusBadGateway},
		&TransportError{StatusCode: 0, Err: errors.New("connection reset")},
	}

	p := NewPaginator(api, WithRetries(3, time.Millisecond))
	pages, err := p.Paginate(context.Background(), "/1/comments?&access_token=tok")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	require.Len(t, api.Requests(), 5)
}

func TestPaginateRetriesExhausted(t *testing.T) {
	api := threePageAPI()
	api.failures["/1/comments?&access_token=tok"] = []error{
		&TransportError{StatusCode: http.StatusServiceUnavailable},
		&TransportError{StatusCode: http.StatusServiceUnavailable},
		&TransportError{StatusCode: http.StatusServiceUnavailable},
	}

	p := NewPaginator(api, WithRetries(2, time.Millisecond))
	_, err := p.Paginate(context.Background(), "/1/comments?&access_token=tok")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	require.Len(t, api.Requests(), 3)
}

func TestPaginateDoesNotRetryClientErrors(t *testing.T) {
	api := threePageAPI()
	api.failures["/1/comments?&access_token=tok"] = []error{
		&TransportError{StatusCode: http.StatusBadRequest, APIMessage: "OAuthException: Invalid OAuth access token."},
	}

	p := NewPaginator(api, WithRetries(5, time.Millisecond))
	_, err := p.Paginate(context.Background(), "/1/comments?&access_token=tok")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusBadRequest, te.StatusCode)
	require.Len(t, api.Requests(), 1)
}

func TestPaginateWithoutRetriesFailsFast(t *testing.T) {
	api := threePageAPI()
	api.failures["/1/comments?&access_token=tok"] = []error{
		&TransportError{StatusCode: http.StatusInternalServerError},
	}

	_, err := NewPaginator(api).Paginate(context.Background(), "/1/comments?&access_token=tok")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Len(t, api.Requests(), 1)
}
