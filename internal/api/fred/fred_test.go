package fred

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	guard, err := httpx.NewGuard(Name, &httpx.Client{HTTP: server.Client()}, DefaultLimits(), nil,
		ratelimit.WithSleep(func(time.Duration) {}))
	require.NoError(t, err)
	return New(guard, "fred-key").WithBaseURL(server.URL + "/")
}

func TestParamsFormat(t *testing.T) {
	values, err := Params{
		"observation_start":          0,
		"observation_end":            -1,
		"realtime_start":             "2020-01-01",
		"tag_names":                  []string{"gdp", "usa"},
		"exclude_tag_names":          "discontinued",
		"search_text":                []string{"real", "gdp"},
		"vintage_dates":              []string{"2020-01-01", "2021-01-01"},
		"include_observation_values": true,
		"limit":                      10,
		"units":                      "lin",
		"sort_order":                 nil,
		"paginate":                   true,
	}.Format()
	require.NoError(t, err)

	assert.Equal(t, EarliestDate, values.Get("observation_start"))
	assert.Equal(t, LatestDate, values.Get("observation_end"))
	assert.Equal(t, "2020-01-01", values.Get("realtime_start"))
	assert.Equal(t, "gdp;usa", values.Get("tag_names"))
	assert.Equal(t, "discontinued", values.Get("exclude_tag_names"))
	assert.Equal(t, "real+gdp", values.Get("search_text"))
	assert.Equal(t, "2020-01-01,2021-01-01", values.Get("vintage_dates"))
	assert.Equal(t, "true", values.Get("include_observation_values"))
	assert.Equal(t, "10", values.Get("limit"))
	assert.Equal(t, "lin", values.Get("units"))
	assert.False(t, values.Has("sort_order"))
	assert.False(t, values.Has("paginate"))

	_, err = Params{"include_observation_values": "yes"}.Format()
	require.Error(t, err)
	_, err = Params{"tag_names": 3}.Format()
	require.Error(t, err)
}

func TestSeriesObservations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series/observations", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "GDP", q.Get("series_id"))
		assert.Equal(t, "fred-key", q.Get("api_key"))
		assert.Equal(t, "json", q.Get("file_type"))
		assert.Equal(t, "100000", q.Get("limit"))
		_, _ = w.Write([]byte(`{"count":2,"observations":[
			{"realtime_start":"2023-01-01","realtime_end":"2023-01-01","date":"2022-01-01","value":"25029.116"},
			{"realtime_start":"2023-01-01","realtime_end":"2023-01-01","date":"2022-04-01","value":"."}]}`))
	})

	observations, err := client.SeriesObservations(context.Background(), "GDP", nil)
	require.NoError(t, err)
	require.Len(t, observations, 2)
	require.Equal(t, "25029.116", observations[0].Value)
	require.Equal(t, "2022-04-01", observations[1].Date)
}

func TestListPaginates(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		var items string
		for i := offset; i < offset+2 && i < 5; i++ {
			if items != "" {
				items += ","
			}
			items += fmt.Sprintf(`{"name":"tag%d"}`, i)
		}
		_, _ = fmt.Fprintf(w, `{"count":5,"tags":[%s]}`, items)
	})

	tags, err := client.Tags(context.Background(), Params{"limit": 2, "paginate": true})
	require.NoError(t, err)
	require.Len(t, tags, 5)
	require.Equal(t, "tag4", tags[4]["name"])
	require.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	single, err := client.Tags(context.Background(), Params{"limit": 2})
	require.NoError(t, err)
	require.Len(t, single, 2)
	require.Equal(t, int32(1), calls.Load())
}

func TestRelatedTagsAndCategory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/related_tags":
			assert.Equal(t, "monetary aggregates;weekly", r.URL.Query().Get("tag_names"))
			_, _ = w.Write([]byte(`{"tags":[{"name":"nation"}]}`))
		case "/category/children":
			assert.Equal(t, "13", r.URL.Query().Get("category_id"))
			_, _ = w.Write([]byte(`{"categories":[{"id":16,"name":"Exports"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	tags, err := client.RelatedTags(context.Background(), []string{"monetary aggregates", "weekly"}, nil)
	require.NoError(t, err)
	require.Equal(t, "nation", tags[0]["name"])

	children, err := client.CategoryChildren(context.Background(), 13, nil)
	require.NoError(t, err)
	require.Equal(t, "Exports", children[0]["name"])

	_, err = client.Sources(context.Background(), nil)
	var statusErr *httpx.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestMissingAPIKey(t *testing.T) {
	_, err := New(nil, "").Series(context.Background(), "GDP", nil)
	require.ErrorIs(t, err, ErrMissingAPIKey)
}
