package bea

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httpx.Guard) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	guard, err := httpx.NewGuard(Name, &httpx.Client{HTTP: server.Client()}, DefaultLimits(), nil,
		ratelimit.WithSleep(func(time.Duration) {}))
	require.NoError(t, err)
	return New(guard, "test-key").WithBaseURL(server.URL), guard
}

func TestGetDatasetList(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "GetDatasetList", q.Get("Method"))
		assert.Equal(t, "test-key", q.Get("UserID"))
		assert.Equal(t, "JSON", q.Get("ResultFormat"))
		_, _ = w.Write([]byte(`{"BEAAPI":{"Results":{"Dataset":[
			{"DatasetName":"NIPA","DatasetDescription":"Standard NIPA tables"},
			{"DatasetName":"GDPbyIndustry","DatasetDescription":"GDP by Industry"}]}}}`))
	})

	datasets, err := client.GetDatasetList(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Dataset{
		{Name: "NIPA", Description: "Standard NIPA tables"},
		{Name: "GDPbyIndustry", Description: "GDP by Industry"},
	}, datasets)
}

func TestGetDataJoinsListParams(t *testing.T) {
	client, guard := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "GetData", q.Get("Method"))
		assert.Equal(t, "GdpByIndustry", q.Get("DatasetName"))
		assert.Equal(t, "2019,2020", q.Get("Year"))
		_, _ = w.Write([]byte(`{"BEAAPI":{"Results":[{"Data":[{"Industry":"11","DataValue":"164.4"}]}]}}`))
	})

	rows, err := client.GetData(context.Background(), "GdpByIndustry", map[string][]string{
		"Year":    {"2019", "2020"},
		"Unused":  nil,
		"TableID": {"1"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "164.4", rows[0]["DataValue"])

	snap := guard.Snapshot()
	require.Equal(t, Name, snap.Name)
	require.Len(t, snap.Limiters, 3)
	require.Equal(t, 1.0, snap.Limiters[0].Total)
	require.Equal(t, 0.0, snap.Limiters[1].Total)
}

func TestGetParameterValuesSingleObject(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"BEAAPI":{"Results":{"ParamValue":{"Key":"1","Desc":"Value Added by Industry"}}}}`))
	})

	values, err := client.GetParameterValues(context.Background(), "GdpByIndustry", "TableID")
	require.NoError(t, err)
	require.Equal(t, []Record{{"Key": "1", "Desc": "Value Added by Industry"}}, values)
}

func TestAPIErrors(t *testing.T) {
	t.Run("TopLevel", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"BEAAPI":{"Error":{"APIErrorCode":"3","APIErrorDescription":"The dataset requested is invalid"}}}`))
		})
		_, err := client.GetParameterList(context.Background(), "Nope")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "3", apiErr.Code.String())
	})

	t.Run("InResults", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"BEAAPI":{"Results":{"Error":{"APIErrorCode":40,"APIErrorDescription":"Invalid TableName"}}}}`))
		})
		_, err := client.GetData(context.Background(), "NIPA", map[string][]string{"TableName": {"X"}})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Contains(t, apiErr.Error(), "Invalid TableName")
	})

	t.Run("HTTPStatus", func(t *testing.T) {
		client, guard := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := client.GetDatasetList(context.Background())
		var statusErr *httpx.StatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, 1.0, guard.Limiters()[1].Total())
	})
}

func TestMissingAPIKey(t *testing.T) {
	client := New(nil, " ")
	_, err := client.GetDatasetList(context.Background())
	require.ErrorIs(t, err, ErrMissingAPIKey)
}
