package sec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/ratelimit"
)

const userAgent = "Jane Doe jane@example.com"

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	guard, err := httpx.NewGuard(Name, &httpx.Client{HTTP: server.Client()}, DefaultLimits(), nil,
		ratelimit.WithSleep(func(time.Duration) {}))
	require.NoError(t, err)
	return New(guard, userAgent).WithBaseURLs(server.URL, server.URL+"/")
}

func TestNormalizeCIK(t *testing.T) {
	assert.Equal(t, "0000320193", NormalizeCIK("320193"))
	assert.Equal(t, "0000320193", NormalizeCIK("CIK320193"))
	assert.Equal(t, "0000320193", NormalizeCIK("0000320193"))
}

func TestTickersAndLookups(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{
			"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."},
			"1":{"cik_str":789019,"ticker":"MSFT","title":"MICROSOFT CORP"},
			"2":{"cik_str":1652044,"ticker":"GOOGL","title":"Alphabet Inc."},
			"3":{"cik_str":1652044,"ticker":"GOOG","title":"Alphabet Inc."}}`))
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	tickers, err := client.Tickers(ctx)
	require.NoError(t, err)
	require.Len(t, tickers, 4)
	require.Equal(t, Ticker{CIK: "0000320193", Ticker: "AAPL", Title: "Apple Inc."}, tickers[0])

	cik, err := client.LookupCIK(ctx, "msft")
	require.NoError(t, err)
	require.Equal(t, "0000789019", cik)

	ticker, err := client.LookupTicker(ctx, "1652044")
	require.NoError(t, err)
	require.Equal(t, "GOOGL", ticker)

	_, err = client.LookupCIK(ctx, "ZZZZ")
	require.ErrorIs(t, err, ErrUnknownTicker)

	// One listing fetch for Tickers, one to build the memoized tables.
	require.Equal(t, int32(2), hits.Load())
}

func TestConcurrentLookupsFetchListingOnce(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(`{"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."}}`))
	})
	client := newTestClient(t, mux)

	const workers = 8
	ciks := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ciks[i], errs[i] = client.LookupCIK(context.Background(), "AAPL")
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, "0000320193", ciks[i])
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestFailedListingLoadIsRetried(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"0":{"cik_str":789019,"ticker":"MSFT","title":"MICROSOFT CORP"}}`))
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	_, err := client.LookupCIK(ctx, "MSFT")
	require.Error(t, err)

	cik, err := client.LookupCIK(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "0000789019", cik)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCompanyConceptAndFacts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/xbrl/companyconcept/CIK0000320193/us-gaap/AccountsPayableCurrent.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cik":320193,"taxonomy":"us-gaap","tag":"AccountsPayableCurrent","label":"Accounts Payable, Current",
			"description":"Carrying value","entityName":"Apple Inc.","units":{"USD":[
			{"end":"2009-06-27","val":15329000000,"accn":"0001193125-09-153165","fy":2009,"fp":"Q3","form":"10-Q","filed":"2009-07-22"}]}}`))
	})
	mux.HandleFunc("/api/xbrl/companyfacts/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cik":320193,"entityName":"Apple Inc.","facts":{"dei":{"EntityCommonStockSharesOutstanding":{
			"label":"Shares Outstanding","description":"d","units":{"shares":[
			{"end":"2009-10-16","val":895816758,"accn":"0001193125-09-214859","fy":2009,"fp":"FY","form":"10-K","filed":"2009-10-27"},
			{"end":"2010-01-15","val":906794987,"accn":"0001193125-10-012085","fy":2010,"fp":"Q1","form":"10-Q","filed":"2010-01-25"}]}}}}}`))
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	concept, err := client.CompanyConcept(ctx, "320193", "us-gaap", "AccountsPayableCurrent")
	require.NoError(t, err)
	require.Len(t, concept, 1)
	assert.Equal(t, "USD", concept[0].Units)
	assert.Equal(t, "Accounts Payable, Current", concept[0].Label)
	assert.Equal(t, 15329000000.0, concept[0].Value)
	require.NotNil(t, concept[0].FiscalYear)
	assert.Equal(t, 2009, *concept[0].FiscalYear)
	assert.Equal(t, "Apple Inc.", concept[0].EntityName)

	facts, err := client.CompanyFacts(ctx, "320193")
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "dei", facts[0].Taxonomy)
	assert.Equal(t, "shares", facts[1].Units)
}

func TestFramesPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/xbrl/frames/us-gaap/EarningsPerShareBasic/USD-per-shares/CY2020Q3.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"taxonomy":"us-gaap","tag":"EarningsPerShareBasic","ccp":"CY2020Q3","uom":"USD/shares",
			"data":[{"accn":"0001104659-21-118843","cik":1750,"entityName":"AAR CORP.","loc":"US-IL","end":"2020-08-31","val":0.13}]}`))
	})
	mux.HandleFunc("/api/xbrl/frames/us-gaap/Assets/USD/CY2020Q3I.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ccp":"CY2020Q3I","data":[]}`))
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	frame, err := client.Frames(ctx, "us-gaap", "EarningsPerShareBasic", "USD/shares", 2020, 3, false)
	require.NoError(t, err)
	require.Len(t, frame.Data, 1)
	require.Equal(t, "AAR CORP.", frame.Data[0].EntityName)

	instant, err := client.Frames(ctx, "us-gaap", "Assets", "USD", 2020, 3, true)
	require.NoError(t, err)
	require.Equal(t, "CY2020Q3I", instant.CCP)
}

func TestSubmissionsAndExchanges(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cik":"320193","name":"Apple Inc.","sic":"3571","tickers":["AAPL"],"exchanges":["Nasdaq"],
			"filings":{"recent":{"form":["10-Q"]}}}`))
	})
	mux.HandleFunc("/files/company_tickers_exchange.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fields":["cik","name","ticker","exchange"],"data":[[320193,"Apple Inc.","AAPL","Nasdaq"]]}`))
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	sub, err := client.Submissions(ctx, "320193")
	require.NoError(t, err)
	require.Equal(t, "Apple Inc.", sub.Name)
	require.Equal(t, []string{"Nasdaq"}, sub.Exchanges)
	require.Contains(t, sub.Filings.Recent, "form")

	exchanges, err := client.Exchanges(ctx)
	require.NoError(t, err)
	require.Equal(t, []Exchange{{CIK: "0000320193", Name: "Apple Inc.", Ticker: "AAPL", Exchange: "Nasdaq"}}, exchanges)
}

func TestMissingUserAgent(t *testing.T) {
	_, err := New(nil, "").Tickers(context.Background())
	require.ErrorIs(t, err, ErrMissingUserAgent)
}
