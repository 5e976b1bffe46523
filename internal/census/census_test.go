package census

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/district-census/internal/model"
	"github.com/sells-group/district-census/internal/resilience"
)

// payload renders a Census-style array-of-arrays body for one county.
func payload(state, county string, rows ...[]string) string {
	header := append([]string{"NAME"}, Variables...)
	header = append(header, colState, colCounty, colTract, colBlockGroup)

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(jsonRow(header))
	for _, r := range rows {
		// r = tract, block group, then one value per variable
		rec := append([]string{"Block Group " + r[1]}, r[2:]...)
		rec = append(rec, state, county, r[0], r[1])
		b.WriteString(",")
		b.WriteString(jsonRow(rec))
	}
	b.WriteString("]")
	return b.String()
}

func jsonRow(cells []string) string {
	quoted := make([]string, len(cells))
	for i, c := range cells {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func values(total string) []string {
	// total, not hispanic, white, black, aian, asian, nhpi, other, two+, hispanic
	return []string{total, "80", "50", "20", "1", "5", "0", "2", "2", "20"}
}

func testClient(srvURL string, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(srvURL),
		WithPacing(0),
		WithRetry(resilience.Policy{Attempts: 3, Backoff: time.Millisecond, MaxDelay: time.Millisecond}),
	}
	return NewClient(append(base, opts...)...)
}

func TestFetchCounty_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2023/acs/acs5", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "NAME,"+strings.Join(Variables, ","), q.Get("get"))
		assert.Equal(t, "block group:*", q.Get("for"))
		assert.Equal(t, "state:17 county:031", q.Get("in"))
		assert.Equal(t, "secret", q.Get("key"))

		row := append([]string{"010100", "1"}, values("100")...)
		_, _ = w.Write([]byte(payload("17", "031", row)))
	}))
	defer srv.Close()

	c := testClient(srv.URL, WithAPIKey("secret"))
	rows, err := c.FetchCounty(context.Background(), "17", "031")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "170310101001", rows[0].GEOID)
	assert.Equal(t, 100.0, rows[0].Values[VarTotal])
	assert.Equal(t, 20.0, rows[0].Values[VarHispanic])
	_, hasName := rows[0].Values["NAME"]
	assert.False(t, hasName)
}

func TestFetchCounty_NoKeyParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.URL.Query()["key"]
		assert.False(t, ok)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rows, err := testClient(srv.URL).FetchCounty(context.Background(), "17", "031")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetchCounty_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte("not json"))
			return
		}
		row := append([]string{"010100", "2"}, values("40")...)
		_, _ = w.Write([]byte(payload("17", "031", row)))
	}))
	defer srv.Close()

	rows, err := testClient(srv.URL).FetchCounty(context.Background(), "17", "031")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchCounty_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, WithAPIKey("secret")).FetchCounty(context.Background(), "17", "031")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.NotContains(t, err.Error(), "secret")
}

func TestFetchCounties_NoContentCountyYieldsZeroRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Query().Get("in"), "county:043") {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		row := append([]string{"010100", "1"}, values("100")...)
		_, _ = w.Write([]byte(payload("17", "031", row)))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).FetchCounties(context.Background(), "17", []string{"031", "043"})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.Empty(t, res.Failed)

	bgs := []model.BlockGroup{{GEOID: "170310101001"}, {GEOID: "170430101001"}}
	matched := Join(bgs, res.Rows)
	assert.Equal(t, 1, matched)
	assert.Equal(t, 100.0, bgs[0].Counts[model.CategoryTotal])
	for _, cat := range model.Categories {
		assert.Equal(t, 0.0, bgs[1].Counts[cat], cat)
	}
}

func TestFetchCounties_FailingCountyDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Query().Get("in"), "county:043") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		row := append([]string{"010100", "1"}, values("100")...)
		_, _ = w.Write([]byte(payload("17", "031", row)))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).FetchCounties(context.Background(), "17", []string{"031", "043"})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"043"}, res.Failed)
}

func TestFetchCounties_PacesRequests(t *testing.T) {
	const pacing = 100 * time.Millisecond
	var mu sync.Mutex
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := testClient(srv.URL, WithPacing(pacing))
	res, err := c.FetchCounties(context.Background(), "17", []string{"031", "043", "089"})
	require.NoError(t, err)
	assert.Empty(t, res.Failed)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		// Allow a little slack for timer granularity on the server side.
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), pacing-10*time.Millisecond, "gap %d", i)
	}
}

func TestFetchCounties_Empty(t *testing.T) {
	_, err := NewClient().FetchCounties(context.Background(), "17", nil)
	assert.Error(t, err)
}

func TestFetchCounties_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient(srv.URL).FetchCounties(ctx, "17", []string{"031"})
	assert.Error(t, err)
}

func TestParseResponse_SentinelsAndText(t *testing.T) {
	row := append([]string{"10100", "1"}, "-666666666", "x", "", "3", "4", "5", "6", "7", "8", "9")
	rows, err := parseResponse([]byte(payload("6", "75", row)))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "060750101001", rows[0].GEOID)
	assert.Equal(t, 0.0, rows[0].Values[VarTotal])
	assert.Equal(t, 0.0, rows[0].Values[VarNotHispanic])
	assert.Equal(t, 0.0, rows[0].Values[VarWhite])
	assert.Equal(t, 3.0, rows[0].Values[VarBlack])
}

func TestParseResponse_NumericAndNullCells(t *testing.T) {
	header := append([]string{"NAME"}, Variables...)
	header = append(header, colState, colCounty, colTract, colBlockGroup)
	body := "[" + jsonRow(header) + `,["x",12,null,"7",3.5,1,0,0,0,0,0,"17","031","010100","2"]]`

	rows, err := parseResponse([]byte(body))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "170310101002", rows[0].GEOID)
	assert.Equal(t, 12.0, rows[0].Values[VarTotal])
	assert.Equal(t, 0.0, rows[0].Values[VarNotHispanic])
	assert.Equal(t, 7.0, rows[0].Values[VarWhite])
	assert.Equal(t, 3.5, rows[0].Values[VarBlack])
}

func TestParseResponse_RejectsNestedCells(t *testing.T) {
	_, err := parseResponse([]byte(`[["NAME","state"],[["x"],"17"]]`))
	assert.Error(t, err)
}

func TestParseResponse_HeaderOnly(t *testing.T) {
	rows, err := parseResponse([]byte(`[["NAME","state"]]`))
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestParseResponse_MissingGeographyColumn(t *testing.T) {
	_, err := parseResponse([]byte(`[["NAME","state","county"],["x","17","031"]]`))
	assert.Error(t, err)
}

func TestToCounts(t *testing.T) {
	counts := ToCounts(map[string]float64{VarTotal: 10, VarNotHispanic: 7, VarAsian: 2})
	assert.Len(t, counts, len(model.Categories))
	assert.Equal(t, 10.0, counts[model.CategoryTotal])
	assert.Equal(t, 2.0, counts[model.CategoryAsian])
	assert.Equal(t, 0.0, counts[model.CategoryHispanic])
	assert.NotContains(t, counts, model.Category(VarNotHispanic))
}

func TestWithDataset(t *testing.T) {
	c := NewClient(WithBaseURL("http://x/"), WithDataset(2021, "/acs/acs5/"))
	u := c.requestURL("01", "001")
	assert.True(t, strings.HasPrefix(u, "http://x/2021/acs/acs5?"), u)
}
