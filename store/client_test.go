package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ffbk-dev/autolog-controller/metrics"
)

type stubAuth struct{ token string }

func (s stubAuth) Login(ctx context.Context) (string, error) { return s.token, nil }

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	svr := httptest.NewServer(handler)
	c := NewClient(svr.URL, "footage", "frames", time.Second, stubAuth{token: "tok"}, metrics.NewClientMetrics("test_store_"+t.Name()))
	return c, svr
}

func TestFindByStatusPaginatesUntilShortPage(t *testing.T) {
	pageSize := 2
	var calls int
	c, svr := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var page []map[string]interface{}
		if calls == 1 {
			page = []map[string]interface{}{
				{"recordId": "1", "fieldData": map[string]interface{}{"id": "a"}},
				{"recordId": "2", "fieldData": map[string]interface{}{"id": "b"}},
			}
		} else {
			page = []map[string]interface{}{
				{"recordId": "3", "fieldData": map[string]interface{}{"id": "c"}},
			}
		}
		resp := map[string]interface{}{"response": map[string]interface{}{"data": page}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	defer svr.Close()

	var got []Record
	err := c.FindByStatus(context.Background(), "footage", "AutoLog_Status", "0 - Pending File Info", pageSize, 100, func(records []Record) error {
		got = append(got, records...)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, 2, calls)
}

func TestFindByStatusTreats404AsEmpty(t *testing.T) {
	c, svr := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer svr.Close()

	var got []Record
	err := c.FindByStatus(context.Background(), "footage", "AutoLog_Status", "9 - Complete", 500, 10000, func(records []Record) error {
		got = append(got, records...)
		return nil
	})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDoJSONReauthsOn401(t *testing.T) {
	var calls int
	c, svr := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := map[string]interface{}{"response": map[string]interface{}{"data": []map[string]interface{}{
			{"recordId": "1", "fieldData": map[string]interface{}{"id": "a"}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	defer svr.Close()

	rec, err := c.GetOne(context.Background(), "footage", "1")
	require.NoError(t, err)
	require.Equal(t, "1", rec.RecordKey)
	require.GreaterOrEqual(t, calls, 2)
}

func TestFindByOrSingleCallForManyIDs(t *testing.T) {
	var calls int
	c, svr := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body findRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		resp := map[string]interface{}{"response": map[string]interface{}{"data": []map[string]interface{}{
			{"recordId": "1", "fieldData": map[string]interface{}{"id": "a"}},
			{"recordId": "2", "fieldData": map[string]interface{}{"id": "b"}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	defer svr.Close()

	recs, err := c.FindByOr(context.Background(), "footage", "INFO_FTG_ID", []string{"a", "b"}, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, 1, calls)
}
