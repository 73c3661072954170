// Package store implements C1: a typed façade over the record store's
// HTTP API (paginated find-by-status, single-record fetch/patch, batch
// OR-find, child lookup), owning token lifecycle and retry/backoff.
//
// Grounded on the FileMaker Data API contract consumed by
// footage_autolog.py: POST .../<layout>/_find, GET/PATCH
// .../<layout>/records/<key>, bearer auth, 404-as-empty, 401-as-reauth.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"

	ctlerrors "github.com/ffbk-dev/autolog-controller/errors"
	"github.com/ffbk-dev/autolog-controller/log"
	"github.com/ffbk-dev/autolog-controller/metrics"
)

// Record is one raw document returned by the store: an opaque record key
// plus its field bag. Decoding into record.Footage/record.Frame happens
// above this package.
type Record struct {
	RecordKey string
	Fields    map[string]interface{}
}

// Authenticator obtains and refreshes the opaque session token used on
// every request. Kept behind an interface (rather than a bare string)
// per the "per-call auth, not a global token" design note: re-auth on 401
// is this package's internal concern, serialized by mu.
type Authenticator interface {
	Login(ctx context.Context) (token string, err error)
}

// Client is a stateless-per-call façade; safe for concurrent use. Each
// call owns its own HTTP interaction; only token refresh is serialized.
type Client struct {
	BaseURL        string
	LayoutFootage  string
	LayoutFrame    string
	RequestTimeout time.Duration
	Metrics        metrics.ClientMetrics

	auth Authenticator

	mu    sync.Mutex
	token string

	httpClient *http.Client
}

// NewClient builds a Client whose underlying transport retries transient
// network failures the way the rest of the pack's HTTP clients do
// (hashicorp/go-retryablehttp with a small bounded retry count); the
// store-level retry/backoff policy in this package layers on top for
// 401 token refresh and the "at most three retries" contract from
// §4.1 of the controller's external interface.
func NewClient(baseURL, layoutFootage, layoutFrame string, requestTimeout time.Duration, auth Authenticator, m metrics.ClientMetrics) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.CheckRetry = metrics.HttpRetryHook
	rc.HTTPClient = &http.Client{Timeout: requestTimeout}
	rc.Logger = nil

	return &Client{
		BaseURL:        baseURL,
		LayoutFootage:  layoutFootage,
		LayoutFrame:    layoutFrame,
		RequestTimeout: requestTimeout,
		Metrics:        m,
		auth:           auth,
		httpClient:     rc.StandardClient(),
	}
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	tok, err := c.auth.Login(ctx)
	if err != nil {
		return "", fmt.Errorf("initial store login failed: %w", err)
	}
	c.token = tok
	return tok, nil
}

// Token returns the current session token, obtaining one if necessary.
// Step processes receive it as their second positional argument (§6).
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.currentToken(ctx)
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, err := c.auth.Login(ctx)
	if err != nil {
		return "", fmt.Errorf("store re-auth failed: %w", err)
	}
	c.token = tok
	return tok, nil
}

type findRequest struct {
	Query  []map[string]interface{} `json:"query"`
	Limit  int                      `json:"limit,string"`
	Offset int                      `json:"offset,string,omitempty"`
}

type findResponse struct {
	Response struct {
		Data []struct {
			RecordID   string                 `json:"recordId"`
			FieldData  map[string]interface{} `json:"fieldData"`
		} `json:"data"`
	} `json:"response"`
	Messages []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"messages"`
}

// doJSON performs one authenticated request, retrying once on 401 and
// treating 404 as an empty, non-error response. All other transient
// classes (timeout, connection reset, 5xx, 429, 503) are retried by the
// caller via backoff.Retry; this method itself makes exactly one attempt
// (after an internal re-auth retry on 401).
func (c *Client) doJSON(ctx context.Context, method, url string, body interface{}, out interface{}) (notFound bool, err error) {
	tok, err := c.currentToken(ctx)
	if err != nil {
		return false, err
	}

	status, respBody, err := c.rawDo(ctx, method, url, tok, body)
	if err != nil {
		return false, ctlerrors.NewTransientError(err)
	}

	if status == http.StatusUnauthorized {
		tok, err = c.refreshToken(ctx)
		if err != nil {
			return false, ctlerrors.NewAuthExpiredError(err)
		}
		status, respBody, err = c.rawDo(ctx, method, url, tok, body)
		if err != nil {
			return false, ctlerrors.NewTransientError(err)
		}
		if status == http.StatusUnauthorized {
			return false, ctlerrors.NewAuthExpiredError(fmt.Errorf("still unauthorized after re-auth"))
		}
	}

	if status == http.StatusNotFound {
		return true, nil
	}

	if status >= 500 || status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		return false, ctlerrors.NewTransientError(fmt.Errorf("store returned status %d", status))
	}

	if status >= 400 {
		return false, fmt.Errorf("store returned status %d: %s", status, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return false, fmt.Errorf("decoding store response: %w", err)
		}
	}
	return false, nil
}

func (c *Client) rawDo(ctx context.Context, method, url string, token string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := metrics.MonitorRequest(c.Metrics, c.httpClient, req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// withRetry retries f up to 3 times with exponential backoff base·2^attempt
// for transient errors, stopping immediately on any other error kind (the
// backoff.PermanentError idiom used throughout the pack for unretriable
// conditions).
func withRetry(ctx context.Context, base time.Duration, f func() error) error {
	operation := func() error {
		err := f()
		if err == nil {
			return nil
		}
		if !ctlerrors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	bounded := backoff.WithMaxRetries(bo, 3)

	return backoff.Retry(operation, backoff.WithContext(bounded, ctx))
}

// PatchFields performs a single-record partial update: PATCH
// .../<layout>/records/<key> with body {fieldData: fields}.
func (c *Client) PatchFields(ctx context.Context, layout, recordKey string, fields map[string]interface{}) error {
	url := fmt.Sprintf("%s/layouts/%s/records/%s", c.BaseURL, layout, recordKey)
	body := map[string]interface{}{"fieldData": fields}

	err := withRetry(ctx, c.RequestTimeout/10, func() error {
		_, err := c.doJSONNoNotFound(ctx, http.MethodPatch, url, body, nil)
		return err
	})
	if err != nil {
		log.LogError(recordKey, "patch failed", err, "layout", layout)
	}
	return err
}

func (c *Client) doJSONNoNotFound(ctx context.Context, method, url string, body, out interface{}) (bool, error) {
	notFound, err := c.doJSON(ctx, method, url, body, out)
	if err != nil {
		return notFound, err
	}
	if notFound {
		return true, ctlerrors.NewNotFoundError(url)
	}
	return false, nil
}

// GetOne fetches a single record by its store key.
func (c *Client) GetOne(ctx context.Context, layout, recordKey string) (Record, error) {
	url := fmt.Sprintf("%s/layouts/%s/records/%s", c.BaseURL, layout, recordKey)
	var out findResponse
	var rec Record
	err := withRetry(ctx, c.RequestTimeout/10, func() error {
		notFound, err := c.doJSON(ctx, http.MethodGet, url, nil, &out)
		if err != nil {
			return err
		}
		if notFound || len(out.Response.Data) == 0 {
			return ctlerrors.Unretriable(ctlerrors.NewNotFoundError(recordKey))
		}
		d := out.Response.Data[0]
		rec = Record{RecordKey: d.RecordID, Fields: d.FieldData}
		return nil
	})
	return rec, err
}

// FindByOr issues a single multi-predicate OR find against field for each
// value in values, with a result limit of len(values)+buffer. Used by
// the batch status checker (C3) to collapse N parent lookups into one
// call. Tolerates "no records" as an empty, non-error result.
func (c *Client) FindByOr(ctx context.Context, layout, field string, values []string, buffer int) ([]Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	query := make([]map[string]interface{}, 0, len(values))
	for _, v := range values {
		query = append(query, map[string]interface{}{field: v})
	}

	url := fmt.Sprintf("%s/layouts/%s/_find", c.BaseURL, layout)
	body := findRequest{Query: query, Limit: len(values) + buffer}

	var out findResponse
	var records []Record
	err := withRetry(ctx, c.RequestTimeout/10, func() error {
		notFound, err := c.doJSON(ctx, http.MethodPost, url, body, &out)
		if err != nil {
			return err
		}
		if notFound {
			records = nil
			return nil
		}
		records = decodeRecords(out)
		return nil
	})
	return records, err
}

func decodeRecords(out findResponse) []Record {
	records := make([]Record, 0, len(out.Response.Data))
	for _, d := range out.Response.Data {
		records = append(records, Record{RecordKey: d.RecordID, Fields: d.FieldData})
	}
	return records
}

// PageFunc is called once per page returned by FindByStatus. Returning an
// error stops iteration and propagates the error to the caller.
type PageFunc func(records []Record) error

// FindByStatus pages through every record at the given status. The
// store's paging is 1-based and rejects explicit offsets <= 0, so the
// first request omits the offset and subsequent requests advance by the
// number of records actually returned. Iteration stops when a page
// returns fewer items than pageSize, when the store reports "no
// records", or when safetyCap is reached — in which case a warning is
// logged and the cycle continues with what was gathered.
func (c *Client) FindByStatus(ctx context.Context, layout, statusField, status string, pageSize, safetyCap int, fn PageFunc) error {
	url := fmt.Sprintf("%s/layouts/%s/_find", c.BaseURL, layout)
	offset := 0
	seen := 0

	for {
		body := findRequest{
			Query: []map[string]interface{}{{statusField: status}},
			Limit: pageSize,
		}
		if offset > 0 {
			body.Offset = offset + 1
		}

		var out findResponse
		err := withRetry(ctx, c.RequestTimeout/10, func() error {
			notFound, err := c.doJSON(ctx, http.MethodPost, url, body, &out)
			if err != nil {
				return err
			}
			if notFound {
				out = findResponse{}
			}
			return nil
		})
		if err != nil {
			return err
		}

		records := decodeRecords(out)
		if len(records) > 0 {
			if err := fn(records); err != nil {
				return err
			}
		}

		seen += len(records)
		offset += len(records)

		if len(records) < pageSize {
			return nil
		}
		if seen >= safetyCap {
			log.LogNoRecordID("pagination safety cap reached", "layout", layout, "status", status, "cap", safetyCap)
			return nil
		}
	}
}

// GetChildrenOf fetches every frame whose parent_id field equals
// parentID, paging with the same contract as FindByStatus.
func (c *Client) GetChildrenOf(ctx context.Context, layout, parentField, parentID string, pageSize, safetyCap int) ([]Record, error) {
	var all []Record
	err := c.FindByStatus(ctx, layout, parentField, parentID, pageSize, safetyCap, func(records []Record) error {
		all = append(all, records...)
		return nil
	})
	return all, err
}

// ExecAuxiliary calls an opaque server-side script hook. Included for
// interface completeness with the concurrency contract; the controller's
// core components never call it directly — only out-of-scope
// collaborators would.
func (c *Client) ExecAuxiliary(ctx context.Context, layout, scriptName, param string) (string, error) {
	url := fmt.Sprintf("%s/layouts/%s/script/%s", c.BaseURL, layout, scriptName)
	var out struct {
		Response struct {
			ScriptResult string `json:"scriptResult"`
		} `json:"response"`
	}
	err := withRetry(ctx, c.RequestTimeout/10, func() error {
		_, err := c.doJSON(ctx, http.MethodPost, url+"?script.param="+param, nil, &out)
		return err
	})
	return out.Response.ScriptResult, err
}
