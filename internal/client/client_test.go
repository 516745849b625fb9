package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fivetwenty-io/qbo-client/internal/client"
	qbohttp "github.com/fivetwenty-io/qbo-client/internal/http"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companyPath = "/v3/company/123/"

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, level+":"+msg)
}

func (l *recordingLogger) Debug(msg string, _ map[string]interface{}) { l.record("debug", msg) }
func (l *recordingLogger) Info(msg string, _ map[string]interface{})  { l.record("info", msg) }
func (l *recordingLogger) Warn(msg string, _ map[string]interface{})  { l.record("warn", msg) }
func (l *recordingLogger) Error(msg string, _ map[string]interface{}) { l.record("error", msg) }

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...client.Option) *client.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	transport := qbohttp.NewClient(server.URL+companyPath, staticToken("test-token"))

	return client.New(transport, opts...)
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	var body map[string]any
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

	return body
}

func TestClient_Create(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, companyPath+"invoice", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("requestid"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		body := decodeBody(t, r)
		assert.Equal(t, map[string]any{"value": "1"}, body["CustomerRef"])

		writeJSON(w, map[string]any{
			"Invoice": map[string]any{"Id": "130", "SyncToken": "0"},
			"time":    "2024-03-01T10:00:00.000-08:00",
		})
	})

	result, err := c.Create(context.Background(), qbo.EntityInvoice, map[string]any{
		"CustomerRef": map[string]string{"value": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, qbo.EntityInvoice, result.Entity)
	assert.Equal(t, "130", result.ID())
	assert.Equal(t, "0", result.SyncToken())
	assert.Equal(t, "2024-03-01T10:00:00.000-08:00", result.Time)
	assert.Nil(t, result.Headers)
}

func TestClient_Validation(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{name: "create nil data", call: func() error {
			_, err := c.Create(ctx, qbo.EntityInvoice, nil)
			return err
		}},
		{name: "create unknown entity", call: func() error {
			_, err := c.Create(ctx, qbo.EntityName("Widget"), map[string]any{})
			return err
		}},
		{name: "read empty id", call: func() error {
			_, err := c.Read(ctx, qbo.EntityInvoice, "")
			return err
		}},
		{name: "update missing sync token", call: func() error {
			_, err := c.Update(ctx, qbo.EntityCustomer, map[string]any{"Id": "1"})
			return err
		}},
		{name: "update non-object", call: func() error {
			_, err := c.Update(ctx, qbo.EntityCustomer, []string{"x"})
			return err
		}},
		{name: "delete non-deletable", call: func() error {
			_, err := c.Delete(ctx, qbo.EntityCustomer, "1", "0")
			return err
		}},
		{name: "void non-voidable", call: func() error {
			_, err := c.Void(ctx, qbo.EntityBill, "1", "0")
			return err
		}},
		{name: "delete empty id", call: func() error {
			_, err := c.Delete(ctx, qbo.EntityInvoice, "", "0")
			return err
		}},
		{name: "pdf non-printable", call: func() error {
			_, err := c.PDF(ctx, qbo.EntityBill, "1")
			return err
		}},
		{name: "email non-emailable", call: func() error {
			_, err := c.SendEmail(ctx, qbo.EntityCustomer, "1", "")
			return err
		}},
		{name: "report name", call: func() error {
			_, err := c.Report(ctx, "", nil)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.call()
			require.Error(t, err)
			require.ErrorIs(t, err, qbo.ErrValidation)
		})
	}

	t.Cleanup(func() {
		assert.Zero(t, calls.Load())
	})
}

func TestClient_Read(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, companyPath+"customer/58", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("requestid"))

		w.Header().Set("intuit_tid", "tid-1")
		w.Header().Set("qbo-version", "1.2.3")
		writeJSON(w, map[string]any{"Customer": map[string]any{"Id": "58", "SyncToken": "3"}})
	}, client.WithResponseHeaders(true))

	result, err := c.Read(context.Background(), qbo.EntityCustomer, "58")
	require.NoError(t, err)
	assert.Equal(t, "58", result.ID())
	assert.Equal(t, "tid-1", result.Headers["intuit_tid"])
	assert.Equal(t, "1.2.3", result.Headers["qbo-version"])
	assert.Contains(t, result.Headers, "expires")
}

func TestClient_ReadFault(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("intuit_tid", "tid-9")
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{
			"Fault": map[string]any{
				"type":  "ValidationFault",
				"Error": []map[string]any{{"Message": "Object Not Found", "code": "610"}},
			},
		})
	})

	_, err := c.Read(context.Background(), qbo.EntityInvoice, "404")
	require.Error(t, err)
	assert.True(t, qbo.IsNotFound(err))

	var faultErr *qbo.FaultError
	require.ErrorAs(t, err, &faultErr)
	assert.Equal(t, "tid-9", faultErr.IntuitTID)
	assert.Equal(t, http.StatusBadRequest, faultErr.StatusCode)
}

func TestClient_UnexpectedEnvelope(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"Vendor": map[string]any{"Id": "1"}})
	})

	_, err := c.Read(context.Background(), qbo.EntityInvoice, "1")
	require.ErrorIs(t, err, qbo.ErrUnexpectedResponse)
}

func TestClient_Update(t *testing.T) {
	t.Parallel()

	t.Run("defaults to sparse", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, companyPath+"customer", r.URL.Path)

			body := decodeBody(t, r)
			assert.Equal(t, true, body["sparse"])
			assert.Equal(t, "Acme Ltd", body["DisplayName"])

			writeJSON(w, map[string]any{"Customer": map[string]any{"Id": "1", "SyncToken": "4"}})
		})

		result, err := c.Update(context.Background(), qbo.EntityCustomer, map[string]any{
			"Id":          "1",
			"SyncToken":   "3",
			"DisplayName": "Acme Ltd",
		})
		require.NoError(t, err)
		assert.Equal(t, "4", result.SyncToken())
	})

	t.Run("keeps explicit full update", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			body := decodeBody(t, r)
			assert.Equal(t, false, body["sparse"])

			writeJSON(w, map[string]any{"Customer": map[string]any{"Id": "1", "SyncToken": "4"}})
		})

		type customer struct {
			ID        string `json:"Id"`
			SyncToken string `json:"SyncToken"`
			Sparse    bool   `json:"sparse"`
		}

		_, err := c.Update(context.Background(), qbo.EntityCustomer, customer{ID: "1", SyncToken: "3"})
		require.NoError(t, err)
	})
}

func TestClient_Delete(t *testing.T) {
	t.Parallel()

	t.Run("with sync token", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, companyPath+"invoice", r.URL.Path)
			assert.Equal(t, "delete", r.URL.Query().Get("operation"))
			assert.Equal(t, map[string]any{"Id": "130", "SyncToken": "2"}, decodeBody(t, r))

			writeJSON(w, map[string]any{"Invoice": map[string]any{"Id": "130", "status": "Deleted"}})
		})

		result, err := c.Delete(context.Background(), qbo.EntityInvoice, "130", "2")
		require.NoError(t, err)
		assert.Equal(t, "Deleted", result.Get("status").String())
	})

	t.Run("reads sync token first", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch calls.Add(1) {
			case 1:
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, companyPath+"bill/7", r.URL.Path)
				writeJSON(w, map[string]any{"Bill": map[string]any{"Id": "7", "SyncToken": "5"}})
			default:
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, map[string]any{"Id": "7", "SyncToken": "5"}, decodeBody(t, r))
				writeJSON(w, map[string]any{"Bill": map[string]any{"Id": "7", "status": "Deleted"}})
			}
		})

		_, err := c.Delete(context.Background(), qbo.EntityBill, "7", "")
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestClient_Void(t *testing.T) {
	t.Parallel()

	t.Run("invoice", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "void", r.URL.Query().Get("operation"))
			assert.Equal(t, map[string]any{"Id": "130", "SyncToken": "1"}, decodeBody(t, r))

			writeJSON(w, map[string]any{"Invoice": map[string]any{"Id": "130", "SyncToken": "2"}})
		})

		_, err := c.Void(context.Background(), qbo.EntityInvoice, "130", "1")
		require.NoError(t, err)
	})

	t.Run("payment", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, companyPath+"payment", r.URL.Path)
			assert.Equal(t, "update", r.URL.Query().Get("operation"))
			assert.Equal(t, "void", r.URL.Query().Get("include"))
			assert.Equal(t, map[string]any{"Id": "9", "SyncToken": "0", "sparse": true}, decodeBody(t, r))

			writeJSON(w, map[string]any{"Payment": map[string]any{"Id": "9", "SyncToken": "1"}})
		})

		_, err := c.Void(context.Background(), qbo.EntityPayment, "9", "0")
		require.NoError(t, err)
	})
}

func TestClient_PDF(t *testing.T) {
	t.Parallel()

	pdf := []byte("%PDF-1.4 fake")

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, companyPath+"invoice/130/pdf", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdf)
	})

	data, err := c.PDF(context.Background(), qbo.EntityInvoice, "130")
	require.NoError(t, err)
	assert.Equal(t, pdf, data)
}

func TestClient_SendEmail(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, companyPath+"estimate/41/send", r.URL.Path)
		assert.Equal(t, "billing@example.com", r.URL.Query().Get("sendTo"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Empty(t, body)

		writeJSON(w, map[string]any{"Estimate": map[string]any{"Id": "41", "EmailStatus": "EmailSent"}})
	})

	result, err := c.SendEmail(context.Background(), qbo.EntityEstimate, "41", "billing@example.com")
	require.NoError(t, err)
	assert.Equal(t, "EmailSent", result.Get("EmailStatus").String())
}

func TestClient_Report(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, companyPath+"reports/ProfitAndLoss", r.URL.Path)
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("start_date"))

		w.Header().Set("intuit_tid", "tid-r")
		writeJSON(w, map[string]any{"Header": map[string]any{"ReportName": "ProfitAndLoss"}, "Rows": map[string]any{}})
	}, client.WithResponseHeaders(true))

	report, err := c.Report(context.Background(), qbo.ReportProfitAndLoss, url.Values{"start_date": {"2024-01-01"}})
	require.NoError(t, err)
	assert.Equal(t, "ProfitAndLoss", report.Name())
	assert.Equal(t, "tid-r", report.Headers["intuit_tid"])
}
