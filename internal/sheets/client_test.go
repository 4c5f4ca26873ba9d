package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Tabs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/spreadsheets/sheet-1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"sheets":[{"properties":{"title":"Invoices"}},{"properties":{"title":"Invoice Line Items"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Token: "tok"}, nil)
	tabs, err := client.Tabs(context.Background(), "sheet-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"Invoices", "Invoice Line Items"}, tabs)
}

func TestClient_ReadRange_StringifiesCells(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values":[["invoice_key","invoice_total"],["g|1",118.5],["g|2",true]]}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Token: "tok"}, nil)
	rows, err := client.ReadRange(context.Background(), "sheet-1", "Invoices!1:999999")

	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"g|1", "118.5"}, rows[1])
	assert.Equal(t, []string{"g|2", "true"}, rows[2])
}

func TestClient_UpdateRange_UsesRawInput(t *testing.T) {
	var gotQuery string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotQuery = r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Token: "tok"}, nil)
	err := client.UpdateRange(context.Background(), "sheet-1", "Invoices!A2", [][]string{{"g|1", "118"}})

	require.NoError(t, err)
	assert.Contains(t, gotQuery, "valueInputOption=RAW")
	assert.NotNil(t, gotBody["values"])
}

func TestClient_BatchUpdate(t *testing.T) {
	var gotBody struct {
		ValueInputOption string `json:"valueInputOption"`
		Data             []struct {
			Range string `json:"range"`
		} `json:"data"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/spreadsheets/sheet-1/values:batchUpdate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Token: "tok"}, nil)
	err := client.BatchUpdate(context.Background(), "sheet-1", []RangeUpdate{
		{Range: "Invoices!A2", Values: [][]string{{"a"}}},
		{Range: "Invoices!A7", Values: [][]string{{"b"}}},
	})

	require.NoError(t, err)
	assert.Equal(t, "RAW", gotBody.ValueInputOption)
	require.Len(t, gotBody.Data, 2)
	assert.Equal(t, "Invoices!A7", gotBody.Data[1].Range)
}

func TestClient_BatchUpdate_EmptyIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Token: "tok"}, nil)
	require.NoError(t, client.BatchUpdate(context.Background(), "sheet-1", nil))
}

func TestClient_AppendRows_InsertsRows(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Token: "tok"}, nil)
	err := client.AppendRows(context.Background(), "sheet-1", "Invoices!A1", [][]string{{"x"}})

	require.NoError(t, err)
	assert.Contains(t, gotQuery, "valueInputOption=RAW")
	assert.Contains(t, gotQuery, "insertDataOption=INSERT_ROWS")
}

func TestClient_ErrorIncludesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"The caller does not have permission"}}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Token: "tok"}, nil)
	_, err := client.ReadRange(context.Background(), "sheet-1", "Invoices!1:1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "permission")
}
