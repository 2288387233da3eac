package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.csv")
	csv := "patient_id,age,sex,travel_history,symptoms,comorbidities\n" +
		"PT-1,55,f,Visited Brazil in March,fever;rash,\n" +
		",30,M,,,\n" +
		"PT-3,notanage,M,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	rows, err := readRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 2, "the unparseable row is skipped, not fatal")

	assert.Equal(t, "PT-1", rows[0].PatientID)
	assert.Equal(t, 55, rows[0].Age)
	assert.Equal(t, "F", rows[0].Sex, "sex is upper-cased")
	assert.Equal(t, []string{"fever", "rash"}, rows[0].Symptoms)
	assert.Nil(t, rows[0].Comorbidities)

	assert.Empty(t, rows[1].PatientID)
	assert.Equal(t, 30, rows[1].Age)
}

func TestReadRowsRequiresAgeAndSexColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.csv")
	require.NoError(t, os.WriteFile(path, []byte("patient_id,travel_history\nPT-1,none\n"), 0o644))

	_, err := readRows(path)
	require.Error(t, err)
}

func TestSubmitBatch(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/api/v1/predict/batch", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"processed": 2, "failed": 1, "results": [{"success": true}, {"success": false, "error": "age is required"}]}`))
	}))
	defer srv.Close()

	opts := options{apiURL: srv.URL, token: "tok"}
	resp, err := submitBatch(context.Background(), &http.Client{Timeout: time.Second}, opts, []intakeRow{
		{Age: 30, Sex: "M"},
		{Age: 41, Sex: "F"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, 2, resp.Processed)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "age is required", resp.Results[1].Error)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"fever", "rash"}, splitList("fever; rash"))
	assert.Equal(t, []string{"fever"}, splitList("fever;"))
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" ; ; "))
}
