// intake-loader bulk-submits a patient intake CSV to a running triage API.
// Rows become prediction requests, posted in batches so a single malformed
// row or scorer hiccup never sinks the whole sheet.
//
// Expected CSV header:
//
//	patient_id,age,sex,travel_history,symptoms,comorbidities
//
// symptoms and comorbidities are semicolon-separated within their cell.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

const maxBatchItems = 100 // server-side cap on items per batch call

// ---------- Setup ----------

type options struct {
	file      string
	apiURL    string
	token     string
	batchSize int
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.file, "file", "intake.csv", "path to the intake CSV")
	flag.StringVar(&opts.apiURL, "api", "http://localhost:8080", "base URL of the triage API")
	flag.StringVar(&opts.token, "token", os.Getenv("TRIAGE_TOKEN"), "bearer token (defaults to TRIAGE_TOKEN)")
	flag.IntVar(&opts.batchSize, "batch", 50, "rows per batch request")
	flag.Parse()

	if opts.token == "" {
		log.Fatal("a bearer token is required: pass -token or set TRIAGE_TOKEN")
	}
	if opts.batchSize < 1 || opts.batchSize > maxBatchItems {
		log.Fatalf("batch size must be between 1 and %d", maxBatchItems)
	}
	return opts
}

// ---------- Core Logic ----------

type intakeRow struct {
	PatientID     string   `json:"patient_id,omitempty"`
	Age           int      `json:"age"`
	Sex           string   `json:"sex"`
	TravelHistory string   `json:"travel_history,omitempty"`
	Symptoms      []string `json:"symptoms,omitempty"`
	Comorbidities []string `json:"comorbidities,omitempty"`
}

type batchResponse struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Results   []struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	} `json:"results"`
}

func readRows(path string) ([]intakeRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open intake file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"age", "sex"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("csv is missing the %q column", required)
		}
	}

	var rows []intakeRow
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		age, err := strconv.Atoi(strings.TrimSpace(cell(record, col, "age")))
		if err != nil {
			log.Printf("skipping line %d: bad age %q", line, cell(record, col, "age"))
			continue
		}

		rows = append(rows, intakeRow{
			PatientID:     strings.TrimSpace(cell(record, col, "patient_id")),
			Age:           age,
			Sex:           strings.ToUpper(strings.TrimSpace(cell(record, col, "sex"))),
			TravelHistory: strings.TrimSpace(cell(record, col, "travel_history")),
			Symptoms:      splitList(cell(record, col, "symptoms")),
			Comorbidities: splitList(cell(record, col, "comorbidities")),
		})
	}
	return rows, nil
}

func submitBatch(ctx context.Context, client *http.Client, opts options, rows []intakeRow) (*batchResponse, error) {
	payload, err := json.Marshal(map[string]any{"items": rows})
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(opts.apiURL, "/")+"/api/v1/predict/batch", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+opts.token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out batchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	return &out, nil
}

// ---------- Main ----------

func main() {
	opts := parseFlags()

	rows, err := readRows(opts.file)
	if err != nil {
		log.Fatalf("could not read intake file: %v", err)
	}
	if len(rows) == 0 {
		log.Fatal("intake file has no usable rows")
	}
	log.Printf("loaded %d rows from %s", len(rows), opts.file)

	client := &http.Client{Timeout: 5 * time.Minute}
	ctx := context.Background()

	processed, failed := 0, 0
	for i, batch := range lo.Chunk(rows, opts.batchSize) {
		resp, err := submitBatch(ctx, client, opts, batch)
		if err != nil {
			log.Printf("batch %d failed outright: %v", i+1, err)
			failed += len(batch)
			continue
		}
		processed += resp.Processed
		failed += resp.Failed
		for j, result := range resp.Results {
			if !result.Success {
				log.Printf("batch %d row %d rejected: %s", i+1, j+1, result.Error)
			}
		}
		log.Printf("batch %d done: %d processed, %d failed", i+1, resp.Processed, resp.Failed)
	}

	log.Printf("intake complete: %d rows processed, %d failed", processed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// ---------- Helpers ----------

func cell(record []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func splitList(s string) []string {
	parts := strings.Split(s, ";")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
