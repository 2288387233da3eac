package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/Constyk20/zika-malaria-backend/internal/auth"
	"github.com/Constyk20/zika-malaria-backend/internal/model"
	"github.com/Constyk20/zika-malaria-backend/internal/scoring"
	"github.com/Constyk20/zika-malaria-backend/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxBatchItems   = 100
	maxRecordsPage  = 500
)

// predictRequest is the inbound payload. Age is a pointer so a missing field
// can be told apart from a newborn.
type predictRequest struct {
	PatientID     string   `json:"patient_id"`
	Age           *int     `json:"age"`
	Sex           string   `json:"sex"`
	TravelHistory string   `json:"travel_history"`
	Symptoms      []string `json:"symptoms"`
	Comorbidities []string `json:"comorbidities"`
}

func (r predictRequest) toModel() (model.PredictionRequest, error) {
	if r.Age == nil {
		return model.PredictionRequest{}, errors.New("age is required")
	}
	sex := strings.ToUpper(strings.TrimSpace(r.Sex))
	if sex == "" {
		return model.PredictionRequest{}, errors.New("sex is required")
	}
	return model.PredictionRequest{
		PatientID:     strings.TrimSpace(r.PatientID),
		Age:           *r.Age,
		Sex:           model.Sex(sex),
		TravelHistory: strings.TrimSpace(r.TravelHistory),
		Symptoms:      r.Symptoms,
		Comorbidities: r.Comorbidities,
	}, nil
}

type predictResponse struct {
	Success      bool                    `json:"success"`
	Message      string                  `json:"message"`
	AIPrediction *model.PredictionResult `json:"ai_prediction"`
	Patient      *model.Patient          `json:"patient"`
	Fallback     bool                    `json:"fallback"`
}

func errorBody(message string, err error) gin.H {
	body := gin.H{"success": false, "message": message}
	if err != nil {
		body["error"] = err.Error()
	}
	return body
}

// ---------- Prediction ----------

func (s *Server) handlePredict(c *gin.Context) {
	var body predictRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body", err))
		return
	}
	req, err := body.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("validation failed", err))
		return
	}

	out, err := s.predictor.Predict(c.Request.Context(), req, auth.Requester(c))
	if err != nil {
		s.writePredictError(c, err)
		return
	}

	c.JSON(http.StatusOK, predictResponse{
		Success:      true,
		Message:      "prediction generated",
		AIPrediction: out.Result,
		Patient:      out.Patient,
		Fallback:     out.Result.Source == model.SourceFallback,
	})
}

func (s *Server) writePredictError(c *gin.Context, err error) {
	var validation *scoring.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, errorBody("validation failed", validation))
		return
	}

	var overloaded *scoring.OverloadedError
	if errors.As(err, &overloaded) {
		secs := int(overloaded.RetryAfter.Seconds())
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success":             false,
			"message":             "scoring service is temporarily refusing requests, please retry later",
			"retry_after_seconds": secs,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, errorBody("prediction failed", err))
}

// ---------- Batch prediction ----------

type batchPredictRequest struct {
	Items []predictRequest `json:"items"`
}

type batchItemResult struct {
	Success           bool                    `json:"success"`
	Error             string                  `json:"error,omitempty"`
	AIPrediction      *model.PredictionResult `json:"ai_prediction,omitempty"`
	Patient           *model.Patient          `json:"patient,omitempty"`
	Fallback          bool                    `json:"fallback"`
	RetryAfterSeconds int                     `json:"retry_after_seconds,omitempty"`
}

// handlePredictBatch scores a list of requests sequentially. Items fail
// independently: one bad row or one scorer hiccup never voids the rest of an
// intake sheet.
func (s *Server) handlePredictBatch(c *gin.Context) {
	var body batchPredictRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body", err))
		return
	}
	if len(body.Items) == 0 {
		c.JSON(http.StatusBadRequest, errorBody("items is required and must not be empty", nil))
		return
	}
	if len(body.Items) > maxBatchItems {
		c.JSON(http.StatusBadRequest, errorBody("too many items", errors.New("batch size limit is "+strconv.Itoa(maxBatchItems))))
		return
	}

	requestedBy := auth.Requester(c)
	results := lo.Map(body.Items, func(item predictRequest, _ int) batchItemResult {
		return s.predictOne(c, item, requestedBy)
	})
	failed := lo.CountBy(results, func(r batchItemResult) bool { return !r.Success })

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "batch processed",
		"processed": len(results),
		"failed":    failed,
		"results":   results,
	})
}

func (s *Server) predictOne(c *gin.Context, item predictRequest, requestedBy string) batchItemResult {
	req, err := item.toModel()
	if err != nil {
		return batchItemResult{Error: err.Error()}
	}

	out, err := s.predictor.Predict(c.Request.Context(), req, requestedBy)
	if err != nil {
		res := batchItemResult{Error: err.Error()}
		var overloaded *scoring.OverloadedError
		if errors.As(err, &overloaded) {
			res.RetryAfterSeconds = int(overloaded.RetryAfter.Seconds())
		}
		return res
	}

	return batchItemResult{
		Success:      true,
		AIPrediction: out.Result,
		Patient:      out.Patient,
		Fallback:     out.Result.Source == model.SourceFallback,
	}
}

// ---------- Patients and records ----------

func (s *Server) handleListPatients(c *gin.Context) {
	limit := queryInt(c, "limit", defaultPageSize, maxPageSize)
	offset := queryInt(c, "offset", 0, 1<<31)

	patients, err := s.store.ListPatients(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to list patients", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"count":    len(patients),
		"patients": patients,
	})
}

func (s *Server) handleGetPatient(c *gin.Context) {
	patient, err := s.store.GetPatient(c.Request.Context(), c.Param("patientId"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorBody("patient not found", nil))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to load patient", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "patient": patient})
}

func (s *Server) handleListRecords(c *gin.Context) {
	patientID := c.Param("patientId")
	if _, err := s.store.GetPatient(c.Request.Context(), patientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorBody("patient not found", nil))
			return
		}
		c.JSON(http.StatusInternalServerError, errorBody("failed to load patient", err))
		return
	}

	limit := queryInt(c, "limit", defaultPageSize, maxRecordsPage)
	records, err := s.store.ListRecords(c.Request.Context(), patientID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to list records", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleDeleteRecord(c *gin.Context) {
	recordID := c.Param("recordId")
	err := s.store.DeleteRecord(c.Request.Context(), recordID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorBody("record not found", nil))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to delete record", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "record deleted"})
}

// handleSourceStats reports how often predictions came from the remote model
// versus the local fallback. A fallback share creeping up means the scoring
// service needs attention.
func (s *Server) handleSourceStats(c *gin.Context) {
	stats, err := s.store.SourceStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to aggregate stats", err))
		return
	}

	bySource := gin.H{}
	for _, st := range stats {
		bySource[string(st.Source)] = gin.H{
			"count":          st.Count,
			"avg_confidence": st.AvgConfidence,
		}
	}
	total := lo.SumBy(stats, func(st model.SourceStats) int64 { return st.Count })

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"total":   total,
		"sources": bySource,
	})
}

func queryInt(c *gin.Context, name string, fallback, max int64) int64 {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}
