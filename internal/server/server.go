// Package server exposes the triage API over HTTP: prediction intake plus
// read access to the patients and clinical records the predictions produce.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Constyk20/zika-malaria-backend/internal/auth"
	"github.com/Constyk20/zika-malaria-backend/internal/config"
	"github.com/Constyk20/zika-malaria-backend/internal/model"
	"github.com/Constyk20/zika-malaria-backend/internal/scoring"
)

// Request bodies beyond this are rejected outright; prediction payloads are
// tiny and anything bigger is abuse.
const maxBodyBytes = 1 << 20

// Predictor produces one risk classification per request. Satisfied by
// *scoring.Orchestrator.
type Predictor interface {
	Predict(ctx context.Context, req model.PredictionRequest, requestedBy string) (*scoring.Outcome, error)
}

// Store is the read side of persistence the HTTP layer serves from. All
// writes go through the Predictor.
type Store interface {
	GetPatient(ctx context.Context, patientID string) (*model.Patient, error)
	ListPatients(ctx context.Context, limit, offset int64) ([]model.Patient, error)
	ListRecords(ctx context.Context, patientID string, limit int64) ([]model.ClinicalRecord, error)
	DeleteRecord(ctx context.Context, recordID string) error
	SourceStats(ctx context.Context) ([]model.SourceStats, error)
	Ping(ctx context.Context) error
}

type Server struct {
	cfg       *config.Config
	predictor Predictor
	store     Store
}

func New(cfg *config.Config, predictor Predictor, store Store) *Server {
	return &Server{cfg: cfg, predictor: predictor, store: store}
}

// Router assembles the full middleware chain and route table.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), limitBody, corsMiddleware())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api/v1", auth.Middleware(s.cfg.JWTSecret))
	api.POST("/predict", s.handlePredict)
	api.POST("/predict/batch", s.handlePredictBatch)
	api.GET("/patients", s.handleListPatients)
	api.GET("/patients/:patientId", s.handleGetPatient)
	api.GET("/patients/:patientId/records", s.handleListRecords)
	api.DELETE("/records/:recordId", s.handleDeleteRecord)
	api.GET("/records/stats", s.handleSourceStats)

	return r
}

func limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	c.Next()
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Retry-After"},
		MaxAge:        12 * time.Hour,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
