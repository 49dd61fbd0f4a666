package ingestion

import (
	"github.com/gin-gonic/gin"

	"github.com/swooby/alfredd/internal/core/ingest"
	"github.com/swooby/alfredd/internal/core/storage"
	"github.com/swooby/alfredd/internal/core/summary"
)

// Service is the HTTP surface in front of the ingest engine and the
// event store: event submission, time-range queries, on-demand digests.
type Service struct {
	engine           *ingest.Engine
	store            storage.EventStore
	summarizer       summary.Generator
	maxBodySizeBytes int
}

func NewService(engine *ingest.Engine, store storage.EventStore, summarizer summary.Generator, maxBodySizeMB int) *Service {
	if engine == nil {
		panic("ingestion: engine must not be nil")
	}
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if summarizer == nil {
		panic("ingestion: summarizer must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		engine:           engine,
		store:            store,
		summarizer:       summarizer,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion and query routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/events", s.SubmitHandler)
	r.GET("/v1/events/:user_id", s.ListEventsHandler)
	r.GET("/v1/digest/:user_id", s.DigestHandler)
}
