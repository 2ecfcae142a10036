package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/dungeon-forge/internal/api/domain"
	"github.com/cuongbtq/dungeon-forge/internal/api/dto"
	"github.com/cuongbtq/dungeon-forge/internal/api/model"
	"github.com/cuongbtq/dungeon-forge/internal/api/storage"
	dungeon "github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	basePath = "/api/v1/dungeons"

	defaultPageSize = 20
	maxPageSize     = 100

	// stageEnqueue marks jobs whose message never reached the broker
	stageEnqueue = "enqueue"
)

// CreateDungeon handles POST /api/v1/dungeons
// Stores a PENDING job and queues it for a worker
func (h *JobHandler) CreateDungeon(c *gin.Context) {
	// 1. Bind overrides; an empty body keeps every default
	var body dto.CreateDungeonRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	// 2. Validate the effective request
	req := h.defaults
	body.ApplyTo(&req)
	if err := req.Validate(); err != nil {
		response := gin.H{"error": err.Error()}
		var validationErr *dungeon.ValidationError
		if errors.As(err, &validationErr) {
			response["field"] = validationErr.Field
		}
		c.JSON(http.StatusBadRequest, response)
		return
	}

	raw, err := json.Marshal(req)
	if err != nil {
		h.logger.Error("Failed to encode request", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	// 3. Store the job
	now := h.now().UTC()
	job := model.DungeonJob{
		JobID:     uuid.New().String(),
		Status:    domain.JobStatusPending,
		Request:   raw,
		Name:      nullString(req.Name),
		Seed:      nullString(req.Seed),
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx := c.Request.Context()
	if err := h.store.CreateJob(ctx, &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	// 4. Publish message to RabbitMQ
	if err := h.publisher.PublishJSON(ctx, gin.H{"job_id": job.JobID}); err != nil {
		h.logger.Error("Failed to enqueue job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		if failErr := h.store.FailJob(ctx, job.JobID, stageEnqueue, err.Error()); failErr != nil {
			h.logger.Error("Failed to mark unqueued job as failed",
				slog.String("job_id", job.JobID),
				slog.String("error", failErr.Error()),
			)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "Failed to enqueue job",
			"job_id": job.JobID,
		})
		return
	}

	h.logger.Info("Dungeon job created",
		slog.String("job_id", job.JobID),
		slog.Int("level", req.Level),
		slog.Int("party_size", req.PartySize),
	)

	c.Header("Location", basePath+"/"+job.JobID)
	c.JSON(http.StatusAccepted, toDungeonDTO(&job))
}

// GetDungeon handles GET /api/v1/dungeons/:job_id
// Returns the job status and, once completed, the dungeon document
func (h *JobHandler) GetDungeon(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.store.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.respondStoreError(c, jobID, err)
		return
	}

	c.JSON(http.StatusOK, toDungeonDTO(job))
}

// ListDungeons handles GET /api/v1/dungeons
// Lists jobs newest first with an optional status filter and cursor pagination
func (h *JobHandler) ListDungeons(c *gin.Context) {
	var req dto.ListDungeonsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters: " + err.Error(),
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
		return
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), storage.JobFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	// the store returns one extra row when another page exists
	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	response := dto.ListDungeonsResponse{Dungeons: make([]dto.DungeonDTO, len(jobs))}
	for i := range jobs {
		summary := toDungeonDTO(&jobs[i])
		// documents can be large; fetch them one at a time
		summary.Result = nil
		response.Dungeons[i] = *summary
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		response.NextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, response)
}

// GetMapImage handles GET /api/v1/dungeons/:job_id/map.png
func (h *JobHandler) GetMapImage(c *gin.Context) {
	h.serveImage(c, domain.ImageMap)
}

// GetKeyImage handles GET /api/v1/dungeons/:job_id/key.png
func (h *JobHandler) GetKeyImage(c *gin.Context) {
	h.serveImage(c, domain.ImageKey)
}

func (h *JobHandler) serveImage(c *gin.Context, kind string) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	image, err := h.store.GetImage(c.Request.Context(), jobID, kind)
	if err != nil {
		h.respondStoreError(c, jobID, err)
		return
	}

	c.Data(http.StatusOK, "image/png", image)
}

// DeleteDungeon handles DELETE /api/v1/dungeons/:job_id
// Removes a COMPLETED or FAILED job
func (h *JobHandler) DeleteDungeon(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteJob(c.Request.Context(), jobID); err != nil {
		h.respondStoreError(c, jobID, err)
		return
	}

	h.logger.Info("Dungeon job deleted", slog.String("job_id", jobID))
	c.Status(http.StatusNoContent)
}

// jobID reads the :job_id parameter, answering 400 when it is not a UUID
func (h *JobHandler) jobID(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}

func (h *JobHandler) respondStoreError(c *gin.Context, jobID string, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "job_id": jobID})
	case errors.Is(err, domain.ErrJobNotTerminal), errors.Is(err, domain.ErrImageNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "job_id": jobID})
	default:
		h.logger.Error("Storage error",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func toDungeonDTO(job *model.DungeonJob) *dto.DungeonDTO {
	out := &dto.DungeonDTO{
		JobID:     job.JobID,
		Status:    job.Status,
		Name:      job.Name.String,
		Seed:      job.Seed.String,
		RemoteID:  job.RemoteID.String,
		Request:   json.RawMessage(job.Request),
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
	if job.RoomCount.Valid {
		out.RoomCount = &job.RoomCount.Int64
	}
	if job.TotalXP.Valid {
		out.TotalXP = &job.TotalXP.Int64
	}
	if job.StartedAt.Valid {
		out.StartedAt = job.StartedAt.Time.Format(time.RFC3339)
	}
	if job.CompletedAt.Valid {
		out.CompletedAt = job.CompletedAt.Time.Format(time.RFC3339)
	}

	switch job.Status {
	case domain.JobStatusCompleted:
		out.Result = json.RawMessage(job.Result)
		out.MapURL = basePath + "/" + job.JobID + "/map.png"
		out.KeyURL = basePath + "/" + job.JobID + "/key.png"
	case domain.JobStatusFailed:
		out.Error = &dto.ErrorDTO{
			Stage:   job.ErrorStage.String,
			Message: job.ErrorMessage.String,
		}
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
