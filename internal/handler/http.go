package handler

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/game"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/speech"
)

// APIError is the standardized error response body.
type APIError struct {
	Message string `json:"message"`
}

// StateResponse describes the current session to the UI.
type StateResponse struct {
	Situation  string   `json:"situation"`
	Characters []string `json:"characters"`
	Playtime   string   `json:"playtime"`
}

// ChooseRequest selects a pending development by index, or supplies
// custom player text instead.
type ChooseRequest struct {
	Index      *int   `json:"index"`
	CustomText string `json:"custom_text"`
}

// SaveRequest carries optional metadata for a manual save.
type SaveRequest struct {
	Metadata map[string]any `json:"metadata"`
}

// SaveResponse returns the id of a written save record.
type SaveResponse struct {
	SaveID string `json:"save_id"`
}

// TurnResponse is a turn result plus any synthesized audio paths keyed by
// character name.
type TurnResponse struct {
	*game.TurnResult
	Audio map[string]string `json:"audio,omitempty"`
}

// StoryHandler exposes one game session over HTTP. The session itself is
// not re-entrant, so every session-touching request is serialized here.
type StoryHandler struct {
	mu      sync.Mutex
	session *game.Session
	speech  *speech.Synthesizer // nil when speech is disabled
	logger  *zap.Logger
}

// NewStoryHandler creates the handler. synthesizer may be nil.
func NewStoryHandler(session *game.Session, synthesizer *speech.Synthesizer, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		session: session,
		speech:  synthesizer,
		logger:  logger.Named("StoryHandler"),
	}
}

// RegisterRoutes attaches the API routes.
func (h *StoryHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	api.GET("/state", h.GetState)
	api.GET("/developments", h.GetDevelopments)
	api.POST("/developments/choose", h.Choose)
	api.POST("/saves", h.SaveGame)
	api.GET("/saves", h.ListSaves)
	api.POST("/saves/:id/load", h.LoadGame)
	api.DELETE("/saves/:id", h.DeleteSave)
	api.POST("/quicksave", h.QuickSave)
	api.POST("/quickload", h.QuickLoad)
	api.POST("/autosave", h.Autosave)
}

// GetState returns the situation, roster and playtime.
func (h *StoryHandler) GetState(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.JSON(http.StatusOK, StateResponse{
		Situation:  h.session.Situation(),
		Characters: h.session.CharacterNames(),
		Playtime:   h.session.Playtime(),
	})
}

// GetDevelopments returns the pending development menu, generating it
// lazily.
func (h *StoryHandler) GetDevelopments(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	batch := h.session.Developments(c.Request.Context())
	c.JSON(http.StatusOK, batch)
}

// Choose applies a development choice or custom player text and runs the
// character turn.
func (h *StoryHandler) Choose(c *gin.Context) {
	var req ChooseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var result *game.TurnResult
	var err error
	switch {
	case req.Index != nil:
		result, err = h.session.Choose(c.Request.Context(), *req.Index)
	case req.CustomText != "":
		result, err = h.session.ChooseCustom(c.Request.Context(), req.CustomText)
	default:
		c.JSON(http.StatusBadRequest, APIError{Message: "either index or custom_text is required"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := TurnResponse{TurnResult: result}
	if h.speech != nil {
		resp.Audio = make(map[string]string, len(result.Responses))
		for _, line := range result.Responses {
			if path := h.speech.Synthesize(c.Request.Context(), line.Character, line.Text); path != "" {
				resp.Audio[line.Character] = path
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// SaveGame writes a manual save.
func (h *StoryHandler) SaveGame(c *gin.Context) {
	// An empty or absent body is fine for a manual save.
	var req SaveRequest
	_ = c.ShouldBindJSON(&req)

	h.mu.Lock()
	defer h.mu.Unlock()
	saveID, err := h.session.SaveGame(c.Request.Context(), req.Metadata)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SaveResponse{SaveID: saveID})
}

// ListSaves enumerates save records with timestamps and metadata.
func (h *StoryHandler) ListSaves(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	saves, err := h.session.ListSaves(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saves)
}

// LoadGame restores the session from a save record.
func (h *StoryHandler) LoadGame(c *gin.Context) {
	saveID := c.Param("id")

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.session.LoadGame(c.Request.Context(), saveID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loaded": saveID})
}

// DeleteSave removes a save record.
func (h *StoryHandler) DeleteSave(c *gin.Context) {
	saveID := c.Param("id")

	h.mu.Lock()
	defer h.mu.Unlock()
	existed, err := h.session.DeleteSave(c.Request.Context(), saveID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": existed})
}

// QuickSave writes the fixed-slot quicksave.
func (h *StoryHandler) QuickSave(c *gin.Context) {
	slot := h.slotParam(c)

	h.mu.Lock()
	defer h.mu.Unlock()
	saveID, err := h.session.QuickSave(c.Request.Context(), slot)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SaveResponse{SaveID: saveID})
}

// QuickLoad restores the session from the fixed-slot quicksave.
func (h *StoryHandler) QuickLoad(c *gin.Context) {
	slot := h.slotParam(c)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.session.QuickLoad(c.Request.Context(), slot); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loaded": true, "slot": slot})
}

// Autosave writes an autosave immediately.
func (h *StoryHandler) Autosave(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	saveID, err := h.session.Autosave(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SaveResponse{SaveID: saveID})
}

func (h *StoryHandler) slotParam(c *gin.Context) int {
	slot, err := strconv.Atoi(c.DefaultQuery("slot", "0"))
	if err != nil || slot < 0 {
		return 0
	}
	return slot
}

func (h *StoryHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrSaveNotFound):
		c.JSON(http.StatusNotFound, APIError{Message: err.Error()})
	case errors.Is(err, models.ErrNoPendingDevelopments),
		errors.Is(err, models.ErrInvalidDevelopmentPick),
		errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	case errors.Is(err, models.ErrAIGenerationFailed):
		c.JSON(http.StatusBadGateway, APIError{Message: err.Error()})
	default:
		h.logger.Error("Unhandled handler error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: models.ErrInternalServer.Error()})
	}
}
