package handler

import (
	"net/http"

	"floatai/internal/model"
	"floatai/internal/service"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) ListModels(c *gin.Context) {
	models, err := h.catalog.ListModels()
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]model.ModelConfig, 0, len(models))
	for _, m := range models {
		out = append(out, model.RedactedModel(m))
	}
	c.JSON(http.StatusOK, gin.H{"models": out})
}

func (h *CatalogHandler) GetModel(c *gin.Context) {
	m, err := h.catalog.GetModel(c.Param("model_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.RedactedModel(m))
}

func (h *CatalogHandler) CreateModel(c *gin.Context) {
	var req model.ModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.catalog.CreateModel(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.RedactedModel(m))
}

func (h *CatalogHandler) UpdateModel(c *gin.Context) {
	var req model.ModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.catalog.UpdateModel(c.Param("model_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.RedactedModel(m))
}

func (h *CatalogHandler) DeleteModel(c *gin.Context) {
	if err := h.catalog.DeleteModel(c.Param("model_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Model deleted successfully"})
}

func (h *CatalogHandler) ListPrompts(c *gin.Context) {
	prompts, err := h.catalog.ListPrompts()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompts": prompts})
}

func (h *CatalogHandler) GetPrompt(c *gin.Context) {
	p, err := h.catalog.GetPrompt(c.Param("prompt_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) CreatePrompt(c *gin.Context) {
	var req model.PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.catalog.CreatePrompt(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *CatalogHandler) UpdatePrompt(c *gin.Context) {
	var req model.PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.catalog.UpdatePrompt(c.Param("prompt_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) DeletePrompt(c *gin.Context) {
	if err := h.catalog.DeletePrompt(c.Param("prompt_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Prompt deleted successfully"})
}

func (h *CatalogHandler) GetSettings(c *gin.Context) {
	settings, err := h.catalog.Settings()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *CatalogHandler) UpdateSettings(c *gin.Context) {
	var req model.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.catalog.UpdateSettings(req.Settings); err != nil {
		respondError(c, err)
		return
	}
	h.GetSettings(c)
}
