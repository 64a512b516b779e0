package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	categoryRepo "leadmarket/database/repository/category"
	"leadmarket/models"
	"leadmarket/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var CategoryRepo categoryRepo.CategoryRepository

const categoryCacheKey = "categories:active"
const categoryCacheTTL = 5 * time.Minute

// ListCategoriesHandler returns the active service categories. The catalogue
// changes rarely, so the listing is served from cache when possible.
func ListCategoriesHandler(c *gin.Context) {
	ctx := c.Request.Context()
	cache := utils.GetCacheClient()

	if cached, err := cache.Get(ctx, categoryCacheKey).Result(); err == nil {
		var categories []models.Category
		if json.Unmarshal([]byte(cached), &categories) == nil {
			c.JSON(http.StatusOK, gin.H{"categories": categories})
			return
		}
	}

	categories, err := CategoryRepo.ListActive(ctx)
	if err != nil {
		respondError(c, err, "Failed to list categories")
		return
	}

	if data, err := json.Marshal(categories); err == nil {
		if err := cache.Set(context.Background(), categoryCacheKey, data, categoryCacheTTL).Err(); err != nil {
			getLogger(c).Warn("Failed to cache category listing", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetCategoryHandler returns one category with its subcategories.
func GetCategoryHandler(c *gin.Context) {
	category, err := CategoryRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get category")
		return
	}
	if category == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}
	c.JSON(http.StatusOK, category)
}
