package http

import (
	"errors"
	"net/http"
	"strconv"

	"chat-quiz-bot/internal/app"
	"chat-quiz-bot/internal/domain"
	"github.com/gin-gonic/gin"
)

// NewRouter exposes health, the websocket chat and the read-only REST API.
// ws may be nil when chat runs over another transport.
func NewRouter(service *app.QuizService, ws *WSHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if ws != nil {
		router.GET("/ws", gin.WrapF(ws.ServeWS))
	}

	api := router.Group("/api")
	api.GET("/leaderboard", leaderboardHandler(service))
	api.GET("/users/:userId/progress", progressHandler(service))
	return router
}

func leaderboardHandler(service *app.QuizService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = n
		}

		lb, err := service.Leaderboard(c.Request.Context(), limit)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		entries := lb.Entries
		if entries == nil {
			entries = []domain.LeaderboardEntry{}
		}
		c.JSON(http.StatusOK, gin.H{
			"entries":   entries,
			"updatedAt": lb.UpdatedAt,
		})
	}
}

func progressHandler(service *app.QuizService) gin.HandlerFunc {
	return func(c *gin.Context) {
		progress, err := service.Progress(c.Request.Context(), c.Param("userId"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		if progress.AskedHistory == nil {
			progress.AskedHistory = []string{}
		}
		c.JSON(http.StatusOK, progress)
	}
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
