package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bull/semantic-search/internal/rag"
	"github.com/bull/semantic-search/internal/storage"
)

// UnavailableMessage replaces the answer whenever a downstream service fails.
const UnavailableMessage = "The search service is temporarily unavailable. Please try again later."

const notAvailable = "N/A"

type handler struct {
	deps     Deps
	markdown *markdownRenderer
}

func (h *handler) log(c *gin.Context) *zap.Logger {
	return h.deps.Logger.With(zap.String(requestIDKey, c.GetString(requestIDKey)))
}

// collections lists collection names for form dropdowns. Failure yields an empty
// list; the form falls back to a free-text field.
func (h *handler) collections(c *gin.Context) []string {
	names, err := h.deps.Store.ListCollections(c.Request.Context())
	if err != nil {
		h.log(c).Warn("list collections failed", zap.Error(err))
		return nil
	}
	return names
}

func (h *handler) formCollection(c *gin.Context) string {
	if name := strings.TrimSpace(c.PostForm("collection_name")); name != "" {
		return name
	}
	return h.deps.DefaultCollection
}

func (h *handler) home(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", page{
		Title:       "Semantic Search",
		Collections: h.collections(c),
		Collection:  h.deps.DefaultCollection,
	})
}

func (h *handler) search(c *gin.Context) {
	query := strings.TrimSpace(c.PostForm("query"))
	collection := h.formCollection(c)
	if query == "" {
		c.HTML(http.StatusOK, "index.html", page{
			Title:       "Semantic Search",
			Message:     "Please enter a question.",
			Collections: h.collections(c),
			Collection:  collection,
		})
		return
	}

	data := resultsPage{
		page:  page{Title: "Search Results", Collection: collection},
		Query: query,
	}

	answer, err := h.deps.RAG.Answer(c.Request.Context(), query, collection, 0)
	if err != nil {
		h.log(c).Error("search failed", zap.String("collection", collection), zap.Error(err))
		data.Message = UnavailableMessage
		c.HTML(http.StatusServiceUnavailable, "results.html", data)
		return
	}

	data.Answer = h.markdown.render(answer.Response)
	for i, hit := range answer.Results {
		data.Results = append(data.Results, resultRow{
			Rank:     i + 1,
			Score:    fmt.Sprintf("%.4f", hit.Score),
			Text:     orNA(hit.Text),
			Category: orNA(hit.Category),
		})
	}
	c.HTML(http.StatusOK, "results.html", data)
}

type apiSearchResult struct {
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
	Category string  `json:"category"`
}

type apiSearchResponse struct {
	Query         string            `json:"query"`
	Collection    string            `json:"collection"`
	SearchResults []apiSearchResult `json:"search_results"`
	AIResponse    string            `json:"ai_response"`
}

func (h *handler) apiSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	collection := c.DefaultQuery("collection_name", h.deps.DefaultCollection)
	if collection == "" {
		collection = h.deps.DefaultCollection
	}

	topK := 0
	if raw := c.Query("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "top_k must be a positive integer"})
			return
		}
		topK = n
	}

	answer, err := h.deps.RAG.Answer(c.Request.Context(), query, collection, topK)
	if err != nil {
		h.log(c).Error("api search failed", zap.String("collection", collection), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, rag.ErrServiceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": UnavailableMessage})
		return
	}

	c.JSON(http.StatusOK, apiSearchResponse{
		Query:         query,
		Collection:    collection,
		SearchResults: toAPIResults(answer.Results),
		AIResponse:    answer.Response,
	})
}

func toAPIResults(hits []*storage.ScoredChunk) []apiSearchResult {
	results := make([]apiSearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, apiSearchResult{
			Score:    hit.Score,
			Text:     orNA(hit.Text),
			Category: orNA(hit.Category),
		})
	}
	return results
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
