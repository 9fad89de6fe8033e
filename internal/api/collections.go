package api

import (
	"io"
	"net/http"

	"inventory-service/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listCollection(c *gin.Context) {
	docs, err := h.Documents.List(c.Request.Context(), c.Param("collection"), queryBool(c, "cache", true))
	if err != nil {
		respondError(c, "Failed to list collection", err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Handler) getDocument(c *gin.Context) {
	doc, err := h.Documents.Get(c.Request.Context(), c.Param("collection"), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get document", err)
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// streamCollection pushes the whole collection as a server-sent event on
// connect and after every change. A slow client only sees the latest list.
func (h *Handler) streamCollection(c *gin.Context) {
	ctx := c.Request.Context()
	collection := c.Param("collection")

	updates := make(chan []models.Document, 1)
	stop := h.Documents.Subscribe(ctx, collection, func(docs []models.Document) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- docs:
		default:
		}
	})
	defer stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case docs := <-updates:
			c.SSEvent(collection, docs)
			return true
		}
	})
}
