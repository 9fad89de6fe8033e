package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"inventory-service/internal/audit"
	"inventory-service/internal/backup"
	"inventory-service/internal/models"
	"inventory-service/internal/notify"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listNotifications(c *gin.Context) {
	list, err := h.Deriver.List(c.Request.Context(), queryBool(c, "unread", false))
	if err != nil {
		respondError(c, "Failed to list notifications", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	if err := h.Deriver.MarkAsRead(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "Failed to mark notification as read", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listHistory(c *gin.Context) {
	list, err := h.History.List(c.Request.Context(), notify.HistoryFilter{
		Type:       c.Query("type"),
		UnreadOnly: queryBool(c, "unread", false),
		Limit:      queryInt(c, "limit"),
	})
	if err != nil {
		respondError(c, "Failed to fetch notification history", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) storeHistory(c *gin.Context) {
	var in notify.HistoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	id := h.History.Store(c.Request.Context(), in)
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (h *Handler) historyStats(c *gin.Context) {
	stats, err := h.History.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to fetch notification statistics", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) markHistoryRead(c *gin.Context) {
	if err := h.History.MarkAsRead(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "Failed to mark notification as read", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) markAllHistoryRead(c *gin.Context) {
	n, err := h.History.MarkAllAsRead(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to mark notifications as read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) clearHistory(c *gin.Context) {
	n, err := h.History.Clear(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to clear notification history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *Handler) listAuditLogs(c *gin.Context) {
	entries, err := h.Audit.Query(c.Request.Context(), audit.Filter{
		Collection: c.Query("collection"),
		Action:     c.Query("action"),
		Limit:      queryInt(c, "limit"),
	})
	if err != nil {
		respondError(c, "Failed to fetch audit logs", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) auditStats(c *gin.Context) {
	stats, err := h.Audit.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to fetch audit statistics", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) runRetention(c *gin.Context) {
	report, err := h.Audit.RunRetention(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to run audit retention", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) listBackups(c *gin.Context) {
	history, err := h.Backups.History(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to get backup history", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// createBackup returns the snapshot; with ?download=true it is sent as a
// portable JSON file and the export is audited as a view
func (h *Handler) createBackup(c *gin.Context) {
	ctx := c.Request.Context()
	snap, err := h.Backups.CreateFullBackup(ctx)
	if err != nil {
		respondError(c, "Backup failed", err)
		return
	}
	if !queryBool(c, "download", false) {
		c.JSON(http.StatusCreated, snap)
		return
	}

	raw, err := backup.EncodeSnapshot(snap)
	if err != nil {
		respondError(c, "Backup failed", err)
		return
	}
	filename := backup.ExportFilename(time.Now())
	h.Audit.LogView(ctx, models.CollectionBackups, snap.Metadata.ID, map[string]any{
		"action":   "backup_exported",
		"filename": filename,
	})
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusCreated, "application/json", raw)
}

func (h *Handler) backupStats(c *gin.Context) {
	stats, err := h.Backups.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to get backup statistics", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) validateBackup(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, backup.ValidateJSON(raw))
}

// restoreBackup validates the uploaded snapshot before restoring it.
// ?collections=a,b narrows the restore, ?replace=true clears first.
func (h *Handler) restoreBackup(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err)
		return
	}
	snap, report, err := backup.DecodeSnapshot(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid backup",
			"details":    err.Error(),
			"validation": report,
		})
		return
	}

	restored, err := h.Backups.RestoreFromBackup(c.Request.Context(), snap, queryList(c, "collections"), queryBool(c, "replace", false))
	if err != nil {
		respondError(c, "Restore failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"restored": restored,
		"warnings": report.Warnings,
	})
}

func (h *Handler) deleteBackup(c *gin.Context) {
	if err := h.Backups.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "Failed to delete backup", err)
		return
	}
	c.Status(http.StatusNoContent)
}
