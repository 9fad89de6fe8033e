package api

import (
	"context"
	"net/http"

	"inventory-service/internal/inventory"
	"inventory-service/internal/models"

	"github.com/gin-gonic/gin"
)

type createFunc func(ctx context.Context, in models.Document) (models.Document, error)
type updateFunc func(ctx context.Context, id string, in models.Document) (models.Document, error)
type deleteFunc func(ctx context.Context, id string) error

func createHandler(what string, fn createFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, ok := bindDocument(c)
		if !ok {
			return
		}
		doc, err := fn(c.Request.Context(), in)
		if err != nil {
			respondError(c, "Failed to add "+what, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	}
}

func updateHandler(what string, fn updateFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, ok := bindDocument(c)
		if !ok {
			return
		}
		doc, err := fn(c.Request.Context(), c.Param("id"), in)
		if err != nil {
			respondError(c, "Failed to update "+what, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func deleteHandler(what string, fn deleteFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, "Failed to delete "+what, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.Catalog.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list products", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) addProduct(c *gin.Context)    { createHandler("product", h.Catalog.AddProduct)(c) }
func (h *Handler) updateProduct(c *gin.Context) { updateHandler("product", h.Catalog.UpdateProduct)(c) }
func (h *Handler) deleteProduct(c *gin.Context) { deleteHandler("product", h.Catalog.DeleteProduct)(c) }

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list categories", err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) addCategory(c *gin.Context)    { createHandler("category", h.Catalog.AddCategory)(c) }
func (h *Handler) updateCategory(c *gin.Context) { updateHandler("category", h.Catalog.UpdateCategory)(c) }
func (h *Handler) deleteCategory(c *gin.Context) { deleteHandler("category", h.Catalog.DeleteCategory)(c) }

func (h *Handler) listVendors(c *gin.Context) {
	vendors, err := h.Catalog.ListVendors(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list vendors", err)
		return
	}
	c.JSON(http.StatusOK, vendors)
}

func (h *Handler) addVendor(c *gin.Context)    { createHandler("vendor", h.Catalog.AddVendor)(c) }
func (h *Handler) updateVendor(c *gin.Context) { updateHandler("vendor", h.Catalog.UpdateVendor)(c) }
func (h *Handler) deleteVendor(c *gin.Context) { deleteHandler("vendor", h.Catalog.DeleteVendor)(c) }

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.Orders.ListOrders(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list orders", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) pendingOrders(c *gin.Context) {
	orders, err := h.Orders.PendingOrders(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list orders", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.Orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Order not found", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) addOrder(c *gin.Context) {
	in, ok := bindDocument(c)
	if !ok {
		return
	}
	res, err := h.Orders.AddOrder(c.Request.Context(), in)
	if err != nil {
		respondError(c, "Failed to create order", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) updateOrder(c *gin.Context) {
	in, ok := bindDocument(c)
	if !ok {
		return
	}
	res, err := h.Orders.UpdateOrder(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, "Failed to update order", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) deleteOrder(c *gin.Context) { deleteHandler("order", h.Orders.DeleteOrder)(c) }

func (h *Handler) listInventory(c *gin.Context) {
	_, records, err := h.Reconciler.Snapshot(c.Request.Context(), queryBool(c, "cache", true))
	if err != nil {
		respondError(c, "Failed to list inventory", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// updateInventory accepts a bare quantity or {quantity, lastUpdated, location}
func (h *Handler) updateInventory(c *gin.Context) {
	var body any
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	doc, err := h.Reconciler.UpdateInventory(c.Request.Context(), c.Param("productId"), inventory.ParseUpdate(body))
	if err != nil {
		respondError(c, "Failed to update inventory", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) lowStock(c *gin.Context) {
	low, err := h.Reconciler.GetLowStockProducts(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to compute low stock", err)
		return
	}
	c.JSON(http.StatusOK, low)
}

func (h *Handler) checkLowStock(c *gin.Context) {
	low, err := h.Initializer.CheckLowInventory(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to check low inventory", err)
		return
	}
	c.JSON(http.StatusOK, low)
}
