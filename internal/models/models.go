package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusOrdered   = "ordered"
	OrderStatusReceived  = "received"
	OrderStatusCancelled = "cancelled"
)

// Notification types
const (
	NotificationLowInventory = "low_inventory"
	NotificationOrderUpdate  = "order_update"
	NotificationGeneral      = "general"
)

// Audit actions
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionView    = "view"
	ActionRestore = "restore"
)

var validate = validator.New()

// ValidationError lists the fields that failed entity validation.
type ValidationError struct {
	Entity string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(e.Fields, ", "))
}

func validateEntity(entity string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return &ValidationError{Entity: entity, Fields: fields}
}

// UnitRate is one level of a product's packaging.
type UnitRate struct {
	Type           string  `json:"type"`
	ConversionRate float64 `json:"conversionRate"`
}

// UnitConfig describes how items, packages and cases convert into each other.
type UnitConfig struct {
	Structure         string   `json:"structure"`
	Item              UnitRate `json:"item"`
	Package           UnitRate `json:"package"`
	Case              UnitRate `json:"case"`
	ItemsPerCase      float64  `json:"itemsPerCase"`
	ItemsPerPackage   float64  `json:"itemsPerPackage"`
	ItemsPerItem      float64  `json:"itemsPerItem"`
	TotalItemsPerCase float64  `json:"totalItemsPerCase"`
	PackagesPerCase   float64  `json:"packagesPerCase"`
}

// DefaultUnitConfig is used when a product carries no unit configuration.
func DefaultUnitConfig() UnitConfig {
	return UnitConfig{
		Structure: "item-case",
		Item:      UnitRate{Type: "item", ConversionRate: 1},
		Package:   UnitRate{Type: "package", ConversionRate: 0},
		Case:      UnitRate{Type: "case", ConversionRate: 1},
	}
}

// UnitConfigFromMap coerces every numeric field, filling missing levels with defaults.
func UnitConfigFromMap(m map[string]any) UnitConfig {
	uc := DefaultUnitConfig()
	if m == nil {
		return uc
	}
	if s := ToString(m["structure"]); s != "" {
		uc.Structure = s
	}
	uc.Item = unitRateFromMap(ToMap(m["item"]), "item", 1)
	uc.Package = unitRateFromMap(ToMap(m["package"]), "package", 0)
	uc.Case = unitRateFromMap(ToMap(m["case"]), "case", 1)
	uc.ItemsPerCase = ToNumber(m["itemsPerCase"])
	uc.ItemsPerPackage = ToNumber(m["itemsPerPackage"])
	uc.ItemsPerItem = ToNumber(m["itemsPerItem"])
	uc.TotalItemsPerCase = ToNumber(m["totalItemsPerCase"])
	uc.PackagesPerCase = ToNumber(m["packagesPerCase"])
	return uc
}

func unitRateFromMap(m map[string]any, kind string, fallback float64) UnitRate {
	if m == nil {
		return UnitRate{Type: kind, ConversionRate: fallback}
	}
	r := UnitRate{Type: ToString(m["type"]), ConversionRate: ToNumber(m["conversionRate"])}
	if r.Type == "" {
		r.Type = kind
	}
	if r.ConversionRate == 0 {
		r.ConversionRate = fallback
	}
	return r
}

func (u UnitConfig) fields() map[string]any {
	rate := func(r UnitRate) map[string]any {
		return map[string]any{"type": r.Type, "conversionRate": r.ConversionRate}
	}
	return map[string]any{
		"structure":         u.Structure,
		"item":              rate(u.Item),
		"package":           rate(u.Package),
		"case":              rate(u.Case),
		"itemsPerCase":      u.ItemsPerCase,
		"itemsPerPackage":   u.ItemsPerPackage,
		"itemsPerItem":      u.ItemsPerItem,
		"totalItemsPerCase": u.TotalItemsPerCase,
		"packagesPerCase":   u.PackagesPerCase,
	}
}

// Product is a stocked item.
type Product struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name" validate:"required"`
	CategoryID            string     `json:"categoryId"`
	VendorID              string     `json:"vendorId"`
	LowInventoryThreshold float64    `json:"lowInventoryThreshold" validate:"gte=0"`
	ThresholdUnit         string     `json:"thresholdUnit"`
	ThresholdInItems      float64    `json:"thresholdInItems" validate:"gte=0"`
	UnitConfig            UnitConfig `json:"unitConfig"`
}

// ProductFromDocument decodes and normalizes a product document.
func ProductFromDocument(d Document) Product {
	p := Product{
		ID:                    d.ID(),
		Name:                  ToString(d["name"]),
		CategoryID:            ToString(d["categoryId"]),
		VendorID:              ToString(d["vendorId"]),
		LowInventoryThreshold: ToNumber(d["lowInventoryThreshold"]),
		ThresholdUnit:         ToString(d["thresholdUnit"]),
		ThresholdInItems:      ToNumber(d["thresholdInItems"]),
		UnitConfig:            UnitConfigFromMap(ToMap(d["unitConfig"])),
	}
	p.Normalize()
	return p
}

// Normalize fills defaults on a product built from loosely typed input
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	if p.ThresholdUnit == "" {
		p.ThresholdUnit = "item"
	}
	if p.UnitConfig.Structure == "" {
		p.UnitConfig.Structure = DefaultUnitConfig().Structure
	}
	if p.UnitConfig.Item.Type == "" {
		p.UnitConfig.Item = UnitRate{Type: "item", ConversionRate: 1}
	}
	if p.UnitConfig.Package.Type == "" {
		p.UnitConfig.Package = UnitRate{Type: "package"}
	}
	if p.UnitConfig.Case.Type == "" {
		p.UnitConfig.Case = UnitRate{Type: "case", ConversionRate: 1}
	}
}

// EffectiveThreshold is thresholdInItems, falling back to
// lowInventoryThreshold when unset, and 0 when neither is set.
func (p Product) EffectiveThreshold() float64 {
	if p.ThresholdInItems != 0 {
		return p.ThresholdInItems
	}
	return p.LowInventoryThreshold
}

func (p Product) Validate() error {
	return validateEntity("product", p)
}

// Fields returns the persisted fields of p, without id.
func (p Product) Fields() map[string]any {
	return map[string]any{
		"name":                  p.Name,
		"categoryId":            p.CategoryID,
		"vendorId":              p.VendorID,
		"lowInventoryThreshold": p.LowInventoryThreshold,
		"thresholdUnit":         p.ThresholdUnit,
		"thresholdInItems":      p.ThresholdInItems,
		"unitConfig":            p.UnitConfig.fields(),
	}
}

// Category groups products, optionally into named sub-categories.
type Category struct {
	ID            string   `json:"id"`
	Name          string   `json:"name" validate:"required"`
	SubCategories []string `json:"subCategories,omitempty"`
}

func CategoryFromDocument(d Document) Category {
	c := Category{ID: d.ID(), Name: ToString(d["name"])}
	for _, v := range toSlice(d["subCategories"]) {
		c.SubCategories = append(c.SubCategories, ToString(v))
	}
	c.Normalize()
	return c
}

// Normalize drops blank sub-categories
func (c *Category) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	subs := c.SubCategories[:0]
	for _, s := range c.SubCategories {
		if s = strings.TrimSpace(s); s != "" {
			subs = append(subs, s)
		}
	}
	if len(subs) == 0 {
		subs = nil
	}
	c.SubCategories = subs
}

func (c Category) Validate() error {
	return validateEntity("category", c)
}

// Fields omits subCategories when there are none.
func (c Category) Fields() map[string]any {
	f := map[string]any{"name": c.Name}
	if len(c.SubCategories) > 0 {
		f["subCategories"] = append([]string(nil), c.SubCategories...)
	}
	return f
}

// Vendor supplies products.
type Vendor struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
}

func VendorFromDocument(d Document) Vendor {
	return Vendor{ID: d.ID(), Name: strings.TrimSpace(ToString(d["name"]))}
}

func (v Vendor) Validate() error {
	return validateEntity("vendor", v)
}

func (v Vendor) Fields() map[string]any {
	return map[string]any{"name": v.Name}
}

// InventoryRecord holds the stock of one product in its smallest unit.
type InventoryRecord struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId" validate:"required"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	LastUpdated string  `json:"lastUpdated"`
	Location    *string `json:"location,omitempty"`
}

// InventoryFromDocument tolerates object-shaped quantities left by older clients.
func InventoryFromDocument(d Document) InventoryRecord {
	rec := InventoryRecord{
		ID:          d.ID(),
		ProductID:   ToString(d["productId"]),
		Quantity:    QuantityOf(d["quantity"]),
		LastUpdated: ToString(d["lastUpdated"]),
	}
	if loc, ok := d["location"].(string); ok {
		rec.Location = &loc
	}
	return rec
}

// QuantityOf normalizes a stored or submitted quantity to a number.
func QuantityOf(v any) int {
	if m := ToMap(v); m != nil {
		return ToInt(m["quantity"])
	}
	return ToInt(v)
}

func (r InventoryRecord) Validate() error {
	return validateEntity("inventory record", r)
}

// OrderItem is a single purchase order line.
type OrderItem struct {
	ProductID string  `json:"productId" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gte=0"`
	UnitCost  float64 `json:"unitCost"`
}

// Order is a purchase order from a vendor.
type Order struct {
	ID        string      `json:"id"`
	Status    string      `json:"status" validate:"required"`
	Season    string      `json:"season,omitempty"`
	OrderDate string      `json:"orderDate,omitempty"`
	VendorID  string      `json:"vendorId,omitempty"`
	Items     []OrderItem `json:"items" validate:"dive"`
	Total     float64     `json:"total"`
}

func OrderFromDocument(d Document) Order {
	o := Order{
		ID:        d.ID(),
		Status:    ToString(d["status"]),
		Season:    ToString(d["season"]),
		OrderDate: ToString(d["orderDate"]),
		VendorID:  ToString(d["vendorId"]),
		Total:     ToNumber(d["total"]),
	}
	for _, raw := range toSlice(d["items"]) {
		m := ToMap(raw)
		if m == nil {
			continue
		}
		o.Items = append(o.Items, OrderItem{
			ProductID: ToString(m["productId"]),
			Quantity:  ToInt(m["quantity"]),
			UnitCost:  ToNumber(m["unitCost"]),
		})
	}
	o.Normalize()
	return o
}

// Normalize defaults the status to pending
func (o *Order) Normalize() {
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
}

func (o Order) Validate() error {
	return validateEntity("order", o)
}

// ItemFields renders the items in their stored shape.
func (o Order) ItemFields() []any {
	items := make([]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"productId": it.ProductID,
			"quantity":  it.Quantity,
			"unitCost":  it.UnitCost,
		})
	}
	return items
}

// Notification is a user-facing alert.
type Notification struct {
	ID        string         `json:"id"`
	Type      string         `json:"type" validate:"oneof=low_inventory order_update general"`
	Message   string         `json:"message" validate:"required"`
	Data      map[string]any `json:"data"`
	IsRead    bool           `json:"isRead"`
	CreatedAt string         `json:"createdAt"`
	ReadAt    string         `json:"readAt,omitempty"`
}

func NotificationFromDocument(d Document) Notification {
	return Notification{
		ID:        d.ID(),
		Type:      ToString(d["type"]),
		Message:   ToString(d["message"]),
		Data:      ToMap(d["data"]),
		IsRead:    ToBool(d["isRead"]),
		CreatedAt: ToString(d["createdAt"]),
		ReadAt:    ToString(d["readAt"]),
	}
}

func (n Notification) Validate() error {
	return validateEntity("notification", n)
}

// LowStockItem is one low-stock detection.
type LowStockItem struct {
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	CurrentStock int     `json:"currentStock"`
	Threshold    float64 `json:"threshold"`
}

// Fields is the notification payload for the detection.
func (l LowStockItem) Fields() map[string]any {
	return map[string]any{
		"productId":    l.ProductID,
		"productName":  l.ProductName,
		"currentStock": l.CurrentStock,
		"threshold":    l.Threshold,
	}
}

// AuditLogEntry is an immutable record of one data change.
type AuditLogEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Collection string         `json:"collection"`
	DocumentID string         `json:"documentId,omitempty"`
	Data       any            `json:"data"`
	Metadata   map[string]any `json:"metadata"`
	Timestamp  string         `json:"timestamp"`
	CreatedAt  string         `json:"createdAt"`
}

func AuditLogEntryFromDocument(d Document) AuditLogEntry {
	e := AuditLogEntry{
		ID:         d.ID(),
		Action:     ToString(d["action"]),
		Collection: ToString(d["collection"]),
		DocumentID: ToString(d["documentId"]),
		Data:       d["data"],
		Metadata:   ToMap(d["metadata"]),
		Timestamp:  ToString(d["timestamp"]),
		CreatedAt:  ToString(d["createdAt"]),
	}
	if e.Timestamp == "" {
		e.Timestamp = e.CreatedAt
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	return e
}

// HistoryEntry is a stored toast/notification shown to the user earlier.
type HistoryEntry struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata"`
	Source    string         `json:"source"`
	Read      bool           `json:"read"`
	Timestamp string         `json:"timestamp"`
	CreatedAt string         `json:"createdAt"`
	ReadAt    string         `json:"readAt,omitempty"`
}

func HistoryEntryFromDocument(d Document) HistoryEntry {
	return HistoryEntry{
		ID:        d.ID(),
		Type:      ToString(d["type"]),
		Message:   ToString(d["message"]),
		Metadata:  ToMap(d["metadata"]),
		Source:    ToString(d["source"]),
		Read:      ToBool(d["read"]),
		Timestamp: ToString(d["timestamp"]),
		CreatedAt: ToString(d["createdAt"]),
		ReadAt:    ToString(d["readAt"]),
	}
}

// BackupMetadata describes a snapshot.
type BackupMetadata struct {
	ID          string   `json:"id,omitempty"`
	Version     string   `json:"version"`
	CreatedAt   string   `json:"createdAt"`
	CreatedBy   string   `json:"createdBy"`
	Type        string   `json:"type"`
	Collections []string `json:"collections"`
}

func BackupMetadataFromDocument(d Document) BackupMetadata {
	m := BackupMetadata{
		ID:        d.ID(),
		Version:   ToString(d["version"]),
		CreatedAt: ToString(d["createdAt"]),
		CreatedBy: ToString(d["createdBy"]),
		Type:      ToString(d["type"]),
	}
	for _, v := range toSlice(d["collections"]) {
		if s := ToString(v); s != "" {
			m.Collections = append(m.Collections, s)
		}
	}
	return m
}

func (m BackupMetadata) Fields() map[string]any {
	return map[string]any{
		"version":     m.Version,
		"createdAt":   m.CreatedAt,
		"createdBy":   m.CreatedBy,
		"type":        m.Type,
		"collections": append([]string(nil), m.Collections...),
	}
}

// Snapshot is a portable copy of every tracked collection.
type Snapshot struct {
	Metadata *BackupMetadata       `json:"metadata"`
	Data     map[string][]Document `json:"data"`
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out
	case []map[string]any:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out
	case []Document:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out
	default:
		return nil
	}
}
