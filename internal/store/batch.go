package store

import "inventory-service/internal/models"

type opKind int

const (
	opSet opKind = iota
	opUpdate
	opDelete
)

type batchOp struct {
	kind       opKind
	collection string
	id         string
	fields     models.Document
}

// Batch collects writes that commit together or not at all.
type Batch struct {
	ops []batchOp
}

func NewBatch() *Batch {
	return &Batch{}
}

// Set creates or replaces a document.
func (b *Batch) Set(collection, id string, fields models.Document) *Batch {
	b.ops = append(b.ops, batchOp{kind: opSet, collection: collection, id: id, fields: fields.Clone()})
	return b
}

// Update merges fields into an existing document; the batch fails if it is missing.
func (b *Batch) Update(collection, id string, fields models.Document) *Batch {
	b.ops = append(b.ops, batchOp{kind: opUpdate, collection: collection, id: id, fields: fields.Clone()})
	return b
}

func (b *Batch) Delete(collection, id string) *Batch {
	b.ops = append(b.ops, batchOp{kind: opDelete, collection: collection, id: id})
	return b
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.ops)
}
