package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// gormInsertChunk bounds rows per INSERT statement inside a batch transaction
const gormInsertChunk = 100

// documentModel is one row of the documents table
type documentModel struct {
	Collection string         `gorm:"primaryKey;type:varchar(64)"`
	ID         string         `gorm:"primaryKey;type:varchar(64)"`
	Body       datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"index"`
	UpdatedAt  time.Time
}

// TableName returns the table name for GORM
func (documentModel) TableName() string {
	return "documents"
}

// GormStore keeps documents as JSON rows in a single relational table.
// Equality queries compile to the dialect's JSON path extraction.
type GormStore struct {
	db          *gorm.DB
	maxBatchOps int
}

// NewGormStore creates a store on an open GORM connection
func NewGormStore(db *gorm.DB, maxBatchOps int) *GormStore {
	if maxBatchOps <= 0 {
		maxBatchOps = DefaultMaxBatchOps
	}
	return &GormStore{db: db, maxBatchOps: maxBatchOps}
}

// AutoMigrate creates the documents table. Production PostgreSQL schemas are
// managed by the migrate command instead.
func (s *GormStore) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&documentModel{})
}

// Create implements Store
func (s *GormStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	if collection == "" {
		return "", ErrEmptyCollection
	}
	model, err := newDocumentModel(collection, NewID(), doc)
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return model.ID, nil
}

// Get implements Store
func (s *GormStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	var model documentModel
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}
	return model.snapshot()
}

// Update implements Store
func (s *GormStore) Update(ctx context.Context, collection, id string, fields Document) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model documentModel
		err := tx.Where("collection = ? AND id = ?", collection, id).Take(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
		}

		snap, err := model.snapshot()
		if err != nil {
			return err
		}
		for k, v := range fields {
			snap.Data[k] = v
		}
		body, err := json.Marshal(snap.Data)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
		}

		err = tx.Model(&documentModel{}).
			Where("collection = ? AND id = ?", collection, id).
			Updates(map[string]any{"body": datatypes.JSON(body), "updated_at": time.Now()}).Error
		if err != nil {
			return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
		}
		return nil
	})
}

// FindWhere implements Store
func (s *GormStore) FindWhere(ctx context.Context, collection, field string, value any) ([]Snapshot, error) {
	var models []documentModel
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Where(datatypes.JSONQuery("body").Equals(value, field)).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}
	out := make([]Snapshot, 0, len(models))
	for i := range models {
		snap, err := models[i].snapshot()
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, nil
}

// NewBatch implements Store
func (s *GormStore) NewBatch() Batch {
	return &gormBatch{store: s, buf: newBatchBuffer(s.maxBatchOps)}
}

// MaxBatchOps implements Store
func (s *GormStore) MaxBatchOps() int {
	return s.maxBatchOps
}

// Ping checks the database connection
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close implements Store
func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

type gormBatch struct {
	store *GormStore
	buf   batchBuffer
}

func (b *gormBatch) Set(collection string, doc Document) (string, error) {
	return b.buf.add(collection, doc)
}

func (b *gormBatch) Len() int {
	return b.buf.Len()
}

func (b *gormBatch) Commit(ctx context.Context) error {
	if b.buf.committed {
		return ErrBatchCommitted
	}
	if len(b.buf.writes) == 0 {
		b.buf.committed = true
		return nil
	}

	models := make([]documentModel, 0, len(b.buf.writes))
	for _, w := range b.buf.writes {
		model, err := newDocumentModel(w.collection, w.id, w.doc)
		if err != nil {
			return err
		}
		models = append(models, *model)
	}

	err := b.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(models, gormInsertChunk).Error
	})
	if err != nil {
		return fmt.Errorf("failed to commit batch of %d documents: %w", len(models), err)
	}
	b.buf.committed = true
	return nil
}

func newDocumentModel(collection, id string, doc Document) (*documentModel, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s document: %w", collection, err)
	}
	return &documentModel{
		Collection: collection,
		ID:         id,
		Body:       datatypes.JSON(body),
	}, nil
}

func (m *documentModel) snapshot() (*Snapshot, error) {
	data := make(Document)
	if len(m.Body) > 0 {
		if err := json.Unmarshal(m.Body, &data); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", m.Collection, m.ID, err)
		}
	}
	return &Snapshot{ID: m.ID, Data: data}, nil
}
