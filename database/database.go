// Package database is the persistence boundary for media assets.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mediahub/media"
)

// Repository wraps the gorm handle. It is the only component that mutates
// persisted state.
type Repository struct {
	db  *gorm.DB
	log *logrus.Entry
}

func New(db *gorm.DB, logger *logrus.Logger) *Repository {
	return &Repository{
		db: db,
		log: logger.WithField("component", "database"),
	}
}

// Migrate creates or updates the schema for every persisted model.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&media.Asset{}, &media.Variant{}, &media.OrphanArtifact{})
}

// Create persists an asset together with its variants in one transaction.
func (r *Repository) Create(ctx context.Context, asset *media.Asset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

// FindByID loads an asset and its variants.
func (r *Repository) FindByID(ctx context.Context, id uint) (*media.Asset, error) {
	var asset media.Asset
	err := r.db.WithContext(ctx).Preload("Variants").First(&asset, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &media.NotFoundError{What: fmt.Sprintf("media %d", id)}
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// sortColumns maps the external sort-field names onto columns.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"fileSize":  "file_size",
	"title":     "title",
}

// Find lists assets matching the query. Tag filtering matches any
// intersection between the asset's tags and the queried ones.
func (r *Repository) Find(ctx context.Context, q media.ListQuery) ([]media.Asset, error) {
	tx := r.db.WithContext(ctx).Model(&media.Asset{}).Preload("Variants")

	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.Type != "" {
		tx = tx.Where("mime_type LIKE ?", q.Type+"/%")
	}
	if len(q.Tags) > 0 {
		var conds []string
		var args []interface{}
		for _, tag := range q.Tags {
			conds = append(conds, "tags LIKE ?")
			args = append(args, `%"`+tag+`"%`)
		}
		tx = tx.Where(strings.Join(conds, " OR "), args...)
	}

	column, ok := sortColumns[q.SortField]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		order = "ASC"
	}
	tx = tx.Order(column + " " + order)

	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var assets []media.Asset
	if err := tx.Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// UpdateMetadata overwrites the caller-editable fields. Nil pointers leave
// the field untouched.
func (r *Repository) UpdateMetadata(ctx context.Context, id uint, title, description *string, tags media.Tags) error {
	updates := map[string]interface{}{}
	if title != nil {
		updates["title"] = *title
	}
	if description != nil {
		updates["description"] = *description
	}
	if tags != nil {
		updates["tags"] = tags
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&media.Asset{}).Where("id = ?", id).Updates(updates).Error
}

// Delete removes an asset and its variants. Deleting an absent id is a
// no-op.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("asset_id = ?", id).Delete(&media.Variant{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&media.Asset{}, id).Error
	})
}

// GetStats aggregates counts and byte totals in SQL, never by loading
// records into memory.
func (r *Repository) GetStats(ctx context.Context) (*media.Stats, error) {
	stats := &media.Stats{ByProvider: map[string]int64{}}
	tx := r.db.WithContext(ctx).Model(&media.Asset{})

	if err := tx.Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&media.Asset{}).
		Where("mime_type LIKE ?", "image/%").Count(&stats.Images).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&media.Asset{}).
		Where("mime_type LIKE ?", "video/%").Count(&stats.Videos).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&media.Asset{}).
		Select("COALESCE(SUM(file_size), 0)").Scan(&stats.TotalSizeBytes).Error; err != nil {
		return nil, err
	}

	rows, err := r.db.WithContext(ctx).Model(&media.Asset{}).
		Select("provider, COUNT(*) AS n").Group("provider").Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var provider string
		var n int64
		if err := rows.Scan(&provider, &n); err != nil {
			return nil, err
		}
		stats.ByProvider[provider] = n
	}
	return stats, rows.Err()
}

// CreateOrphan records a provider-side artifact whose metadata write failed.
func (r *Repository) CreateOrphan(ctx context.Context, orphan *media.OrphanArtifact) error {
	return r.db.WithContext(ctx).Create(orphan).Error
}

// ListOrphans returns every pending orphan record.
func (r *Repository) ListOrphans(ctx context.Context) ([]media.OrphanArtifact, error) {
	var orphans []media.OrphanArtifact
	if err := r.db.WithContext(ctx).Find(&orphans).Error; err != nil {
		return nil, err
	}
	return orphans, nil
}

// DeleteOrphan removes a swept orphan record.
func (r *Repository) DeleteOrphan(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&media.OrphanArtifact{}, id).Error
}
