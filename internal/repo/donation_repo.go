// Package repo provides the donation archive repository functions.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

// ArchiveDonation inserts an accepted donation. An id conflict is ignored
// (inserted=false): the archive doubles as a durable dedup index for ids
// redelivered after a restart, when the in-memory index has been rebuilt
// from scratch.
func ArchiveDonation(ctx context.Context, db *gorm.DB, d domain.Donation) (inserted bool, err error) {
	rec := &domain.DonationRecord{
		ID:        d.ID,
		At:        d.At,
		Value:     d.Value,
		Sender:    d.Sender,
		Message:   d.Message,
		Status:    d.Status,
		URL:       d.URL,
		VideoID:   d.VideoID,
		CreatedAt: time.Now().UTC(),
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// HasDonation reports whether an id is already archived.
func HasDonation(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.DonationRecord{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// GetDonation fetches one archived donation by id.
func GetDonation(ctx context.Context, db *gorm.DB, id string) (*domain.DonationRecord, error) {
	var rec domain.DonationRecord
	if err := db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListDonations returns archived donations ordered most recent first.
func ListDonations(ctx context.Context, db *gorm.DB, limit int) ([]domain.DonationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	var out []domain.DonationRecord
	err := db.WithContext(ctx).Order("at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// CountDonations returns the archive size.
func CountDonations(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.DonationRecord{}).Count(&total).Error
	return total, err
}

// SenderStats aggregates one sender's archived donations.
func SenderStats(ctx context.Context, db *gorm.DB, sender string) (count int64, total float64, err error) {
	var row struct {
		Count int64
		Total float64
	}
	err = db.WithContext(ctx).Model(&domain.DonationRecord{}).
		Select("COUNT(*) AS count, COALESCE(SUM(value), 0) AS total").
		Where("sender = ?", sender).
		Scan(&row).Error
	return row.Count, row.Total, err
}
