package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thirdwatch.dev/watch/internal/model"
)

type deliveryStore struct {
	pool *pgxpool.Pool
}

func newDeliveryStore(pool *pgxpool.Pool) DeliveryStore {
	return &deliveryStore{pool: pool}
}

func (s *deliveryStore) Get(ctx context.Context, changeEventID int64, channelID string) (*model.DeliveryRecord, error) {
	var record model.DeliveryRecord
	err := s.pool.QueryRow(ctx,
		`SELECT change_event_id, channel_id, external_id, url, delivered_at
         FROM delivery_records WHERE change_event_id = $1 AND channel_id = $2`,
		changeEventID, channelID).
		Scan(&record.ChangeEventID, &record.ChannelID, &record.ExternalID, &record.URL, &record.DeliveredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (s *deliveryStore) Record(ctx context.Context, record model.DeliveryRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO delivery_records (change_event_id, channel_id, external_id, url, delivered_at)
         VALUES ($1, $2, $3, $4, $5)
         ON CONFLICT (change_event_id, channel_id) DO NOTHING`,
		record.ChangeEventID, record.ChannelID, record.ExternalID, record.URL, record.DeliveredAt)
	return err
}
