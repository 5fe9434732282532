package pg

import (
	"context"
	"strings"
	"time"

	"harvestbid.org/internal/chat"
	"harvestbid.org/internal/ids"
)

var _ chat.Store = (*Store)(nil)

func (s *Store) AppendMessage(ctx context.Context, m *chat.Message) error {
	if m == nil || strings.TrimSpace(m.Body) == "" {
		return chat.ErrInvalidInput
	}
	ctx, cancel := opCtx(ctx)
	defer cancel()
	if m.ID == "" {
		m.ID = ids.New()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into messages (id, crop_id, sender_id, receiver_id, body, sent_at)
		values ($1,$2,$3,$4,$5,$6)
	`, m.ID, m.CropID, m.SenderID, m.ReceiverID, m.Body, m.SentAt)
	return storeErr(err)
}

func (s *Store) MessagesByCrop(ctx context.Context, cropID string) ([]chat.Message, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		select id, crop_id, sender_id, receiver_id, body, sent_at
		from messages where crop_id=$1 order by sent_at asc, id asc
	`, cropID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.CropID, &m.SenderID, &m.ReceiverID, &m.Body, &m.SentAt); err != nil {
			return nil, storeErr(err)
		}
		out = append(out, m)
	}
	return out, storeErr(rows.Err())
}

func (s *Store) DeleteMessagesByCrop(ctx context.Context, cropID string) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `delete from messages where crop_id=$1`, cropID)
	return storeErr(err)
}
