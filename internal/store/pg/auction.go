package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"harvestbid.org/internal/auction"
	"harvestbid.org/internal/catalog"
)

var _ auction.Store = (*Store)(nil)

func (s *Store) CurrentBid(ctx context.Context, cropID string) (auction.Bid, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	var b auction.Bid
	err := s.db.QueryRowContext(ctx, `
		select bid_id, crop_id, bidder_id, bidder_contact, price, placed_at
		from current_bids where crop_id=$1
	`, cropID).Scan(&b.ID, &b.CropID, &b.BidderID, &b.BidderContact, &b.Price, &b.PlacedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auction.Bid{}, auction.ErrNoBids
	}
	if err != nil {
		return auction.Bid{}, storeErr(err)
	}
	return b, nil
}

// RecordBid performs the compare-and-set under the crop's row lock so the
// "strictly greater than current" check always sees a linearizable view.
func (s *Store) RecordBid(ctx context.Context, b auction.Bid) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `select status from crops where id=$1 for update`, b.CropID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return auction.ErrNotFound
		}
		if err != nil {
			return storeErr(err)
		}
		if status != catalog.StatusAvailable {
			return auction.ErrAuctionClosed
		}

		var current int64
		err = tx.QueryRowContext(ctx, `select price from current_bids where crop_id=$1 for update`, b.CropID).Scan(&current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// First bid on the crop.
		case err != nil:
			return storeErr(err)
		case b.Price <= current:
			return &auction.BidTooLowError{Current: current}
		}

		if _, err := tx.ExecContext(ctx, `
			insert into current_bids (crop_id, bid_id, bidder_id, bidder_contact, price, placed_at)
			values ($1,$2,$3,$4,$5,$6)
			on conflict (crop_id) do update
			set bid_id=excluded.bid_id, bidder_id=excluded.bidder_id,
				bidder_contact=excluded.bidder_contact, price=excluded.price,
				placed_at=excluded.placed_at
		`, b.CropID, b.ID, b.BidderID, b.BidderContact, b.Price, b.PlacedAt); err != nil {
			return storeErr(err)
		}
		if _, err := tx.ExecContext(ctx, `
			insert into bid_history (id, crop_id, bidder_id, bidder_contact, price, placed_at)
			values ($1,$2,$3,$4,$5,$6)
		`, b.ID, b.CropID, b.BidderID, b.BidderContact, b.Price, b.PlacedAt); err != nil {
			return storeErr(err)
		}
		if _, err := tx.ExecContext(ctx, `
			update crops set price=$2, highest_bidder_id=$3 where id=$1
		`, b.CropID, b.Price, b.BidderID); err != nil {
			return storeErr(err)
		}
		return nil
	})
}

func (s *Store) BidHistory(ctx context.Context, cropID string) ([]auction.Bid, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		select id, crop_id, bidder_id, bidder_contact, price, placed_at
		from bid_history
		where crop_id=$1
		order by price desc, placed_at asc
	`, cropID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []auction.Bid
	for rows.Next() {
		var b auction.Bid
		if err := rows.Scan(&b.ID, &b.CropID, &b.BidderID, &b.BidderContact, &b.Price, &b.PlacedAt); err != nil {
			return nil, storeErr(err)
		}
		out = append(out, b)
	}
	return out, storeErr(rows.Err())
}

func (s *Store) Outcome(ctx context.Context, cropID string) (auction.Outcome, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	var o auction.Outcome
	err := s.db.QueryRowContext(ctx, `
		select crop_id, winner_id, price, decided_at from outcomes where crop_id=$1
	`, cropID).Scan(&o.CropID, &o.WinnerID, &o.Price, &o.DecidedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auction.Outcome{}, auction.ErrNotFound
	}
	if err != nil {
		return auction.Outcome{}, storeErr(err)
	}
	return o, nil
}

// CommitClose runs the whole Available->Closed transition in one transaction:
// winner from the current bid, outcome row, crop winner fields, won-crop
// entry. A concurrent or repeated close finds the outcome row and backs off.
func (s *Store) CommitClose(ctx context.Context, cropID string, decidedAt time.Time) (auction.Outcome, bool, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	var out auction.Outcome
	created := false
	err := s.inTx(ctx, nil, func(tx *sql.Tx) error {
		var status, farmerID string
		err := tx.QueryRowContext(ctx, `select status, farmer_id from crops where id=$1 for update`, cropID).
			Scan(&status, &farmerID)
		if errors.Is(err, sql.ErrNoRows) {
			return auction.ErrNotFound
		}
		if err != nil {
			return storeErr(err)
		}

		err = tx.QueryRowContext(ctx, `
			select crop_id, winner_id, price, decided_at from outcomes where crop_id=$1
		`, cropID).Scan(&out.CropID, &out.WinnerID, &out.Price, &out.DecidedAt)
		if err == nil {
			return nil // already closed; keep the recorded outcome
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return storeErr(err)
		}

		var cur auction.Bid
		err = tx.QueryRowContext(ctx, `
			select bidder_id, bidder_contact, price from current_bids where crop_id=$1
		`, cropID).Scan(&cur.BidderID, &cur.BidderContact, &cur.Price)
		if errors.Is(err, sql.ErrNoRows) {
			return auction.ErrNoBids
		}
		if err != nil {
			return storeErr(err)
		}

		out = auction.Outcome{CropID: cropID, WinnerID: cur.BidderID, Price: cur.Price, DecidedAt: decidedAt}
		if _, err := tx.ExecContext(ctx, `
			insert into outcomes (crop_id, winner_id, price, decided_at) values ($1,$2,$3,$4)
		`, out.CropID, out.WinnerID, out.Price, out.DecidedAt); err != nil {
			return storeErr(err)
		}
		if status == catalog.StatusAvailable {
			if _, err := tx.ExecContext(ctx, `
				update crops
				set status=$2, sold=true, winner_id=$3, winner_contact=$4, sold_price=$5
				where id=$1
			`, cropID, catalog.StatusClosed, cur.BidderID, cur.BidderContact, cur.Price); err != nil {
				return storeErr(err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			insert into won_crops (bidder_id, crop_id, farmer_id, price, won_at)
			values ($1,$2,$3,$4,$5)
			on conflict (bidder_id, crop_id) do update set price=excluded.price, won_at=excluded.won_at
		`, cur.BidderID, cropID, farmerID, cur.Price, decidedAt); err != nil {
			return storeErr(err)
		}
		created = true
		return nil
	})
	if err != nil {
		return auction.Outcome{}, false, err
	}
	return out, created, nil
}

func (s *Store) UpsertWin(ctx context.Context, w auction.Win) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		insert into won_crops (bidder_id, crop_id, farmer_id, price, won_at)
		values ($1,$2,$3,$4,$5)
		on conflict (bidder_id, crop_id) do update set price=excluded.price, won_at=excluded.won_at
	`, w.BidderID, w.CropID, w.FarmerID, w.Price, w.WonAt)
	return storeErr(err)
}

func (s *Store) WinsByBidder(ctx context.Context, bidderID string) ([]auction.Win, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		select bidder_id, crop_id, farmer_id, price, won_at
		from won_crops where bidder_id=$1 order by won_at desc
	`, bidderID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []auction.Win
	for rows.Next() {
		var w auction.Win
		if err := rows.Scan(&w.BidderID, &w.CropID, &w.FarmerID, &w.Price, &w.WonAt); err != nil {
			return nil, storeErr(err)
		}
		out = append(out, w)
	}
	return out, storeErr(rows.Err())
}

func (s *Store) DeleteWin(ctx context.Context, bidderID, cropID string) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `
		delete from won_crops where bidder_id=$1 and crop_id=$2
	`, bidderID, cropID)
	if err != nil {
		return storeErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auction.ErrNotFound
	}
	return nil
}

// DeleteCropCascade removes the crop and all dependent records in one
// transaction; a partial cascade can never commit.
func (s *Store) DeleteCropCascade(ctx context.Context, cropID string) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		for _, q := range []string{
			`delete from messages where crop_id=$1`,
			`delete from won_crops where crop_id=$1`,
			`delete from outcomes where crop_id=$1`,
			`delete from bid_history where crop_id=$1`,
			`delete from current_bids where crop_id=$1`,
		} {
			if _, err := tx.ExecContext(ctx, q, cropID); err != nil {
				return storeErr(err)
			}
		}
		res, err := tx.ExecContext(ctx, `delete from crops where id=$1`, cropID)
		if err != nil {
			return storeErr(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return auction.ErrNotFound
		}
		return nil
	})
}
