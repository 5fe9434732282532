package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"harvestbid.org/internal/catalog"
	"harvestbid.org/internal/ids"
)

var _ catalog.Store = (*Store)(nil)

const cropColumns = `id, farmer_id, name, type, quality, quantity, price, images, location, notes,
	listed_at, status, sold, highest_bidder_id, winner_id, winner_contact, sold_price`

func (s *Store) CreateCrop(ctx context.Context, c *catalog.Crop) error {
	if c == nil || c.FarmerID == "" {
		return catalog.ErrInvalidInput
	}
	catalog.Normalize(c)
	if c.ID == "" {
		c.ID = ids.New()
	}
	images, err := json.Marshal(c.Images)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx(ctx)
	defer cancel()
	_, err = s.db.ExecContext(ctx, `
		insert into crops (`+cropColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, c.ID, c.FarmerID, c.Name, c.Type, c.Quality, c.Quantity, c.Price, images, c.Location, c.Notes,
		c.ListedAt, c.Status, c.Sold, c.HighestBidderID, c.WinnerID, c.WinnerContact, c.SoldPrice)
	return storeErr(err)
}

func (s *Store) GetCrop(ctx context.Context, id string) (catalog.Crop, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `select `+cropColumns+` from crops where id=$1`, id)
	return scanCrop(row)
}

func (s *Store) ListCrops(ctx context.Context) ([]catalog.Crop, error) {
	return s.listCrops(ctx, `select `+cropColumns+` from crops order by listed_at desc, id`)
}

func (s *Store) ListCropsByFarmer(ctx context.Context, farmerID string) ([]catalog.Crop, error) {
	return s.listCrops(ctx, `select `+cropColumns+` from crops where farmer_id=$1 order by listed_at desc, id`, farmerID)
}

func (s *Store) listCrops(ctx context.Context, query string, args ...any) ([]catalog.Crop, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []catalog.Crop
	for rows.Next() {
		c, err := scanCrop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, storeErr(rows.Err())
}

func (s *Store) UpdateCrop(ctx context.Context, id string, upd catalog.Update) (catalog.Crop, error) {
	var result catalog.Crop
	err := s.inTx(ctx, nil, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `select `+cropColumns+` from crops where id=$1 for update`, id)
		c, err := scanCrop(row)
		if err != nil {
			return err
		}
		applyCropUpdate(&c, upd)
		catalog.Normalize(&c)
		images, err := json.Marshal(c.Images)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			update crops set name=$2, type=$3, quality=$4, quantity=$5, price=$6,
				images=$7, location=$8, notes=$9
			where id=$1
		`, id, c.Name, c.Type, c.Quality, c.Quantity, c.Price, images, c.Location, c.Notes)
		if err != nil {
			return storeErr(err)
		}
		result = c
		return nil
	})
	return result, err
}

func (s *Store) SetCurrentPrice(ctx context.Context, id string, price int64, bidderID string) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `
		update crops set price=$2, highest_bidder_id=$3 where id=$1
	`, id, price, bidderID)
	if err != nil {
		return storeErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (s *Store) CloseCrop(ctx context.Context, id, winnerID, winnerContact string, soldPrice int64) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `
		update crops
		set status=$2, sold=true, winner_id=$3, winner_contact=$4, sold_price=$5
		where id=$1 and status=$6
	`, id, catalog.StatusClosed, winnerID, winnerContact, soldPrice, catalog.StatusAvailable)
	if err != nil {
		return storeErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var status string
		err := s.db.QueryRowContext(ctx, `select status from crops where id=$1`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.ErrNotFound
		}
		if err != nil {
			return storeErr(err)
		}
		return catalog.ErrAlreadyClosed
	}
	return nil
}

func (s *Store) DeleteCrop(ctx context.Context, id string) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `delete from crops where id=$1`, id)
	if err != nil {
		return storeErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCrop(row rowScanner) (catalog.Crop, error) {
	var c catalog.Crop
	var images []byte
	err := row.Scan(&c.ID, &c.FarmerID, &c.Name, &c.Type, &c.Quality, &c.Quantity, &c.Price,
		&images, &c.Location, &c.Notes, &c.ListedAt, &c.Status, &c.Sold,
		&c.HighestBidderID, &c.WinnerID, &c.WinnerContact, &c.SoldPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Crop{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Crop{}, storeErr(err)
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &c.Images); err != nil {
			return catalog.Crop{}, err
		}
	}
	if len(c.Images) > 0 {
		c.Image = c.Images[0]
	}
	return c, nil
}

func applyCropUpdate(c *catalog.Crop, upd catalog.Update) {
	if upd.Name != nil {
		c.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Type != nil {
		c.Type = *upd.Type
	}
	if upd.Quality != nil {
		c.Quality = *upd.Quality
	}
	if upd.Quantity != nil {
		c.Quantity = *upd.Quantity
	}
	if upd.Price != nil {
		c.Price = *upd.Price
	}
	if upd.Images != nil {
		c.Images = append([]string(nil), upd.Images...)
	}
	if upd.Location != nil {
		c.Location = *upd.Location
	}
	if upd.Notes != nil {
		c.Notes = *upd.Notes
	}
}
