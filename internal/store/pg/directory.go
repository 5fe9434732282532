package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"harvestbid.org/internal/directory"
	"harvestbid.org/internal/ids"
)

var _ directory.Store = (*Store)(nil)

const userColumns = `id, username, email, password_hash, role, contact`

func (s *Store) CreateUser(ctx context.Context, u *directory.User) error {
	if u == nil || strings.TrimSpace(u.Email) == "" || strings.TrimSpace(u.Username) == "" {
		return directory.ErrInvalidInput
	}
	ctx, cancel := opCtx(ctx)
	defer cancel()
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := s.db.ExecContext(ctx, `
		insert into users (`+userColumns+`) values ($1,$2,$3,$4,$5,$6)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.Contact)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return directory.ErrAlreadyExists
		}
		return storeErr(err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (directory.User, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	return s.scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id))
}

func (s *Store) UserByEmail(ctx context.Context, email string) (directory.User, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	email = strings.ToLower(strings.TrimSpace(email))
	return s.scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email=$1`, email))
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd directory.Update) (directory.User, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	var out directory.User
	err := s.inTx(ctx, nil, func(tx *sql.Tx) error {
		u, err := s.scanUser(tx.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1 for update`, id))
		if err != nil {
			return err
		}
		if upd.Username != nil {
			if strings.TrimSpace(*upd.Username) == "" {
				return directory.ErrInvalidInput
			}
			u.Username = strings.TrimSpace(*upd.Username)
		}
		if upd.Contact != nil {
			u.Contact = strings.TrimSpace(*upd.Contact)
		}
		if upd.Password != nil {
			u.PasswordHash = *upd.Password
		}
		if _, err := tx.ExecContext(ctx, `
			update users set username=$2, password_hash=$3, contact=$4 where id=$1
		`, id, u.Username, u.PasswordHash, u.Contact); err != nil {
			return storeErr(err)
		}
		out = u
		return nil
	})
	if err != nil {
		return directory.User{}, err
	}
	return out, nil
}

func (s *Store) scanUser(row *sql.Row) (directory.User, error) {
	var u directory.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Contact)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.User{}, storeErr(err)
	}
	return u, nil
}
