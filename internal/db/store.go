package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"nft-exchange/internal/model"
)

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Migrate(dir string) error {
	driver, err := postgres.WithInstance(s.DB, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.DB.BeginTx(ctx, nil)
}

// ── Users ────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, email, hash string, addr model.Address, signingKey string, role model.Role) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, address, signing_key, role) VALUES ($1,$2,$3,$4,$5)
		 RETURNING id, email, password_hash, address, signing_key, role, created_at`,
		email, hash, addr, signingKey, role,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Address, &u.SigningKey, &u.Role, &u.CreatedAt)
	return u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, address, signing_key, role, created_at FROM users WHERE email=$1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Address, &u.SigningKey, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, address, signing_key, role, created_at FROM users WHERE id=$1`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Address, &u.SigningKey, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Store) GetUserByAddress(ctx context.Context, addr model.Address) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, address, signing_key, role, created_at FROM users WHERE address=$1`, addr,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Address, &u.SigningKey, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, email, address, role, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Address, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// ── Wallets ──────────────────────────────────────────
//
// Balances are wei; numeric(78,0) holds a full uint256 and crosses the
// driver as a decimal string.

func (s *Store) CreateWallet(ctx context.Context, addr model.Address) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO wallets (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`, addr)
	return err
}

func (s *Store) GetWallet(ctx context.Context, addr model.Address) (*model.Wallet, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx,
		`SELECT balance_wei FROM wallets WHERE address=$1`, addr).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	bal, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("wallet %s: bad balance %q", addr, raw)
	}
	return &model.Wallet{Address: addr, Balance: bal}, nil
}

func GetWalletForUpdate(tx *sql.Tx, addr model.Address) (*model.Wallet, error) {
	var raw string
	err := tx.QueryRow(
		`SELECT balance_wei FROM wallets WHERE address=$1 FOR UPDATE`, addr).Scan(&raw)
	if err != nil {
		return nil, err
	}
	bal, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("wallet %s: bad balance %q", addr, raw)
	}
	return &model.Wallet{Address: addr, Balance: bal}, nil
}

// WalletAdd credits (or debits, for negative delta) a wallet, creating
// the row if needed.
func WalletAdd(tx *sql.Tx, addr model.Address, delta *big.Int) error {
	_, err := tx.Exec(
		`INSERT INTO wallets (address, balance_wei) VALUES ($1, $2::numeric)
		 ON CONFLICT (address) DO UPDATE SET balance_wei = wallets.balance_wei + $2::numeric`,
		addr, delta.String())
	return err
}

func (s *Store) Deposit(ctx context.Context, addr model.Address, amount *big.Int) (*model.Wallet, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO wallets (address, balance_wei) VALUES ($1, $2::numeric)
		 ON CONFLICT (address) DO UPDATE SET balance_wei = wallets.balance_wei + $2::numeric
		 RETURNING balance_wei`, addr, amount.String()).Scan(&raw)
	if err != nil {
		return nil, err
	}
	bal, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("wallet %s: bad balance %q", addr, raw)
	}
	return &model.Wallet{Address: addr, Balance: bal}, nil
}

// ── Collections ──────────────────────────────────────

type CollectionRow struct {
	Address   model.Address `json:"address"`
	Name      string        `json:"name"`
	Symbol    string        `json:"symbol"`
	CreatedAt time.Time     `json:"created_at"`
}

func (s *Store) InsertCollection(ctx context.Context, addr model.Address, name, symbol string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO collections (address, name, symbol) VALUES ($1,$2,$3)`, addr, name, symbol)
	return err
}

func (s *Store) ListCollections(ctx context.Context) ([]CollectionRow, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT address, name, symbol, created_at FROM collections ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CollectionRow
	for rows.Next() {
		var c CollectionRow
		if err := rows.Scan(&c.Address, &c.Name, &c.Symbol, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ── Event Log ────────────────────────────────────────

func AppendEvent(tx *sql.Tx, assetKey *string, evType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO event_log (asset_key, type, payload_json) VALUES ($1,$2,$3)`,
		assetKey, evType, b,
	)
	return err
}

func (s *Store) ListEvents(ctx context.Context, assetKey *string, limit int) ([]model.EventLog, error) {
	q := `SELECT id, asset_key, type, payload_json, created_at FROM event_log`
	var args []any
	if assetKey != nil {
		q += ` WHERE asset_key=$1`
		args = append(args, *assetKey)
	}
	q += ` ORDER BY id DESC LIMIT ` + fmt.Sprintf("%d", limit)
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.EventLog
	for rows.Next() {
		var e model.EventLog
		var raw []byte
		if err := rows.Scan(&e.ID, &e.AssetKey, &e.Type, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(raw, &e.Payload)
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) CountEvents(ctx context.Context, evType string) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_log WHERE type=$1`, evType).Scan(&n)
	return n, err
}
