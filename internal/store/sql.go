package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/form4"
	"github.com/bighogz/insider-trades/internal/models"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

const timeLayout = time.RFC3339

// SQLStore implements Store over database/sql for sqlite and postgres.
// Queries are written with ? placeholders and rebound for postgres.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	log     *zap.Logger
	closers []func()
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error {
	err := s.db.Close()
	for _, c := range s.closers {
		c()
	}
	return err
}

func (s *SQLStore) q(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) exists(ctx context.Context, db queryer, query string, args ...any) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, s.q(query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLStore) CompanyExists(ctx context.Context, cik string) (bool, error) {
	ok, err := s.exists(ctx, s.db, `SELECT 1 FROM companies WHERE cik = ?`, cik)
	if err != nil {
		return false, fmt.Errorf("store: company exists %s: %w", cik, err)
	}
	return ok, nil
}

func (s *SQLStore) UpsertCompany(ctx context.Context, c models.Company) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO companies (cik, name, ticker) VALUES (?, ?, ?)
		ON CONFLICT (cik) DO UPDATE SET name = excluded.name, ticker = excluded.ticker`),
		c.CIK, c.Name, nullString(c.Ticker))
	if err != nil {
		return fmt.Errorf("store: upsert company %s: %w", c.CIK, err)
	}
	return nil
}

func (s *SQLStore) InsiderExists(ctx context.Context, cik string) (bool, error) {
	ok, err := s.exists(ctx, s.db, `SELECT 1 FROM execs WHERE cik = ?`, cik)
	if err != nil {
		return false, fmt.Errorf("store: insider exists %s: %w", cik, err)
	}
	return ok, nil
}

func (s *SQLStore) GetInsider(ctx context.Context, cik string) (*models.Insider, error) {
	var (
		in         models.Insider
		numTrades  sql.NullInt64
		numCorrect sql.NullInt64
		ret        sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT cik, name, num_trades, num_correct, ninety_day_return FROM execs WHERE cik = ?`), cik).
		Scan(&in.CIK, &in.Name, &numTrades, &numCorrect, &ret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get insider %s: %w", cik, err)
	}
	in.NumTrades = int(numTrades.Int64)
	in.NumCorrect = int(numCorrect.Int64)
	in.NinetyDayReturn = floatPtr(ret)
	return &in, nil
}

func (s *SQLStore) UpsertInsider(ctx context.Context, in models.Insider) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO execs (cik, name, num_trades, num_correct, ninety_day_return) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (cik) DO UPDATE SET
			name = excluded.name,
			num_trades = excluded.num_trades,
			num_correct = excluded.num_correct,
			ninety_day_return = excluded.ninety_day_return`),
		in.CIK, in.Name, in.NumTrades, in.NumCorrect, nullFloat(in.NinetyDayReturn))
	if err != nil {
		return fmt.Errorf("store: upsert insider %s: %w", in.CIK, err)
	}
	return nil
}

func (s *SQLStore) UpsertInsiderName(ctx context.Context, cik, name string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO execs (cik, name, num_trades, num_correct) VALUES (?, ?, 0, 0)
		ON CONFLICT (cik) DO UPDATE SET name = excluded.name`), cik, name)
	if err != nil {
		return fmt.Errorf("store: upsert insider name %s: %w", cik, err)
	}
	return nil
}

func (s *SQLStore) UpdateInsiderStats(ctx context.Context, cik string, numTrades, numCorrect int, ninetyDayReturn *float64) (*models.Insider, error) {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO execs (cik, name, num_trades, num_correct, ninety_day_return) VALUES (?, '', ?, ?, ?)
		ON CONFLICT (cik) DO UPDATE SET
			num_trades = excluded.num_trades,
			num_correct = excluded.num_correct,
			ninety_day_return = excluded.ninety_day_return`),
		cik, numTrades, numCorrect, nullFloat(ninetyDayReturn))
	if err != nil {
		return nil, fmt.Errorf("store: update insider stats %s: %w", cik, err)
	}
	return s.GetInsider(ctx, cik)
}

func (s *SQLStore) DeleteInsider(ctx context.Context, cik string) (bool, error) {
	return s.deleteOne(ctx, "insider", `DELETE FROM execs WHERE cik = ?`, cik)
}

func (s *SQLStore) deleteOne(ctx context.Context, what, query string, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(query), key)
	if err != nil {
		return false, fmt.Errorf("store: delete %s %s: %w", what, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: delete %s %s: %w", what, key, err)
	}
	return n > 0, nil
}

func (s *SQLStore) FilingExists(ctx context.Context, id string) (bool, error) {
	ok, err := s.exists(ctx, s.db, `SELECT 1 FROM filings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("store: filing exists %s: %w", id, err)
	}
	return ok, nil
}

const transactionColumns = `id, filing_id, transaction_type, date, security_type, code,
	num_shares, share_price, num_shares_after, acquired_disposed_code,
	direct_or_indirect_ownership, footnotes, execution_date, exercise_price,
	exercise_date, expiration_date, underlying_security_type, underlying_security_num_shares`

const transactionPlaceholders = `(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertFiling writes the filing row and, only when that row is new, all of
// its transactions, in one database transaction. Transactions of a filing
// that already exists are never written, even if an earlier run lost them.
func (s *SQLStore) InsertFiling(ctx context.Context, f *models.Filing) (InsertResult, error) {
	var res InsertResult
	footnotes, err := json.Marshal(nonNil(f.Footnotes))
	if err != nil {
		return res, fmt.Errorf("store: insert filing %s: %w", f.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("store: insert filing %s: begin: %w", f.ID, err)
	}
	defer tx.Rollback()

	r, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO filings (id, company, filing_date, filed_at_utc, owner_name, owner_cik,
			is_director, is_officer, is_ten_percent_owner, is_other, owner_title, footnotes, url, prices_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`),
		f.ID, f.Company.CIK, f.FilingDate.Format(form4.FilingTimeLayout), f.FilingDate.UTC().Format(timeLayout),
		f.OwnerName, f.OwnerCIK, f.IsDirector, f.IsOfficer, f.IsTenPercentOwner, f.IsOther,
		nullString(f.OwnerTitle), string(footnotes), f.URL, nullInt(f.PricesID))
	if err != nil {
		return res, fmt.Errorf("store: insert filing %s: %w", f.ID, err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("store: insert filing %s: %w", f.ID, err)
	}
	if n == 0 {
		return res, tx.Commit()
	}
	res.Inserted = true

	txs := f.Transactions()
	if len(txs) > 0 {
		rows := make([]string, 0, len(txs))
		args := make([]any, 0, len(txs)*18)
		for _, t := range txs {
			row := t.Row()
			notes, err := json.Marshal(nonNil(row.Footnotes))
			if err != nil {
				return res, fmt.Errorf("store: insert transaction %s: %w", row.ID, err)
			}
			rows = append(rows, transactionPlaceholders)
			args = append(args,
				row.ID, row.FilingID, string(row.Kind), nullTime(row.Date), nullString(row.SecurityType), nullString(row.Code),
				nullFloat(row.NumShares), nullFloat(row.SharePrice), nullFloat(row.NumSharesAfter), nullString(row.AcquiredDisposedCode),
				nullString(row.DirectOrIndirectOwnership), string(notes), nullTime(row.ExecutionDate), nullFloat(row.ExercisePrice),
				nullTime(row.ExerciseDate), nullTime(row.ExpirationDate), nullString(row.UnderlyingSecurityType), nullFloat(row.UnderlyingSecurityNumShares))
		}
		query := `INSERT INTO transactions (` + transactionColumns + `) VALUES ` +
			strings.Join(rows, ", ") + ` ON CONFLICT (filing_id, id) DO NOTHING`
		r, err := tx.ExecContext(ctx, s.q(query), args...)
		if err != nil {
			return res, fmt.Errorf("store: insert transactions for %s: %w", f.ID, err)
		}
		written, err := r.RowsAffected()
		if err != nil {
			return res, fmt.Errorf("store: insert transactions for %s: %w", f.ID, err)
		}
		res.Transactions = int(written)
		res.Collisions = len(txs) - int(written)
	}
	if err := tx.Commit(); err != nil {
		return InsertResult{}, fmt.Errorf("store: insert filing %s: commit: %w", f.ID, err)
	}
	if res.Collisions > 0 {
		s.log.Warn("transaction id collision within filing",
			zap.String("filing_id", f.ID), zap.Int("dropped", res.Collisions))
	}
	return res, nil
}

func (s *SQLStore) GetFiling(ctx context.Context, id string) (*models.Filing, error) {
	var (
		f          models.Filing
		filingDate string
		ticker     sql.NullString
		title      sql.NullString
		notes      string
		pricesID   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT f.id, c.cik, c.name, c.ticker, f.filing_date, f.owner_name, f.owner_cik,
			f.is_director, f.is_officer, f.is_ten_percent_owner, f.is_other,
			f.owner_title, f.footnotes, f.url, f.prices_id
		FROM filings f JOIN companies c ON c.cik = f.company
		WHERE f.id = ?`), id).
		Scan(&f.ID, &f.Company.CIK, &f.Company.Name, &ticker, &filingDate, &f.OwnerName, &f.OwnerCIK,
			&f.IsDirector, &f.IsOfficer, &f.IsTenPercentOwner, &f.IsOther,
			&title, &notes, &f.URL, &pricesID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get filing %s: %w", id, err)
	}
	f.Company.Ticker = stringPtr(ticker)
	f.OwnerTitle = stringPtr(title)
	if pricesID.Valid {
		f.PricesID = &pricesID.Int64
	}
	if f.FilingDate, err = time.Parse(time.RFC3339, filingDate); err != nil {
		return nil, fmt.Errorf("store: get filing %s: filing_date: %w", id, err)
	}
	if err := json.Unmarshal([]byte(notes), &f.Footnotes); err != nil {
		return nil, fmt.Errorf("store: get filing %s: footnotes: %w", id, err)
	}

	f.NonDerivative, f.Derivative = []models.Transaction{}, []models.Transaction{}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+transactionColumns+` FROM transactions WHERE filing_id = ? ORDER BY id`), id)
	if err != nil {
		return nil, fmt.Errorf("store: get transactions %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("store: get transactions %s: %w", id, err)
		}
		if t.Kind == models.KindDerivative {
			f.Derivative = append(f.Derivative, t)
		} else {
			f.NonDerivative = append(f.NonDerivative, t)
		}
	}
	return &f, rows.Err()
}

func scanTransaction(rows *sql.Rows) (models.Transaction, error) {
	var t models.Transaction
	var kind, notes string
	var date, secType, code, ad, di, execDate, exDate, expDate, underType sql.NullString
	var shares, price, after, exPrice, underShares sql.NullFloat64
	if err := rows.Scan(&t.ID, &t.FilingID, &kind, &date, &secType, &code,
		&shares, &price, &after, &ad, &di, &notes, &execDate, &exPrice,
		&exDate, &expDate, &underType, &underShares); err != nil {
		return t, err
	}
	t.Kind = models.TransactionKind(kind)
	t.Date = timePtr(date)
	t.SecurityType = stringPtr(secType)
	t.Code = stringPtr(code)
	t.NumShares = floatPtr(shares)
	t.SharePrice = floatPtr(price)
	t.NumSharesAfter = floatPtr(after)
	t.AcquiredDisposedCode = stringPtr(ad)
	t.DirectOrIndirectOwnership = stringPtr(di)
	if err := json.Unmarshal([]byte(notes), &t.Footnotes); err != nil {
		return t, err
	}
	if t.Kind == models.KindDerivative {
		t.Derivative = &models.DerivativeDetail{
			ExercisePrice:               floatPtr(exPrice),
			ExerciseDate:                timePtr(exDate),
			ExpirationDate:              timePtr(expDate),
			UnderlyingSecurityType:      stringPtr(underType),
			UnderlyingSecurityNumShares: floatPtr(underShares),
		}
	} else {
		t.NonDerivative = &models.NonDerivativeDetail{ExecutionDate: timePtr(execDate)}
	}
	return t, nil
}

// DeleteFiling removes a filing and its transactions.
func (s *SQLStore) DeleteFiling(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: delete filing %s: %w", id, err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM transactions WHERE filing_id = ?`), id); err != nil {
		return false, fmt.Errorf("store: delete filing %s: transactions: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM filings WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("store: delete filing %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: delete filing %s: %w", id, err)
	}
	return n > 0, tx.Commit()
}

func (s *SQLStore) SetFilingPrices(ctx context.Context, filingID string, pricesID int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE filings SET prices_id = ? WHERE id = ?`), pricesID, filingID)
	if err != nil {
		return fmt.Errorf("store: set filing prices %s: %w", filingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: set filing prices %s: %w", filingID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FilingsEligibleForPricing lists filings filed before the cutoff that have
// no prices yet and whose issuer has a ticker, oldest first.
func (s *SQLStore) FilingsEligibleForPricing(ctx context.Context, before time.Time) ([]models.PricingCandidate, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT f.id, f.owner_cik, c.ticker, f.filing_date
		FROM filings f JOIN companies c ON c.cik = f.company
		WHERE f.prices_id IS NULL AND c.ticker IS NOT NULL AND c.ticker <> '' AND f.filed_at_utc < ?
		ORDER BY f.filed_at_utc, f.id`), before.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("store: eligible filings: %w", err)
	}
	defer rows.Close()
	var out []models.PricingCandidate
	for rows.Next() {
		var (
			c  models.PricingCandidate
			fd string
		)
		if err := rows.Scan(&c.FilingID, &c.OwnerCIK, &c.Ticker, &fd); err != nil {
			return nil, fmt.Errorf("store: eligible filings: %w", err)
		}
		if c.FilingDate, err = time.Parse(time.RFC3339, fd); err != nil {
			return nil, fmt.Errorf("store: eligible filings: filing_date %q: %w", fd, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TransactionExists is keyed by filing as well because transaction ids alone
// collide across filings. InsertFiling does not consult it.
func (s *SQLStore) TransactionExists(ctx context.Context, filingID, id string) (bool, error) {
	ok, err := s.exists(ctx, s.db, `SELECT 1 FROM transactions WHERE filing_id = ? AND id = ?`, filingID, id)
	if err != nil {
		return false, fmt.Errorf("store: transaction exists %s: %w", id, err)
	}
	return ok, nil
}

func (s *SQLStore) ErrorURLExists(ctx context.Context, url string) (bool, error) {
	ok, err := s.exists(ctx, s.db, `SELECT 1 FROM error_urls WHERE url = ?`, url)
	if err != nil {
		return false, fmt.Errorf("store: error url exists: %w", err)
	}
	return ok, nil
}

// InsertErrorURL records e.URL once; it reports whether a row was added.
func (s *SQLStore) InsertErrorURL(ctx context.Context, e models.ErrorURL) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO error_urls (url, filed_at, created_at) VALUES (?, ?, ?) ON CONFLICT (url) DO NOTHING`),
		e.URL, nullTime(e.FiledAt), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return false, fmt.Errorf("store: insert error url %s: %w", e.URL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: insert error url %s: %w", e.URL, err)
	}
	return n > 0, nil
}

func (s *SQLStore) DeleteErrorURL(ctx context.Context, url string) (bool, error) {
	return s.deleteOne(ctx, "error url", `DELETE FROM error_urls WHERE url = ?`, url)
}

func (s *SQLStore) ListErrorURLs(ctx context.Context) ([]models.ErrorURL, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url, filed_at, created_at FROM error_urls ORDER BY created_at, url`)
	if err != nil {
		return nil, fmt.Errorf("store: list error urls: %w", err)
	}
	defer rows.Close()
	var out []models.ErrorURL
	for rows.Next() {
		var (
			e     models.ErrorURL
			filed sql.NullString
			at    string
		)
		if err := rows.Scan(&e.URL, &filed, &at); err != nil {
			return nil, fmt.Errorf("store: list error urls: %w", err)
		}
		e.FiledAt = timePtr(filed)
		e.CreatedAt, _ = time.Parse(timeLayout, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertPrices(ctx context.Context, filingID string, p models.StockPrices) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO prices (filing_id, open, ninety_day, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		filingID, nullFloat(p.Open), nullFloat(p.NinetyDay), time.Now().UTC().Format(timeLayout)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: insert prices %s: %w", filingID, err)
	}
	return id, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeLayout)
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func timePtr(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
