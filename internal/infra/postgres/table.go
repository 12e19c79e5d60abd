package postgres

import (
	"context"
	"fmt"
	"strings"

	"church-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type scanFunc func(dest ...interface{}) error

// rowCodec maps one record kind to a table. Every table also carries a
// serial row_id that fixes record order and addresses rows for updates.
type rowCodec[T any] struct {
	table   string
	columns []string
	values  func(T) []interface{}
	// scan reads lead followed by the codec columns.
	scan func(scan scanFunc, lead ...interface{}) (T, error)
}

// Table implements app.Table over one Postgres table. Read-modify-write
// cycles run in a transaction holding row locks on the whole table.
type Table[T any] struct {
	pool  *pgxpool.Pool
	codec rowCodec[T]
}

func newTable[T any](pool *pgxpool.Pool, c rowCodec[T]) *Table[T] {
	return &Table[T]{pool: pool, codec: c}
}

func (t *Table[T]) Load(ctx context.Context) ([]T, error) {
	rows, err := t.pool.Query(ctx, t.selectSQL(false))
	if err != nil {
		return nil, t.fail("load", err)
	}
	defer rows.Close()

	recs := make([]T, 0)
	for rows.Next() {
		rec, err := t.codec.scan(rows.Scan)
		if err != nil {
			return nil, t.fail("load", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, t.fail("load", err)
	}
	return recs, nil
}

func (t *Table[T]) Append(ctx context.Context, rec T) error {
	if _, err := t.pool.Exec(ctx, t.insertSQL(), t.codec.values(rec)...); err != nil {
		return t.fail("append", err)
	}
	return nil
}

func (t *Table[T]) UpdateWhere(ctx context.Context, match func(int, T) bool, mutate func(*T)) (int, error) {
	n := 0
	err := t.inTx(ctx, func(tx pgx.Tx) error {
		ids, recs, err := t.lockAll(ctx, tx)
		if err != nil {
			return err
		}
		for i := range recs {
			if !match(i, recs[i]) {
				continue
			}
			mutate(&recs[i])
			args := append(t.codec.values(recs[i]), ids[i])
			if _, err := tx.Exec(ctx, t.updateSQL(), args...); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, t.fail("update", err)
	}
	return n, nil
}

func (t *Table[T]) DeleteWhere(ctx context.Context, match func(int, T) bool) (int, error) {
	var doomed []int64
	err := t.inTx(ctx, func(tx pgx.Tx) error {
		ids, recs, err := t.lockAll(ctx, tx)
		if err != nil {
			return err
		}
		for i, rec := range recs {
			if match(i, rec) {
				doomed = append(doomed, ids[i])
			}
		}
		if len(doomed) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE row_id = ANY($1)`, t.codec.table), doomed)
		return err
	})
	if err != nil {
		return 0, t.fail("delete", err)
	}
	return len(doomed), nil
}

func (t *Table[T]) ReplaceAll(ctx context.Context, recs []T) error {
	err := t.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, t.codec.table)); err != nil {
			return err
		}
		rows := make([][]interface{}, len(recs))
		for i, rec := range recs {
			rows[i] = t.codec.values(rec)
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{t.codec.table}, t.codec.columns, pgx.CopyFromRows(rows))
		return err
	})
	if err != nil {
		return t.fail("replace", err)
	}
	return nil
}

func (t *Table[T]) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (t *Table[T]) lockAll(ctx context.Context, tx pgx.Tx) ([]int64, []T, error) {
	rows, err := tx.Query(ctx, t.selectSQL(true))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		ids  []int64
		recs []T
	)
	for rows.Next() {
		var id int64
		rec, err := t.codec.scan(rows.Scan, &id)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		recs = append(recs, rec)
	}
	return ids, recs, rows.Err()
}

func (t *Table[T]) selectSQL(forUpdate bool) string {
	cols := strings.Join(t.codec.columns, ", ")
	if forUpdate {
		return fmt.Sprintf(`SELECT row_id, %s FROM %s ORDER BY row_id FOR UPDATE`, cols, t.codec.table)
	}
	return fmt.Sprintf(`SELECT %s FROM %s ORDER BY row_id`, cols, t.codec.table)
}

func (t *Table[T]) insertSQL() string {
	marks := make([]string, len(t.codec.columns))
	for i := range marks {
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		t.codec.table, strings.Join(t.codec.columns, ", "), strings.Join(marks, ", "))
}

func (t *Table[T]) updateSQL() string {
	sets := make([]string, len(t.codec.columns))
	for i, col := range t.codec.columns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	return fmt.Sprintf(`UPDATE %s SET %s WHERE row_id = $%d`,
		t.codec.table, strings.Join(sets, ", "), len(t.codec.columns)+1)
}

func (t *Table[T]) fail(op string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", domain.ErrStorageUnavailable, op, t.codec.table, err)
}
