// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/log"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

var logger = log.WithContext("pkg", "logdb")

const (
	insertLogQuery   = "INSERT OR REPLACE INTO log(seq, blockHash, blockTime, txHash, txIndex, accountID, serviceFlag, data) VALUES(?,?,?,?,?,?,?,?)"
	truncateLogQuery = "DELETE FROM log WHERE seq >= ?"
	selectLogQuery   = "SELECT seq, blockHash, blockTime, txHash, txIndex, accountID, serviceFlag, data FROM log"
)

// LogDB indexes receipt logs in sqlite.
type LogDB struct {
	path          string
	db            *sql.DB
	stmtCache     *stmtCache
	driverVersion string
}

// New create or open log db at given path.
func New(path string) (logDB *LogDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if logDB == nil {
			db.Close()
		}
	}()
	// a memory db lives in its only connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(logTableSchema); err != nil {
		return nil, errors.Wrap(err, "create schema")
	}

	driverVer, _, _ := sqlite3.Version()
	logger.Debug("log db opened", "path", path, "sqlite", driverVer)
	return &LogDB{
		path:          path,
		db:            db,
		stmtCache:     newStmtCache(db),
		driverVersion: driverVer,
	}, nil
}

// NewMem create a log db in ram.
func NewMem() (*LogDB, error) {
	return New(":memory:")
}

// Close close the log db.
func (db *LogDB) Close() error {
	db.stmtCache.Clear()
	return db.db.Close()
}

// Path returns the database path.
func (db *LogDB) Path() string {
	return db.path
}

// FilterLogs returns the logs matching filter.
func (db *LogDB) FilterLogs(ctx context.Context, filter *LogFilter) ([]*Log, error) {
	if filter == nil {
		return db.queryLogs(ctx, selectLogQuery+" ORDER BY seq ASC")
	}
	metricsHandleLogFilter(filter)

	var (
		args []any
		cond []string
	)
	if filter.Range != nil {
		cond = append(cond, "seq >= ?")
		args = append(args, newSequence(min(filter.Range.From, maxBlockNumber), 0))
		if filter.Range.To >= filter.Range.From {
			cond = append(cond, "seq <= ?")
			args = append(args, newSequence(min(filter.Range.To, maxBlockNumber), maxIndex))
		}
	}
	if filter.TxHash != nil {
		cond = append(cond, "txHash = ?")
		args = append(args, filter.TxHash.Bytes())
	}
	if len(filter.CriteriaSet) > 0 {
		var or []string
		for _, c := range filter.CriteriaSet {
			and := []string{"1"}
			if c.AccountID != nil {
				and = append(and, "accountID = ?")
				args = append(args, *c.AccountID)
			}
			if c.ServiceFlag != nil {
				and = append(and, "serviceFlag = ?")
				args = append(args, *c.ServiceFlag)
			}
			or = append(or, "("+strings.Join(and, " AND ")+")")
		}
		cond = append(cond, "("+strings.Join(or, " OR ")+")")
	}

	stmt := selectLogQuery
	if len(cond) > 0 {
		stmt += " WHERE " + strings.Join(cond, " AND ")
	}
	if filter.Order == DESC {
		stmt += " ORDER BY seq DESC"
	} else {
		stmt += " ORDER BY seq ASC"
	}
	if filter.Options != nil {
		stmt += " LIMIT ?, ?"
		args = append(args, filter.Options.Offset, filter.Options.Limit)
	}
	return db.queryLogs(ctx, stmt, args...)
}

const (
	maxBlockNumber = 1<<32 - 1
	maxIndex       = 1<<31 - 1
)

func (db *LogDB) queryLogs(ctx context.Context, query string, args ...any) ([]*Log, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*Log
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			seq       sequence
			blockHash []byte
			txHash    []byte
			l         Log
		)
		if err := rows.Scan(
			&seq,
			&blockHash,
			&l.BlockTime,
			&txHash,
			&l.TxIndex,
			&l.AccountID,
			&l.ServiceFlag,
			&l.Data,
		); err != nil {
			return nil, err
		}
		l.BlockNumber, l.Index = seq.BlockNumber(), seq.Index()
		l.BlockHash = gw.BytesToBytes32(blockHash)
		l.TxHash = gw.BytesToBytes32(txHash)
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// NewestBlockHash returns the hash of the newest block with logs written, zero if none.
func (db *LogDB) NewestBlockHash() (gw.Bytes32, error) {
	var hash []byte
	err := db.db.QueryRow("SELECT blockHash FROM log ORDER BY seq DESC LIMIT 1").Scan(&hash)
	if err == sql.ErrNoRows {
		return gw.Bytes32{}, nil
	}
	if err != nil {
		return gw.Bytes32{}, err
	}
	return gw.BytesToBytes32(hash), nil
}

// HasBlockHash reports whether logs of the block were written.
func (db *LogDB) HasBlockHash(hash gw.Bytes32) (bool, error) {
	var count int
	if err := db.db.QueryRow("SELECT COUNT(1) FROM log WHERE blockHash = ? LIMIT 1", hash.Bytes()).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// NewWriter creates a log writer.
func (db *LogDB) NewWriter() (*Writer, error) {
	// statements are prepared ahead, the writer's transaction holds the connection
	for _, query := range []string{insertLogQuery, truncateLogQuery} {
		if _, err := db.stmtCache.Prepare(query); err != nil {
			return nil, err
		}
	}
	return &Writer{db: db}, nil
}

// Writer writes logs of blocks in a sql transaction.
type Writer struct {
	db  *LogDB
	tx  *sql.Tx
	len int
}

func (w *Writer) exec(query string, args ...any) error {
	stmt, err := w.db.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	if w.tx == nil {
		if w.tx, err = w.db.db.Begin(); err != nil {
			return err
		}
	}
	_, err = w.tx.Stmt(stmt).Exec(args...)
	return err
}

// Write writes all logs of the block. receipts are in transaction order.
func (w *Writer) Write(b *block.Block, receipts tx.Receipts) error {
	txs := b.Transactions()
	if len(receipts) != len(txs) {
		return errors.Errorf("%d receipts for %d txs", len(receipts), len(txs))
	}
	header := b.Header()
	var index uint32
	for i, r := range receipts {
		for _, l := range r.Logs {
			entry := newLog(header, index, txs[i].Hash(), uint32(i), l)
			if err := w.exec(insertLogQuery,
				newSequence(entry.BlockNumber, entry.Index),
				entry.BlockHash.Bytes(),
				entry.BlockTime,
				entry.TxHash.Bytes(),
				entry.TxIndex,
				entry.AccountID,
				entry.ServiceFlag,
				entry.Data,
			); err != nil {
				return errors.Wrap(err, "insert log")
			}
			index++
			w.len++
		}
	}
	return nil
}

// Truncate deletes the logs of blocks from blockNum on, e.g. reverted blocks.
func (w *Writer) Truncate(blockNum uint64) error {
	if blockNum > maxBlockNumber {
		return nil
	}
	if err := w.exec(truncateLogQuery, newSequence(blockNum, 0)); err != nil {
		return errors.Wrap(err, "truncate")
	}
	w.len++
	return nil
}

// Commit commits the written logs.
func (w *Writer) Commit() error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Commit()
	w.tx, w.len = nil, 0
	if err != nil {
		return errors.Wrap(err, "commit logs")
	}
	metricWrittenLogs().Add(1)
	return nil
}

// Rollback drops the uncommitted logs.
func (w *Writer) Rollback() error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Rollback()
	w.tx, w.len = nil, 0
	return err
}

// UncommittedCount returns the count of uncommitted writes.
func (w *Writer) UncommittedCount() int {
	return w.len
}

func (w *Writer) String() string {
	return fmt.Sprintf("logdb writer(%v, %d uncommitted)", w.db.path, w.len)
}
