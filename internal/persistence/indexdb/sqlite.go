// Package indexdb keeps a queryable SQLite read-model of daily reports and
// saves. The day log and save slots stay the source of truth; the index drops
// writes rather than stall the simulation.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"citysim/internal/persistence/snapshot"
	"citysim/internal/sim/city"
)

type SQLiteIndex struct {
	db *sqlx.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropDay  atomic.Uint64
	dropSave atomic.Uint64
}

type reqKind int

const (
	reqDay reqKind = iota + 1
	reqSave
	reqFlush
)

type req struct {
	kind reqKind

	day  city.DayReport
	save SaveRow
	done chan struct{}
}

// DayRow is one daily report as stored.
type DayRow struct {
	City          string  `db:"city" json:"city"`
	Day           int     `db:"day" json:"day"`
	BudgetBefore  float64 `db:"budget_before" json:"budget_before"`
	BudgetAfter   float64 `db:"budget_after" json:"budget_after"`
	Upkeep        float64 `db:"upkeep" json:"upkeep"`
	CommercialTax float64 `db:"commercial_tax" json:"commercial_tax"`
	IndustrialTax float64 `db:"industrial_tax" json:"industrial_tax"`
	CitizenTax    float64 `db:"citizen_tax" json:"citizen_tax"`
	Expenses      float64 `db:"expenses" json:"expenses"`
	Population    int     `db:"population" json:"population"`
	Happiness     float64 `db:"happiness" json:"happiness"`
	Buildings     int     `db:"buildings" json:"buildings"`
	Operational   int     `db:"operational" json:"operational"`
	Digest        string  `db:"digest" json:"digest"`
}

// SaveRow records one write to a save slot.
type SaveRow struct {
	Slot       string  `db:"slot" json:"slot"`
	City       string  `db:"city" json:"city"`
	Day        int     `db:"day" json:"day"`
	SavedAt    string  `db:"saved_at" json:"saved_at"`
	Budget     float64 `db:"budget" json:"budget"`
	Buildings  int     `db:"buildings" json:"buildings"`
	RecordedAt string  `db:"recorded_at" json:"recorded_at"`
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropDayTotal  uint64
	DropSaveTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS days (
			city TEXT NOT NULL,
			day INTEGER NOT NULL,
			budget_before REAL NOT NULL,
			budget_after REAL NOT NULL,
			upkeep REAL NOT NULL,
			commercial_tax REAL NOT NULL,
			industrial_tax REAL NOT NULL,
			citizen_tax REAL NOT NULL,
			expenses REAL NOT NULL,
			population INTEGER NOT NULL,
			happiness REAL NOT NULL,
			buildings INTEGER NOT NULL,
			operational INTEGER NOT NULL,
			digest TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (city, day)
		);`,
		`CREATE TABLE IF NOT EXISTS saves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slot TEXT NOT NULL,
			city TEXT NOT NULL,
			day INTEGER NOT NULL,
			saved_at TEXT NOT NULL,
			budget REAL NOT NULL,
			buildings INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saves_slot ON saves(slot, id);`,
	}
	for _, st := range stmts {
		if _, err := db.Exec(st); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteDay queues a daily report. It satisfies city.DaySink and never blocks.
func (s *SQLiteIndex) WriteDay(r city.DayReport) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqDay, day: r}:
	default:
		s.dropDay.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSave(slot string, save snapshot.SaveV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := SaveRow{
		Slot:       slot,
		City:       save.Header.CityName,
		Day:        save.Day,
		SavedAt:    save.Header.SavedAt,
		Budget:     save.Budget,
		Buildings:  len(save.Buildings),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqSave, save: r}:
	default:
		s.dropSave.Add(1)
	}
}

// Flush waits until every queued write is committed or ctx is done.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropDayTotal:  s.dropDay.Load(),
		DropSaveTotal: s.dropSave.Load(),
	}
}

// RecentDays returns up to limit reports for cityName, newest first.
func (s *SQLiteIndex) RecentDays(ctx context.Context, cityName string, limit int) ([]DayRow, error) {
	if limit <= 0 {
		limit = 30
	}
	var rows []DayRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT city, day, budget_before, budget_after, upkeep, commercial_tax, industrial_tax,
		       citizen_tax, expenses, population, happiness, buildings, operational, digest
		FROM days WHERE city = ? ORDER BY day DESC LIMIT ?`, cityName, limit)
	return rows, err
}

// SaveHistory returns up to limit recorded saves of slot, newest first.
func (s *SQLiteIndex) SaveHistory(ctx context.Context, slot string, limit int) ([]SaveRow, error) {
	if limit <= 0 {
		limit = 30
	}
	var rows []SaveRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT slot, city, day, saved_at, budget, buildings, recorded_at
		FROM saves WHERE slot = ? ORDER BY id DESC LIMIT ?`, slot, limit)
	return rows, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertDay, _ := s.db.Prepare(`INSERT OR REPLACE INTO days(city,day,budget_before,budget_after,upkeep,commercial_tax,industrial_tax,citizen_tax,expenses,population,happiness,buildings,operational,digest,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSave, _ := s.db.Prepare(`INSERT INTO saves(slot,city,day,saved_at,budget,buildings,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertDay != nil {
			_ = insertDay.Close()
		}
		if insertSave != nil {
			_ = insertSave.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	idle := time.NewTicker(commitMaxWait)
	defer idle.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		case <-idle.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}

		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqDay:
			d := r.day
			raw, _ := json.Marshal(d)
			if insertDay != nil {
				if _, err := tx.Stmt(insertDay).Exec(
					d.City, d.Day,
					d.BudgetBefore, d.BudgetAfter,
					d.Upkeep, d.CommercialTax, d.IndustrialTax, d.CitizenTax, d.Expenses,
					d.Population, d.Happiness,
					d.Buildings, d.Operational,
					d.Digest,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSave:
			sv := r.save
			if insertSave != nil {
				if _, err := tx.Stmt(insertSave).Exec(
					sv.Slot, sv.City, sv.Day, sv.SavedAt, sv.Budget, sv.Buildings, sv.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
}
