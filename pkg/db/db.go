/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package db is the Postgres/Timescale storage layer for pulse.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

// pgxExecutor is satisfied by *pgxpool.Pool and pgx.Tx, so every store method
// runs unchanged inside or outside a transaction.
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DB is the storage handle shared by the api and worker processes.
type DB struct {
	executor pgxExecutor
	pgPool   *pgxpool.Pool
	logger   logger.Logger
}

// New dials the cluster, applies pending migrations and returns a ready DB.
func New(ctx context.Context, cfg *models.CNPGDatabase, log logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.NewTestLogger()
	}

	pool, err := NewCNPGPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	if err := RunMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrFailedToInit, err)
	}

	return NewWithPool(pool, log), nil
}

// NewWithPool wraps an existing pool without running migrations.
func NewWithPool(pool *pgxpool.Pool, log logger.Logger) *DB {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &DB{executor: pool, pgPool: pool, logger: log}
}

func (db *DB) Close() error {
	if db.pgPool != nil {
		db.pgPool.Close()
	}

	return nil
}

// Ping checks connectivity for readiness probes.
func (db *DB) Ping(ctx context.Context) error {
	if db.pgPool == nil {
		return ErrDatabaseNotInitialized
	}

	return db.pgPool.Ping(ctx)
}

// WithTx runs fn inside a transaction. The *DB handed to fn is bound to it;
// fn's error rolls everything back.
func (db *DB) WithTx(ctx context.Context, fn func(tx *DB) error) error {
	if db.executor == nil {
		return ErrDatabaseNotInitialized
	}

	return pgx.BeginFunc(ctx, db.executor, func(tx pgx.Tx) error {
		return fn(&DB{executor: tx, pgPool: db.pgPool, logger: db.logger})
	})
}

func (db *DB) sendBatch(ctx context.Context, batch *pgx.Batch, operation string) error {
	return sendBatchExecAll(ctx, batch, db.executor.SendBatch, operation)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
