package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jyllandteodosio/taskaru/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// FindByID は指定リスト内のタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, taskID, listID string) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, list_id, title, description, completed, created_by, position, created_at, updated_at
		 FROM tasks
		 WHERE id = $1 AND list_id = $2`,
		taskID, listID,
	).Scan(&task.ID, &task.ListID, &task.Title, &task.Description, &task.Completed,
		&task.CreatedBy, &task.Position, &task.CreatedAt, &task.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

// ListByListID はリストのタスク一覧をposition昇順で返す。
func (r *PostgresTaskRepo) ListByListID(ctx context.Context, listID string) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, list_id, title, description, completed, created_by, position, created_at, updated_at
		 FROM tasks
		 WHERE list_id = $1
		 ORDER BY position`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task := &model.Task{}
		if err := rows.Scan(&task.ID, &task.ListID, &task.Title, &task.Description, &task.Completed,
			&task.CreatedBy, &task.Position, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// Create はタスクを作成する。positionはリスト内の最大値+1（空なら0）。
// 同一リストへの並行挿入でpositionが重複しないよう、リストIDをキーにした
// アドバイザリロックを同一トランザクション内で取得してから採番する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// リスト単位の排他。トランザクション終了時に自動解放される
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, task.ListID,
	); err != nil {
		return fmt.Errorf("failed to acquire list lock: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO tasks (id, list_id, title, description, completed, created_by, position, created_at, updated_at)
		 SELECT $1, $2, $3, $4, FALSE, $5, COALESCE(MAX(position) + 1, 0), $6, $6
		 FROM tasks
		 WHERE list_id = $2
		 RETURNING position`,
		task.ID, task.ListID, task.Title, task.Description, task.CreatedBy, task.CreatedAt,
	).Scan(&task.Position)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	task.UpdatedAt = task.CreatedAt
	return nil
}

// Update は指定リスト内のタスクを部分更新し、更新後のタスクを返す。
// nilフィールドは変更しない。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) Update(ctx context.Context, taskID, listID string, patch TaskPatch) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE tasks
		 SET title       = COALESCE($3, title),
		     description = COALESCE($4, description),
		     completed   = COALESCE($5, completed),
		     updated_at  = $6
		 WHERE id = $1 AND list_id = $2
		 RETURNING id, list_id, title, description, completed, created_by, position, created_at, updated_at`,
		taskID, listID, patch.Title, patch.Description, patch.Completed, time.Now(),
	).Scan(&task.ID, &task.ListID, &task.Title, &task.Description, &task.Completed,
		&task.CreatedBy, &task.Position, &task.CreatedAt, &task.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// Delete は指定リスト内のタスクを削除し、削除したタスクを返す。
// 残りのタスクのpositionは振り直さない。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) Delete(ctx context.Context, taskID, listID string) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM tasks
		 WHERE id = $1 AND list_id = $2
		 RETURNING id, list_id, title, description, completed, created_by, position, created_at, updated_at`,
		taskID, listID,
	).Scan(&task.ID, &task.ListID, &task.Title, &task.Description, &task.Completed,
		&task.CreatedBy, &task.Position, &task.CreatedAt, &task.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete task: %w", err)
	}

	return task, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
