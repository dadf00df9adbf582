package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jyllandteodosio/taskaru/internal/model"
)

// PostgresListRepo はPostgreSQLを使用したリストリポジトリ。
// コラボレーター集合はlist_collaboratorsテーブルで管理し、
// 集合の変更は単一の条件付きステートメントでアトミックに行う。
type PostgresListRepo struct {
	db *sql.DB
}

// NewPostgresListRepo はPostgresListRepoを生成する。
func NewPostgresListRepo(db *sql.DB) *PostgresListRepo {
	return &PostgresListRepo{db: db}
}

// FindByIDForUser は指定ユーザーがコラボレーターであるリストを取得する。
// 存在しない、またはアクセス権がない場合はnilを返す。
func (r *PostgresListRepo) FindByIDForUser(ctx context.Context, listID, userID string) (*model.List, error) {
	list := &model.List{}
	err := r.db.QueryRowContext(ctx,
		`SELECT l.id, l.title, l.description, l.owner_id, l.created_at, l.updated_at
		 FROM lists l
		 JOIN list_collaborators lc ON lc.list_id = l.id
		 WHERE l.id = $1 AND lc.user_id = $2`,
		listID, userID,
	).Scan(&list.ID, &list.Title, &list.Description, &list.OwnerID, &list.CreatedAt, &list.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find list: %w", err)
	}

	if err := r.loadCollaborators(ctx, list); err != nil {
		return nil, err
	}

	return list, nil
}

// ListByCollaborator は指定ユーザーがアクセスできるリスト一覧を
// 作成日時の降順で返す。コラボレーター集合も同じクエリで取得する。
func (r *PostgresListRepo) ListByCollaborator(ctx context.Context, userID string) ([]*model.List, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT l.id, l.title, l.description, l.owner_id, l.created_at, l.updated_at, members.user_id
		 FROM lists l
		 JOIN list_collaborators lc ON lc.list_id = l.id AND lc.user_id = $1
		 JOIN list_collaborators members ON members.list_id = l.id
		 ORDER BY l.created_at DESC, l.id, members.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	defer rows.Close()

	var lists []*model.List
	byID := make(map[string]*model.List)

	for rows.Next() {
		var (
			list         model.List
			collaborator string
		)
		if err := rows.Scan(&list.ID, &list.Title, &list.Description, &list.OwnerID, &list.CreatedAt, &list.UpdatedAt, &collaborator); err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}

		existing, ok := byID[list.ID]
		if !ok {
			l := list
			existing = &l
			byID[l.ID] = existing
			lists = append(lists, existing)
		}
		existing.Collaborators = append(existing.Collaborators, collaborator)
	}

	return lists, rows.Err()
}

// Create はリストとオーナーのコラボレーター行を同一トランザクションで作成する。
// オーナー ∈ コラボレーター集合の不変条件は作成時点から成立する。
func (r *PostgresListRepo) Create(ctx context.Context, list *model.List) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lists (id, title, description, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		list.ID, list.Title, list.Description, list.OwnerID, list.CreatedAt, list.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert list: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO list_collaborators (list_id, user_id, created_at)
		 VALUES ($1, $2, $3)`,
		list.ID, list.OwnerID, list.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert owner collaborator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	list.Collaborators = []string{list.OwnerID}
	return nil
}

// Update はコラボレーターのみが実行できる条件付き更新を行う。
// nilフィールドは変更しない。権限がない場合はnilを返す。
func (r *PostgresListRepo) Update(ctx context.Context, listID, userID string, patch ListPatch) (*model.List, error) {
	list := &model.List{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE lists l
		 SET title       = COALESCE($3, l.title),
		     description = COALESCE($4, l.description),
		     updated_at  = $5
		 FROM list_collaborators lc
		 WHERE l.id = $1 AND lc.list_id = l.id AND lc.user_id = $2
		 RETURNING l.id, l.title, l.description, l.owner_id, l.created_at, l.updated_at`,
		listID, userID, patch.Title, patch.Description, time.Now(),
	).Scan(&list.ID, &list.Title, &list.Description, &list.OwnerID, &list.CreatedAt, &list.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update list: %w", err)
	}

	if err := r.loadCollaborators(ctx, list); err != nil {
		return nil, err
	}

	return list, nil
}

// Delete はオーナーのみが実行できる削除を行う。所属タスクとコラボレーター
// 行は同一トランザクションで削除される。権限がない場合はnilを返す。
func (r *PostgresListRepo) Delete(ctx context.Context, listID, ownerID string) (*model.List, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	list := &model.List{}
	err = tx.QueryRowContext(ctx,
		`SELECT id, title, description, owner_id, created_at, updated_at
		 FROM lists
		 WHERE id = $1 AND owner_id = $2`,
		listID, ownerID,
	).Scan(&list.ID, &list.Title, &list.Description, &list.OwnerID, &list.CreatedAt, &list.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find list for delete: %w", err)
	}

	// タスクとコラボレーター行はスキーマのCASCADEでも消えるが、
	// 削除の責務を明示するためトランザクション内で先に消す
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE list_id = $1`, listID); err != nil {
		return nil, fmt.Errorf("failed to delete list tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM list_collaborators WHERE list_id = $1`, listID); err != nil {
		return nil, fmt.Errorf("failed to delete list collaborators: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE id = $1`, listID); err != nil {
		return nil, fmt.Errorf("failed to delete list: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return list, nil
}

// AddCollaborator はコラボレーターを条件付きで追加する。
// オーナーによる呼び出しでなければ何も挿入されない。既に存在する場合は
// ON CONFLICT DO NOTHINGにより冪等で、falseを返す。
func (r *PostgresListRepo) AddCollaborator(ctx context.Context, listID, collaboratorID, ownerID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO list_collaborators (list_id, user_id)
		 SELECT l.id, $2 FROM lists l
		 WHERE l.id = $1 AND l.owner_id = $3
		 ON CONFLICT (list_id, user_id) DO NOTHING`,
		listID, collaboratorID, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add collaborator: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// RemoveCollaborator はコラボレーターを条件付きで削除する。
// オーナーによる呼び出しでなければ削除されず、オーナー自身の行は
// この経路では削除できない。
func (r *PostgresListRepo) RemoveCollaborator(ctx context.Context, listID, collaboratorID, ownerID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM list_collaborators lc
		 USING lists l
		 WHERE lc.list_id = l.id
		   AND lc.list_id = $1
		   AND lc.user_id = $2
		   AND l.owner_id = $3
		   AND lc.user_id != l.owner_id`,
		listID, collaboratorID, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove collaborator: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// loadCollaborators はリストのコラボレーター集合を読み込む。
func (r *PostgresListRepo) loadCollaborators(ctx context.Context, list *model.List) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM list_collaborators WHERE list_id = $1 ORDER BY created_at`,
		list.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load collaborators: %w", err)
	}
	defer rows.Close()

	list.Collaborators = nil
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return fmt.Errorf("failed to scan collaborator: %w", err)
		}
		list.Collaborators = append(list.Collaborators, userID)
	}

	return rows.Err()
}

// compile-time interface check
var _ ListRepository = (*PostgresListRepo)(nil)
