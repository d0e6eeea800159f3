package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"whois/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresDirectoryRepository 目录存储的PostgreSQL实现
type PostgresDirectoryRepository struct {
	db    *sql.DB
	newID func() string
}

// NewPostgresDirectoryRepository 创建目录Repository
func NewPostgresDirectoryRepository(db *sql.DB) *PostgresDirectoryRepository {
	return &PostgresDirectoryRepository{db: db, newID: uuid.NewString}
}

// 确保实现了接口
var _ DirectoryRepository = (*PostgresDirectoryRepository)(nil)

// 列名只来自下面的白名单，不拼接外部输入
var scalarColumns = map[domain.Scalar]string{
	domain.ScalarSurname: "surname",
	domain.ScalarTitle:   "title",
}

type setTables struct {
	link   string // 关联表
	pool   string // 共享池表
	column string
}

var pooledSets = map[domain.Relation]setTables{
	domain.RelationPhone: {link: "user_phone", pool: "phone", column: "phone_number"},
	domain.RelationEmail: {link: "user_email", pool: "email", column: "email_address"},
}

type referenceTables struct {
	table  string
	id     string
	column string
}

var references = map[domain.ReferenceKind]referenceTables{
	domain.ReferencePosition: {table: "position", id: "position_id", column: "position_name"},
	domain.ReferenceLocation: {table: "location", id: "location_id", column: "location_description"},
}

// IsUniqueViolation 是否为唯一约束冲突（23505）
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// FindPersonID 登录名对应的人员；存在多条绑定时取 user_id 最小的一条
func (r *PostgresDirectoryRepository) FindPersonID(ctx context.Context, login string) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM user_login WHERE login_id = $1 ORDER BY user_id LIMIT 1`,
		login,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to query user_login: %w", err)
	}
	return userID, nil
}

// EnsurePerson 查找或创建人员
// 先锁住 login_account 行，同一登录名的并发首次写入只会创建一个人员；与 DeleteLogin 互斥
func (r *PostgresDirectoryRepository) EnsurePerson(ctx context.Context, login string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 插入或更新同一行，都会在本事务内持有该行的行锁
	var locked string
	if err = tx.QueryRowContext(ctx,
		`INSERT INTO login_account (login_id) VALUES ($1)
		 ON CONFLICT (login_id) DO UPDATE SET login_id = EXCLUDED.login_id
		 RETURNING login_id`,
		login,
	).Scan(&locked); err != nil {
		return "", fmt.Errorf("failed to upsert login_account: %w", err)
	}

	var userID string
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM user_login WHERE login_id = $1 ORDER BY user_id LIMIT 1`,
		login,
	).Scan(&userID)
	switch {
	case err == nil:
		if err = tx.Commit(); err != nil {
			return "", fmt.Errorf("failed to commit transaction: %w", err)
		}
		return userID, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("failed to query user_login: %w", err)
	}

	userID = r.newID()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO comp_user (user_id, surname, title, location_id) VALUES ($1, NULL, NULL, NULL)`,
		userID,
	); err != nil {
		return "", fmt.Errorf("failed to insert comp_user: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO user_login (user_id, login_id) VALUES ($1, $2)`,
		userID, login,
	); err != nil {
		return "", fmt.Errorf("failed to insert user_login: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return userID, nil
}

// ReadScalar 读取 comp_user 上的可空列
func (r *PostgresDirectoryRepository) ReadScalar(ctx context.Context, personID string, s domain.Scalar) (*string, error) {
	column, ok := scalarColumns[s]
	if !ok {
		return nil, fmt.Errorf("unsupported scalar %v", s)
	}

	var v sql.NullString
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM comp_user WHERE user_id = $1`, column),
		personID,
	).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("person %s: %w", personID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query comp_user.%s: %w", column, err)
	}
	return nullString(v), nil
}

// WriteScalar 覆盖 comp_user 上的列，value 为 nil 时写入 NULL
func (r *PostgresDirectoryRepository) WriteScalar(ctx context.Context, personID string, s domain.Scalar, value *string) error {
	column, ok := scalarColumns[s]
	if !ok {
		return fmt.Errorf("unsupported scalar %v", s)
	}

	var arg sql.NullString
	if value != nil {
		arg = sql.NullString{String: *value, Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE comp_user SET %s = $1 WHERE user_id = $2`, column),
		arg, personID,
	)
	if err != nil {
		return fmt.Errorf("failed to update comp_user.%s: %w", column, err)
	}
	return requireAffected(res, personID)
}

// ReadForenames 按 forename_order 读取名
func (r *PostgresDirectoryRepository) ReadForenames(ctx context.Context, personID string) ([]string, error) {
	return r.queryStrings(ctx,
		`SELECT forename FROM user_forename WHERE user_id = $1 ORDER BY forename_order`,
		personID,
	)
}

// ReplaceForenames 整体替换名，序号从 1 开始
func (r *PostgresDirectoryRepository) ReplaceForenames(ctx context.Context, personID string, names []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM user_forename WHERE user_id = $1`, personID); err != nil {
		return fmt.Errorf("failed to delete user_forename: %w", err)
	}
	for i, name := range names {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO user_forename (user_id, forename_order, forename) VALUES ($1, $2, $3)`,
			personID, i+1, name,
		); err != nil {
			return fmt.Errorf("failed to insert user_forename: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReadSet 读取多值关联
func (r *PostgresDirectoryRepository) ReadSet(ctx context.Context, personID string, rel domain.Relation) ([]string, error) {
	if rel == domain.RelationPosition {
		return r.queryStrings(ctx,
			`SELECT p.position_name
			 FROM user_position up
			 JOIN position p ON up.position_id = p.position_id
			 WHERE up.user_id = $1
			 ORDER BY p.position_name`,
			personID,
		)
	}

	t, ok := pooledSets[rel]
	if !ok {
		return nil, fmt.Errorf("unsupported relation %v", rel)
	}
	return r.queryStrings(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 ORDER BY %s`, t.column, t.link, t.column),
		personID,
	)
}

// ReplaceSet 整体替换电话/邮箱：先删除旧关联，新值写入共享池（已存在则跳过）后再关联
func (r *PostgresDirectoryRepository) ReplaceSet(ctx context.Context, personID string, rel domain.Relation, values []string) error {
	t, ok := pooledSets[rel]
	if !ok {
		return fmt.Errorf("relation %v is not a pooled set", rel)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, t.link),
		personID,
	); err != nil {
		return fmt.Errorf("failed to delete %s: %w", t.link, err)
	}

	for _, v := range dedupe(values) {
		if _, err = tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1) ON CONFLICT (%s) DO NOTHING`, t.pool, t.column, t.column),
			v,
		); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", t.pool, err)
		}
		if _, err = tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (user_id, %s) VALUES ($1, $2)`, t.link, t.column),
			personID, v,
		); err != nil {
			return fmt.Errorf("failed to insert %s: %w", t.link, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetOrCreateReference 按名称精确匹配查找共享引用值，不存在则插入
// 并发插入同名值时由唯一约束兜底：ON CONFLICT 未返回行则重新查询
func (r *PostgresDirectoryRepository) GetOrCreateReference(ctx context.Context, kind domain.ReferenceKind, name string) (int64, error) {
	t, ok := references[kind]
	if !ok {
		return 0, fmt.Errorf("unsupported reference kind %v", kind)
	}
	selectQuery := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, t.id, t.table, t.column)

	var id int64
	err := r.db.QueryRowContext(ctx, selectQuery, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to query %s: %w", t.table, err)
	}

	err = r.db.QueryRowContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1) ON CONFLICT (%s) DO NOTHING RETURNING %s`,
			t.table, t.column, t.column, t.id),
		name,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to insert %s: %w", t.table, err)
	}

	// 另一个事务刚插入了同名值
	if err = r.db.QueryRowContext(ctx, selectQuery, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to query %s after conflict: %w", t.table, err)
	}
	return id, nil
}

// ReplacePositions 整体替换职位关联
func (r *PostgresDirectoryRepository) ReplacePositions(ctx context.Context, personID string, positionIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM user_position WHERE user_id = $1`, personID); err != nil {
		return fmt.Errorf("failed to delete user_position: %w", err)
	}
	seen := map[int64]struct{}{}
	for _, id := range positionIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO user_position (user_id, position_id) VALUES ($1, $2)`,
			personID, id,
		); err != nil {
			return fmt.Errorf("failed to insert user_position: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReadLocation 读取人员所在地点描述
func (r *PostgresDirectoryRepository) ReadLocation(ctx context.Context, personID string) (*string, error) {
	var v sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT l.location_description
		 FROM comp_user c
		 LEFT JOIN location l ON c.location_id = l.location_id
		 WHERE c.user_id = $1`,
		personID,
	).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("person %s: %w", personID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query location: %w", err)
	}
	return nullString(v), nil
}

// AssignLocation 设置人员地点；旧的 location 行保留
func (r *PostgresDirectoryRepository) AssignLocation(ctx context.Context, personID string, locationID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE comp_user SET location_id = $1 WHERE user_id = $2`,
		locationID, personID,
	)
	if err != nil {
		return fmt.Errorf("failed to update comp_user.location_id: %w", err)
	}
	return requireAffected(res, personID)
}

// DeleteLogin 在一个事务内删除登录名登记、对应人员及其全部关联
// 先删除 login_account 行并持有行锁，与 EnsurePerson 互斥
func (r *PostgresDirectoryRepository) DeleteLogin(ctx context.Context, login string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM login_account WHERE login_id = $1`, login); err != nil {
		return false, fmt.Errorf("failed to delete login_account: %w", err)
	}

	var userID string
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM user_login WHERE login_id = $1 ORDER BY user_id LIMIT 1`,
		login,
	).Scan(&userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err = tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to query user_login: %w", err)
	}

	// 删除顺序：关联表 -> user_login -> comp_user（外键）
	for _, table := range []string{"user_email", "user_phone", "user_position", "user_forename", "user_login", "comp_user"} {
		if _, err = tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, table),
			userID,
		); err != nil {
			return false, fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

func (r *PostgresDirectoryRepository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

func requireAffected(res sql.Result, personID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("person %s: %w", personID, ErrNotFound)
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
