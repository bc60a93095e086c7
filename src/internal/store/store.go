// Package store 保存审计历史和用户反馈，支持 sqlite、mysql、postgres
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

	"github.com/google/uuid"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

// ErrNotFound 报告不存在
var ErrNotFound = errors.New("report not found")

// Store 审计历史存储。
// 每次保存生成新的历史 id，报告 id 可以重复（模型可能返回相同的 id）。
// Get 和 SaveFeedback 接受历史 id 或报告 id，报告 id 对应最新的一条。
type Store interface {
	Save(ctx context.Context, report *internal.AuditReport, verdict internal.Verdict) (string, error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
	SaveFeedback(ctx context.Context, id string, fb Feedback) error
	Close() error
}

// Record 一条历史记录
type Record struct {
	ID       string               `json:"id"`
	Report   internal.AuditReport `json:"report"`
	Verdict  internal.Verdict     `json:"verdict"`
	Feedback []Feedback           `json:"feedback,omitempty"`
}

// Feedback 用户对审计结果的评价
type Feedback struct {
	Accepted  bool   `json:"accepted"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// SQLStore 基于 database/sql 的实现，driver 决定占位符风格
type SQLStore struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

const defaultListLimit = 20

// NewSQLStore 包装已打开的连接并建表
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	s := &SQLStore{db: db, driver: driver, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	text := "TEXT"
	if s.driver == "mysql" {
		text = "LONGTEXT"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_history (
			id VARCHAR(64) PRIMARY KEY,
			report_id VARCHAR(255) NOT NULL,
			saved_at BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			source VARCHAR(16) NOT NULL,
			score INTEGER NOT NULL,
			approved INTEGER NOT NULL,
			verdict VARCHAR(16) NOT NULL,
			code_hash VARCHAR(66),
			payload ` + text + ` NOT NULL
		)`,
		`CREATE INDEX idx_audit_history_report ON audit_history (report_id)`,
		`CREATE TABLE IF NOT EXISTS audit_history_feedback (
			history_id VARCHAR(64) NOT NULL,
			accepted INTEGER NOT NULL,
			comment ` + text + `,
			created_at BIGINT NOT NULL
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			if strings.HasPrefix(q, "CREATE INDEX") && isDuplicateIndex(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// isDuplicateIndex mysql 不支持 CREATE INDEX IF NOT EXISTS，重复建索引的错误在这里忽略
func isDuplicateIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate key name")
}

// rebind 把 ? 占位符转换为 postgres 的 $n
func (s *SQLStore) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// Save 写入一份报告，返回新生成的历史 id
func (s *SQLStore) Save(ctx context.Context, report *internal.AuditReport, verdict internal.Verdict) (string, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encode report %s: %w", report.ID, err)
	}
	approved := 0
	if report.IsApproved {
		approved = 1
	}

	id := uuid.NewString()
	q := s.rebind(`INSERT INTO audit_history (id, report_id, saved_at, created_at, source, score, approved, verdict, code_hash, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, q, id, report.ID, s.now().UnixNano(), report.Timestamp, string(report.Source),
		report.Score, approved, string(verdict), report.CodeHash, string(payload))
	if err != nil {
		return "", fmt.Errorf("save report %s: %w", report.ID, err)
	}
	return id, nil
}

// resolve 把历史 id 或报告 id 转换为历史 id
func (s *SQLStore) resolve(ctx context.Context, id string) (string, error) {
	var historyID string
	q := s.rebind(`SELECT id FROM audit_history WHERE id = ? OR report_id = ?
		ORDER BY CASE WHEN id = ? THEN 0 ELSE 1 END, saved_at DESC LIMIT 1`)
	err := s.db.QueryRowContext(ctx, q, id, id, id).Scan(&historyID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("lookup report %s: %w", id, err)
	}
	return historyID, nil
}

// Get 读取报告及其反馈
func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	historyID, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	var payload, verdict string
	q := s.rebind(`SELECT payload, verdict FROM audit_history WHERE id = ?`)
	if err := s.db.QueryRowContext(ctx, q, historyID).Scan(&payload, &verdict); err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}

	rec := &Record{ID: historyID, Verdict: internal.Verdict(verdict)}
	if err := json.Unmarshal([]byte(payload), &rec.Report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}

	fb, err := s.feedback(ctx, historyID)
	if err != nil {
		return nil, err
	}
	rec.Feedback = fb
	return rec, nil
}

func (s *SQLStore) feedback(ctx context.Context, id string) ([]Feedback, error) {
	q := s.rebind(`SELECT accepted, comment, created_at FROM audit_history_feedback WHERE history_id = ? ORDER BY created_at`)
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("query feedback %s: %w", id, err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var (
			accepted int
			comment  sql.NullString
			fb       Feedback
		)
		if err := rows.Scan(&accepted, &comment, &fb.CreatedAt); err != nil {
			return nil, err
		}
		fb.Accepted = accepted != 0
		fb.Comment = comment.String
		out = append(out, fb)
	}
	return out, rows.Err()
}

// List 按时间倒序返回最近的报告，limit<=0 时取默认值
func (s *SQLStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	q := s.rebind(`SELECT id, payload, verdict FROM audit_history ORDER BY created_at DESC, saved_at DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var id, payload, verdict string
		if err := rows.Scan(&id, &payload, &verdict); err != nil {
			return nil, err
		}
		rec := Record{ID: id, Verdict: internal.Verdict(verdict)}
		if err := json.Unmarshal([]byte(payload), &rec.Report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveFeedback 记录反馈，报告不存在时返回 ErrNotFound
func (s *SQLStore) SaveFeedback(ctx context.Context, id string, fb Feedback) error {
	historyID, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}

	if fb.CreatedAt == 0 {
		fb.CreatedAt = s.now().UnixMilli()
	}
	accepted := 0
	if fb.Accepted {
		accepted = 1
	}
	q := s.rebind(`INSERT INTO audit_history_feedback (history_id, accepted, comment, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, historyID, accepted, fb.Comment, fb.CreatedAt); err != nil {
		return fmt.Errorf("save feedback %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
