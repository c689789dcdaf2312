package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

type caseRow struct {
	ID           int64     `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	Methods      string    `db:"methods"`
	Results      string    `db:"results"`
	Conclusions  string    `db:"conclusions"`
	Author       string    `db:"author"`
	Date         time.Time `db:"date"`
	Tags         string    `db:"tags"`
	Likes        int       `db:"likes"`
	CommentCount int       `db:"comment_count"`
}

type imageRow struct {
	CaseID    int64  `db:"case_id"`
	ImagePath string `db:"image_path"`
}

type commentRow struct {
	ID       int64          `db:"id"`
	CaseID   int64          `db:"case_id"`
	UserID   sql.NullInt64  `db:"user_id"`
	Content  string         `db:"content"`
	Date     time.Time      `db:"date"`
	Username sql.NullString `db:"username"`
}

type CaseStore struct {
	db *sqlx.DB
}

func NewCaseStore(db *sqlx.DB) *CaseStore {
	return &CaseStore{db: db}
}

func (s *CaseStore) CreateCase(ctx context.Context, c *domain.CaseStudy) error {
	query := s.db.Rebind(`
INSERT INTO cases (title, description, methods, results, conclusions, author, date, tags, likes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`)

	var id int64
	err := s.db.QueryRowxContext(ctx, query,
		c.Title, c.Description, c.Methods, c.Results, c.Conclusions, c.Author, c.Date, encodeTags(c.Tags), c.Likes,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	c.ID = id
	return nil
}

func (s *CaseStore) AddImage(ctx context.Context, caseID int64, path string) error {
	if err := s.ensureCase(ctx, caseID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO case_images (case_id, image_path) VALUES (?, ?)`), caseID, path); err != nil {
		return fmt.Errorf("insert case image: %w", err)
	}
	return nil
}

func (s *CaseStore) AddComment(ctx context.Context, comment *domain.CaseComment) error {
	if err := s.ensureCase(ctx, comment.CaseID); err != nil {
		return err
	}
	query := s.db.Rebind(`
INSERT INTO case_comments (case_id, user_id, content, date)
VALUES (?, ?, ?, ?)
RETURNING id`)

	var id int64
	userID := sql.NullInt64{Int64: comment.UserID, Valid: comment.UserID > 0}
	if err := s.db.QueryRowxContext(ctx, query, comment.CaseID, userID, comment.Content, comment.Date).Scan(&id); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	comment.ID = id
	return nil
}

func (s *CaseStore) Like(ctx context.Context, caseID int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE cases SET likes = likes + 1 WHERE id = ?`), caseID)
	if err != nil {
		return fmt.Errorf("like case: %w", err)
	}
	return ensureAffected(res, "like case", fmt.Sprintf("case id=%d", caseID))
}

// ListCases matches a case when any requested tag is among its tags.
func (s *CaseStore) ListCases(ctx context.Context, filter domain.CaseFilter) ([]domain.CaseStudy, error) {
	var (
		where []string
		args  []any
	)
	for _, tag := range filter.Tags {
		where = append(where, `c.tags LIKE ?`)
		args = append(args, "%,"+tag+",%")
	}

	query := `
SELECT c.id, c.title, c.description, c.methods, c.results, c.conclusions, c.author, c.date, c.tags, c.likes,
	(SELECT COUNT(*) FROM case_comments cc WHERE cc.case_id = c.id) AS comment_count
FROM cases c`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " OR ")
	}
	if filter.Sort == domain.CaseSortLikes {
		query += "\nORDER BY c.likes DESC, c.date DESC, c.id DESC"
	} else {
		query += "\nORDER BY c.date DESC, c.id DESC"
	}
	query += "\nLIMIT ?"
	args = append(args, filter.Limit)

	var rows []caseRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select cases: %w", err)
	}
	if len(rows) == 0 {
		return []domain.CaseStudy{}, nil
	}

	images, err := s.imagesFor(ctx, rows)
	if err != nil {
		return nil, err
	}

	cases := make([]domain.CaseStudy, 0, len(rows))
	for _, row := range rows {
		paths := images[row.ID]
		if paths == nil {
			paths = []string{}
		}
		cases = append(cases, domain.CaseStudy{
			ID:           row.ID,
			Title:        row.Title,
			Description:  row.Description,
			Methods:      row.Methods,
			Results:      row.Results,
			Conclusions:  row.Conclusions,
			Author:       row.Author,
			Date:         row.Date,
			Tags:         decodeTags(row.Tags),
			Likes:        row.Likes,
			Images:       paths,
			CommentCount: row.CommentCount,
		})
	}
	return cases, nil
}

func (s *CaseStore) imagesFor(ctx context.Context, rows []caseRow) (map[int64][]string, error) {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	query, args, err := sqlx.In(`SELECT case_id, image_path FROM case_images WHERE case_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("build image query: %w", err)
	}

	var images []imageRow
	if err := s.db.SelectContext(ctx, &images, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select case images: %w", err)
	}
	out := make(map[int64][]string, len(rows))
	for _, img := range images {
		out[img.CaseID] = append(out[img.CaseID], img.ImagePath)
	}
	return out, nil
}

func (s *CaseStore) ListComments(ctx context.Context, caseID int64) ([]domain.CaseComment, error) {
	query := s.db.Rebind(`
SELECT cc.id, cc.case_id, cc.user_id, cc.content, cc.date, u.username
FROM case_comments cc
LEFT JOIN users u ON u.id = cc.user_id
WHERE cc.case_id = ?
ORDER BY cc.date DESC, cc.id DESC`)

	var rows []commentRow
	if err := s.db.SelectContext(ctx, &rows, query, caseID); err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}
	comments := make([]domain.CaseComment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, domain.CaseComment{
			ID:       row.ID,
			CaseID:   row.CaseID,
			UserID:   row.UserID.Int64,
			Content:  row.Content,
			Date:     row.Date,
			Username: row.Username.String,
		})
	}
	return comments, nil
}

func (s *CaseStore) ensureCase(ctx context.Context, caseID int64) error {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM cases WHERE id = ?`), caseID); err != nil {
		return fmt.Errorf("check case: %w", err)
	}
	if n == 0 {
		return domain.WrapError(domain.ErrNotFound, "check case", fmt.Errorf("case id=%d", caseID))
	}
	return nil
}

// encodeTags wraps the list in commas so LIKE '%,tag,%' matches whole tags only.
func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return "," + strings.Join(tags, ",") + ","
}

func decodeTags(raw string) []string {
	out := []string{}
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
