package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

const (
	defaultCaseLimit = 10
	maxCaseLimit     = 100
)

type CaseBoardUseCase struct {
	store ports.CaseStore
	now   func() time.Time
}

func NewCaseBoardUseCase(store ports.CaseStore) *CaseBoardUseCase {
	return &CaseBoardUseCase{store: store, now: time.Now}
}

func (uc *CaseBoardUseCase) Publish(ctx context.Context, author domain.Identity, c domain.CaseStudy) (*domain.CaseStudy, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "publish case", errors.New("title is required"))
	}
	c.ID = 0
	c.Author = author.Username
	c.Date = uc.now().UTC()
	c.Tags = normalizeTags(c.Tags)
	c.Likes = 0
	c.Images = []string{}
	c.CommentCount = 0

	if err := uc.store.CreateCase(ctx, &c); err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}
	return &c, nil
}

func (uc *CaseBoardUseCase) AttachImage(ctx context.Context, caseID int64, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.WrapError(domain.ErrInvalidInput, "attach image", errors.New("image path is required"))
	}
	if err := uc.store.AddImage(ctx, caseID, path); err != nil {
		return fmt.Errorf("add case image: %w", err)
	}
	return nil
}

func (uc *CaseBoardUseCase) Comment(ctx context.Context, author domain.Identity, caseID int64, content string) (*domain.CaseComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "comment", errors.New("content is required"))
	}
	comment := &domain.CaseComment{
		CaseID:   caseID,
		UserID:   author.UserID,
		Content:  content,
		Date:     uc.now().UTC(),
		Username: author.Username,
	}
	if err := uc.store.AddComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return comment, nil
}

func (uc *CaseBoardUseCase) Like(ctx context.Context, caseID int64) error {
	if err := uc.store.Like(ctx, caseID); err != nil {
		return fmt.Errorf("like case: %w", err)
	}
	return nil
}

// List returns cases sorted by date or likes. A case matches when it carries any of
// the requested tags.
func (uc *CaseBoardUseCase) List(ctx context.Context, filter domain.CaseFilter) ([]domain.CaseStudy, error) {
	switch filter.Sort {
	case "":
		filter.Sort = domain.CaseSortLatest
	case domain.CaseSortLatest, domain.CaseSortLikes:
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "list cases", fmt.Errorf("unknown sort %q", filter.Sort))
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultCaseLimit
	}
	if filter.Limit > maxCaseLimit {
		filter.Limit = maxCaseLimit
	}
	filter.Tags = normalizeTags(filter.Tags)

	cases, err := uc.store.ListCases(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return cases, nil
}

// Comments lists a case's comments, newest first.
func (uc *CaseBoardUseCase) Comments(ctx context.Context, caseID int64) ([]domain.CaseComment, error) {
	comments, err := uc.store.ListComments(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	for i := range comments {
		if comments[i].Username == "" {
			comments[i].Username = domain.AnonymousAuthor
		}
	}
	return comments, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
