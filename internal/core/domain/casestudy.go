package domain

import "time"

type CaseStudy struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Methods      string    `json:"methods,omitempty"`
	Results      string    `json:"results,omitempty"`
	Conclusions  string    `json:"conclusions,omitempty"`
	Author       string    `json:"author"`
	Date         time.Time `json:"date"`
	Tags         []string  `json:"tags"`
	Likes        int       `json:"likes"`
	Images       []string  `json:"images"`
	CommentCount int       `json:"comment_count"`
}

type CaseComment struct {
	ID       int64     `json:"id"`
	CaseID   int64     `json:"case_id"`
	UserID   int64     `json:"user_id,omitempty"`
	Content  string    `json:"content"`
	Date     time.Time `json:"date"`
	Username string    `json:"username"`
}

type CaseSort string

const (
	CaseSortLatest CaseSort = "latest"
	CaseSortLikes  CaseSort = "likes"
)

type CaseFilter struct {
	Sort  CaseSort
	Tags  []string
	Limit int
}

// AnonymousAuthor is shown for comments whose author no longer exists.
const AnonymousAuthor = "anonymous"
