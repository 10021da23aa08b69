package service

import (
	"context"
	"time"

	"docmanager/internal/models"
	"docmanager/internal/util"
)

const (
	statisticsMonths = 12
	topDocumentLimit = 10
)

type UserListParams struct {
	Role   string
	Status string
	Page   int
	Limit  int
}

func (s *Service) ListUsers(ctx context.Context, p UserListParams) ([]models.User, util.Pagination, error) {
	page, limit := NormalizePage(p.Page, p.Limit, DefaultAdminLimit)
	q := models.UserQuery{Status: p.Status, Limit: limit, Offset: (page - 1) * limit}
	if p.Role != "" {
		role := models.Role(p.Role)
		if !role.Valid() {
			return nil, util.Pagination{}, invalid("role", "unknown role")
		}
		q.Role = role
	}
	switch p.Status {
	case "", "active", "blocked":
	default:
		return nil, util.Pagination{}, invalid("status", "status must be active or blocked")
	}
	users, total, err := s.st.ListUsers(ctx, q)
	if err != nil {
		return nil, util.Pagination{}, err
	}
	return users, util.NewPagination(total, page, limit), nil
}

func (s *Service) BlockUser(ctx context.Context, admin models.User, userID int64, reason string) error {
	return s.setBlocked(ctx, admin, userID, true, reason)
}

func (s *Service) UnblockUser(ctx context.Context, admin models.User, userID int64, reason string) error {
	return s.setBlocked(ctx, admin, userID, false, reason)
}

func (s *Service) setBlocked(ctx context.Context, admin models.User, userID int64, blocked bool, reason string) error {
	if !admin.IsAdmin() {
		return ErrForbidden
	}
	if userID <= 0 {
		return invalid("user_id", "user_id is required")
	}
	if blocked && userID == admin.ID {
		return invalid("user_id", "you cannot block your own account")
	}
	return mapStoreErr(s.st.SetBlocked(ctx, admin.ID, userID, blocked, optional(reason)))
}

type AdminDocumentParams struct {
	Search     string
	CategoryID *int64
	AuthorID   *int64
	Page       int
	Limit      int
}

// AllDocuments lists documents for moderation, soft-deleted ones included.
func (s *Service) AllDocuments(ctx context.Context, p AdminDocumentParams) ([]models.Document, util.Pagination, error) {
	page, limit := NormalizePage(p.Page, p.Limit, DefaultAdminLimit)
	return s.listDocuments(ctx, models.DocumentFilter{
		Search:         p.Search,
		CategoryID:     p.CategoryID,
		AuthorID:       p.AuthorID,
		IncludeDeleted: true,
	}, page, limit)
}

func (s *Service) Logs(ctx context.Context, page, limit int) ([]models.AdminLog, util.Pagination, error) {
	page, limit = NormalizePage(page, limit, DefaultLogLimit)
	logs, total, err := s.st.ListAudit(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, util.Pagination{}, err
	}
	return logs, util.NewPagination(total, page, limit), nil
}

func (s *Service) Statistics(ctx context.Context) (models.Statistics, error) {
	var out models.Statistics
	totals, err := s.st.StatisticsTotals(ctx)
	if err != nil {
		return out, err
	}
	out.TotalDocuments = totals.Documents
	out.TotalUsers = totals.Users
	out.TotalDownloads = totals.Downloads

	now := s.now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(statisticsMonths - 1), 0)
	created, err := s.st.DocumentCreationTimes(ctx, first)
	if err != nil {
		return out, err
	}
	out.MonthlyDocuments = monthlyBuckets(first, statisticsMonths, created)

	if out.DocsByCategory, err = s.st.DocumentsByCategory(ctx); err != nil {
		return out, err
	}
	if out.DocsByType, err = s.st.DocumentsByType(ctx); err != nil {
		return out, err
	}
	if out.TopDocuments, err = s.st.TopDownloadedDocuments(ctx, topDocumentLimit); err != nil {
		return out, err
	}
	return out, nil
}

// monthlyBuckets counts times per calendar month starting at first, oldest
// month first. Months without documents are reported as zero.
func monthlyBuckets(first time.Time, months int, times []time.Time) []models.MonthCount {
	out := make([]models.MonthCount, months)
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		key := first.AddDate(0, i, 0).Format("2006-01")
		out[i] = models.MonthCount{Month: key}
		index[key] = i
	}
	for _, t := range times {
		if i, ok := index[t.UTC().Format("2006-01")]; ok {
			out[i].Count++
		}
	}
	return out
}
