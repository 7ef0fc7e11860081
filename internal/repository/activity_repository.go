package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/school-manager-reports/internal/models"
)

// ActivityRepository reads the standard event log and forum activity.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// EventTimestamps returns every logged event time per user between since and until inclusive.
func (r *ActivityRepository) EventTimestamps(ctx context.Context, userIDs []int64, since, until int64) (map[int64][]int64, error) {
	if len(userIDs) == 0 {
		return map[int64][]int64{}, nil
	}
	const query = `SELECT userid, timecreated
FROM mdl_logstore_standard_log
WHERE userid = ANY($1) AND timecreated >= $2 AND timecreated <= $3
ORDER BY userid, timecreated`
	var rows []models.UserTimestamp
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(userIDs), since, until); err != nil {
		return nil, fmt.Errorf("load event timestamps: %w", err)
	}
	return groupTimestamps(rows), nil
}

// LoginTimestamps returns login event times per user between since and until inclusive.
func (r *ActivityRepository) LoginTimestamps(ctx context.Context, userIDs []int64, since, until int64) (map[int64][]int64, error) {
	if len(userIDs) == 0 {
		return map[int64][]int64{}, nil
	}
	const query = `SELECT userid, timecreated
FROM mdl_logstore_standard_log
WHERE userid = ANY($1) AND eventname = $2 AND timecreated >= $3 AND timecreated <= $4
ORDER BY userid, timecreated`
	var rows []models.UserTimestamp
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(userIDs), models.LoginEventName, since, until); err != nil {
		return nil, fmt.Errorf("load login timestamps: %w", err)
	}
	return groupTimestamps(rows), nil
}

// ForumPostCounts counts posts per user in tenant-owned courses between since and until inclusive.
func (r *ActivityRepository) ForumPostCounts(ctx context.Context, tenantID int64, userIDs []int64, since, until int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}
	const query = `SELECT p.userid, COUNT(*) AS total
FROM mdl_forum_posts p
JOIN mdl_forum_discussions d ON d.id = p.discussion
JOIN mdl_company_course cc ON cc.courseid = d.course AND cc.companyid = $1
WHERE p.userid = ANY($2) AND p.created >= $3 AND p.created <= $4
GROUP BY p.userid`
	var rows []models.UserCount
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, pq.Array(userIDs), since, until); err != nil {
		return nil, fmt.Errorf("count forum posts: %w", err)
	}
	for _, row := range rows {
		counts[row.UserID] = row.Count
	}
	return counts, nil
}

// ActivityLog lists log entries of tenant members newest first.
func (r *ActivityRepository) ActivityLog(ctx context.Context, tenantID int64, filter models.ActivityLogFilter) ([]models.LogEntry, int, error) {
	var b strings.Builder
	b.WriteString(`FROM mdl_logstore_standard_log l
JOIN mdl_user u ON u.id = l.userid
JOIN mdl_company_users cu ON cu.userid = l.userid AND cu.companyid = $1
LEFT JOIN mdl_course c ON c.id = l.courseid AND l.courseid > 0
WHERE u.deleted = 0`)
	args := []interface{}{tenantID}
	if filter.From > 0 {
		args = append(args, filter.From)
		fmt.Fprintf(&b, " AND l.timecreated >= $%d", len(args))
	}
	if filter.To > 0 {
		args = append(args, filter.To)
		fmt.Fprintf(&b, " AND l.timecreated <= $%d", len(args))
	}
	if strings.TrimSpace(filter.Search) != "" {
		args = append(args, likePattern(filter.Search))
		n := len(args)
		fmt.Fprintf(&b, " AND (LOWER(u.username) LIKE $%d OR LOWER(u.firstname) LIKE $%d OR LOWER(u.lastname) LIKE $%d OR LOWER(l.eventname) LIKE $%d OR LOWER(l.component) LIKE $%d OR LOWER(COALESCE(c.fullname, '')) LIKE $%d)", n, n, n, n, n, n)
	}
	base := b.String()
	limit, offset := limitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT l.id, l.userid, u.username, u.firstname, u.lastname, c.id AS courseid, c.fullname AS coursename,
    l.eventname, l.action, l.target, l.component, l.timecreated, COALESCE(l.ip, '') AS ip
%s ORDER BY l.timecreated DESC, l.id DESC LIMIT %d OFFSET %d`, base, limit, offset)

	var entries []models.LogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activity log: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count activity log: %w", err)
	}
	return entries, total, nil
}

func groupTimestamps(rows []models.UserTimestamp) map[int64][]int64 {
	grouped := make(map[int64][]int64)
	for _, row := range rows {
		grouped[row.UserID] = append(grouped[row.UserID], row.TimeCreated)
	}
	return grouped
}
