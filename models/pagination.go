package models

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/zayar/retailops_backend/config"
	"gorm.io/gorm"
)

type PageInfo struct {
	EndCursor   string `json:"end_cursor"`
	HasNextPage bool   `json:"has_next_page"`
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

func DecodeIdCursor(cursor *string) (int, error) {
	if cursor == nil || *cursor == "" {
		return 0, nil
	}
	b, err := base64.StdEncoding.DecodeString(*cursor)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(b))
}

func EncodeIdCursor(id int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(id)))
}

// Composite cursors pair an ordering column value with the row id so pages
// stay stable when the ordering column has duplicates.
func DecodeCompositeCursor(cursor *string) (string, int) {
	if cursor == nil || *cursor == "" {
		return "", 0
	}

	decoded, err := base64.StdEncoding.DecodeString(*cursor)
	if err != nil {
		return "", 0
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return "", 0
	}

	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0
	}

	return parts[0], id
}

func EncodeCompositeCursor(columnValue string, id int) string {
	cursor := fmt.Sprintf("%s|%d", columnValue, id)
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}

// FetchPageIdCursor pages over T ordered by descending id. scope, when
// non-nil, narrows the query (filters, preloads).
func FetchPageIdCursor[T any](ctx context.Context, limit int, after *string, scope func(*gorm.DB) *gorm.DB) ([]T, *PageInfo, error) {
	limit = clampLimit(limit)

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(new(T))
	if scope != nil {
		dbCtx = scope(dbCtx)
	}

	cursorId, err := DecodeIdCursor(after)
	if err != nil {
		return nil, nil, err
	}
	if cursorId > 0 {
		dbCtx = dbCtx.Where("id < ?", cursorId)
	}

	rows := make([]T, 0, limit+1)
	if err := dbCtx.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	pageInfo := PageInfo{}
	if len(rows) > limit {
		rows = rows[:limit]
		pageInfo.HasNextPage = true
	}
	if len(rows) > 0 {
		if ident, ok := any(rows[len(rows)-1]).(Identifier); ok {
			pageInfo.EndCursor = EncodeIdCursor(ident.GetId())
		}
	}
	return rows, &pageInfo, nil
}

type Identifier interface {
	GetId() int
}

type CompositeCursor interface {
	Identifier
	GetCursor() string
}

// FetchPageCompositeCursor pages over T ordered by cursorColumn descending
// with id as the tie-breaker.
func FetchPageCompositeCursor[T CompositeCursor](ctx context.Context, limit int, after *string, cursorColumn string, scope func(*gorm.DB) *gorm.DB) ([]T, *PageInfo, error) {
	limit = clampLimit(limit)

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(new(T))
	if scope != nil {
		dbCtx = scope(dbCtx)
	}

	cursorValue, cursorId := DecodeCompositeCursor(after)
	if cursorValue != "" {
		dbCtx = dbCtx.Where(
			fmt.Sprintf("%[1]s < ? OR (%[1]s = ? AND id < ?)", cursorColumn),
			cursorValue, cursorValue, cursorId)
	}

	rows := make([]T, 0, limit+1)
	err := dbCtx.Order(cursorColumn + " DESC, id DESC").Limit(limit + 1).Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	pageInfo := PageInfo{}
	if len(rows) > limit {
		rows = rows[:limit]
		pageInfo.HasNextPage = true
	}
	if len(rows) > 0 {
		last := rows[len(rows)-1]
		pageInfo.EndCursor = EncodeCompositeCursor(last.GetCursor(), last.GetId())
	}
	return rows, &pageInfo, nil
}
