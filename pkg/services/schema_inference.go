// Package services implements the role onboarding and analysis pipeline.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
)

// Keyword tiers for name-based type inference, checked in order. The first
// tier containing a matching keyword wins.
var (
	identifierKeywords = []string{"id", "_id"}
	temporalKeywords   = []string{"date", "time", "created", "updated", "timestamp"}
	magnitudeKeywords  = []string{"age", "count", "number", "total", "amount", "value", "price", "cost", "quantity", "orders", "items"}
	ratioKeywords      = []string{"rate", "percent", "ratio", "average", "avg", "score", "rating"}
	textualKeywords    = []string{"email", "name", "title", "description", "text", "category", "type", "status", "gender", "location", "source", "channel", "preference", "style", "size"}
	booleanKeywords    = []string{"is_", "has_", "active", "enabled", "visible", "public"}
)

const (
	sampleLimit       = 10
	categoryThreshold = 0.7
	integerThreshold  = 0.8
)

// InferColumnType classifies a column into a semantic type. It first matches
// the column name against keyword tiers; if no tier matches it samples up to
// 10 non-null values and classifies by majority. It never fails: any error or
// unclassifiable data falls back to TEXT.
func InferColumnType(ctx context.Context, db *sql.DB, columnName, tableName string) models.SemanticType {
	if t, ok := inferFromName(columnName); ok {
		return t
	}
	return inferFromSamples(ctx, db, columnName, tableName)
}

func inferFromName(columnName string) (models.SemanticType, bool) {
	lower := strings.ToLower(columnName)
	containsAny := func(keywords []string) bool {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny(identifierKeywords):
		return models.TypeInteger, true
	case containsAny(temporalKeywords):
		return models.TypeDatetime, true
	case containsAny(magnitudeKeywords):
		return models.TypeInteger, true
	case containsAny(ratioKeywords):
		return models.TypeReal, true
	case containsAny(textualKeywords):
		return models.TypeText, true
	case containsAny(booleanKeywords):
		return models.TypeBoolean, true
	}
	return "", false
}

func inferFromSamples(ctx context.Context, db *sql.DB, columnName, tableName string) models.SemanticType {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL LIMIT %d",
		database.QuoteIdentifier(columnName), database.QuoteIdentifier(tableName),
		database.QuoteIdentifier(columnName), sampleLimit)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return models.TypeText
	}
	defer rows.Close()

	var samples []string
	for rows.Next() {
		var value any
		if err := rows.Scan(&value); err != nil {
			return models.TypeText
		}
		samples = append(samples, fmt.Sprintf("%v", value))
	}
	if rows.Err() != nil || len(samples) == 0 {
		return models.TypeText
	}

	var numericCount, dateCount, booleanCount int
	for _, raw := range samples {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			numericCount++
		}
		if looksLikeDate(value) {
			dateCount++
		}
		if isBooleanLiteral(value) {
			booleanCount++
		}
	}

	total := float64(len(samples))
	switch {
	case float64(dateCount)/total > categoryThreshold:
		return models.TypeDatetime
	case float64(booleanCount)/total > categoryThreshold:
		return models.TypeBoolean
	case float64(numericCount)/total > categoryThreshold:
		integerCount := 0
		for _, raw := range samples {
			value := strings.TrimSpace(raw)
			f, err := strconv.ParseFloat(value, 64)
			if err == nil && f == float64(int64(f)) {
				integerCount++
			}
		}
		if float64(integerCount)/float64(numericCount) > integerThreshold {
			return models.TypeInteger
		}
		return models.TypeReal
	}
	return models.TypeText
}

// dateLayouts are the ISO-ish formats accepted by sample-tier date detection.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01-02 15:04:05",
}

func looksLikeDate(value string) bool {
	if len(value) <= 8 {
		return false
	}
	if !strings.ContainsAny(value, "-/:") {
		return false
	}
	normalized := strings.ReplaceAll(value, "/", "-")
	for _, layout := range dateLayouts {
		candidate := normalized
		if strings.Contains(layout, "T") {
			candidate = strings.Replace(normalized, " ", "T", 1)
		}
		if _, err := time.Parse(layout, candidate); err == nil {
			return true
		}
	}
	return false
}

var booleanLiterals = map[string]bool{
	"true": true, "false": true, "1": true, "0": true,
	"yes": true, "no": true, "y": true, "n": true,
}

func isBooleanLiteral(value string) bool {
	return booleanLiterals[strings.ToLower(value)]
}
