package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"sideline/internal/session"
)

func formatStatusLabel(status session.Status) string {
	value := strings.ReplaceAll(strings.TrimSpace(string(status)), "_", " ")
	if value == "" {
		return ""
	}
	return cases.Title(language.Und).String(value)
}

func formatOffset(sess *session.Session) string {
	if sess.OffsetSeconds == nil {
		return "-"
	}
	return fmt.Sprintf("%+.3fs (%s)", *sess.OffsetSeconds, sess.OffsetMethod)
}

func formatProgress(sess *session.Session) string {
	if sess.ProgressPhase == "" {
		return "-"
	}
	return fmt.Sprintf("%s %.0f%%", sess.ProgressPhase, sess.ProgressPercent)
}

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func buildSessionRows(sessions []*session.Session) [][]string {
	if len(sessions) == 0 {
		return nil
	}
	sorted := make([]*session.Session, len(sessions))
	copy(sorted, sessions)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	rows := make([][]string, 0, len(sorted))
	for _, sess := range sorted {
		rows = append(rows, []string{
			fmt.Sprintf("%d", sess.ID),
			sess.SessionKey,
			sess.CompletionLabel(),
			formatOffset(sess),
			formatProgress(sess),
			formatDisplayTime(sess.UpdatedAt),
		})
	}
	return rows
}

func buildStatusCountRows(stats map[session.Status]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(stats))
	for _, status := range session.AllStatuses() {
		count, ok := stats[status]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(status), fmt.Sprintf("%d", count)})
	}
	return rows
}
