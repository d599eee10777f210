package repository

import (
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// NewSQLStores wires every SQL repository onto one handle.
func NewSQLStores(db *sql.DB) Stores {
	return Stores{
		Tasks:   NewTaskRepo(db),
		Columns: NewColumnRepo(db),
		Users:   NewUserRepo(db),
		Tokens:  NewTokenRepo(db),
	}
}

// isDuplicate recognises unique index violations from MySQL (1062) and
// SQLite.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// duplicateUserErr picks the sentinel matching the violated index.
func duplicateUserErr(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "username") {
		return ErrUsernameExists
	}
	return ErrEmailExists
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// parseIDList turns a GROUP_CONCAT result such as "3,1,2" into sorted ids.
func parseIDList(s sql.NullString) []int64 {
	if !s.Valid || s.String == "" {
		return []int64{}
	}
	parts := strings.Split(s.String, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		if id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// placeholders returns "?,?,?" for n > 0.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
