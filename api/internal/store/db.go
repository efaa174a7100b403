package store

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// Open connects through the pgx stdlib driver and pings once.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	// one row per attempt, a small pool is plenty
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

// ResolveDSN prefers databaseURL, then builds one from POSTGRES_*/PG* variables
// when PGHOST is set. An empty result means the journal stays off.
func ResolveDSN(databaseURL string, getenv func(string) string) string {
	if v := strings.TrimSpace(databaseURL); v != "" {
		return v
	}
	host := strings.TrimSpace(getenv("PGHOST"))
	if host == "" {
		return ""
	}
	def := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(def("POSTGRES_USER", "facematch"), getenv("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(host, def("PGPORT", "5432")),
		Path:     "/" + def("POSTGRES_DB", "facematch"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SafeDSNSummary describes dsn for logs without the password.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
