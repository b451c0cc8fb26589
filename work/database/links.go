package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iptv-check/work/utils"
)

var (
	// ErrLinkNotFound is returned when no link has the given name.
	ErrLinkNotFound = errors.New("link not found")

	// ErrLinkExists is returned when the URL is already stored.
	ErrLinkExists = errors.New("link already exists")
)

// Link is a stored playlist URL used by database mode.
type Link struct {
	ID      int64
	Name    string
	URL     string
	AddedAt time.Time
}

// AddLink stores url under name. An empty name is derived from the URL.
// Taken names get a numeric suffix ("_2", "_3", ...). It returns the name
// actually used.
//
// Parameters:
//   - name: requested name, sanitised; "" derives one from the URL path
//     stem or host
//   - url: the playlist URL, unique across the table
//
// Returns:
//   - string: the stored name
//   - error: ErrLinkExists when url is already stored
func (db *DB) AddLink(name, url string) (string, error) {
	if url == "" {
		return "", errors.New("link URL is empty")
	}

	base := utils.SanitizeName(name)
	if base == "" {
		base = utils.NameFromURL(url)
	}

	// the existence check and the insert share one transaction
	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow("SELECT EXISTS(SELECT 1 FROM links WHERE url = ?)", url).Scan(&exists); err != nil {
		return "", fmt.Errorf("failed to check link: %w", err)
	}
	if exists {
		return "", ErrLinkExists
	}

	// first free name among base, base_2, base_3, ...
	final := base
	for n := 2; ; n++ {
		var taken bool
		if err := tx.QueryRow("SELECT EXISTS(SELECT 1 FROM links WHERE name = ?)", final).Scan(&taken); err != nil {
			return "", fmt.Errorf("failed to check link name: %w", err)
		}
		if !taken {
			break
		}
		final = fmt.Sprintf("%s_%d", base, n)
	}

	if _, err := tx.Exec("INSERT INTO links (name, url, added_at) VALUES (?, ?, ?)", final, url, time.Now().Unix()); err != nil {
		return "", fmt.Errorf("failed to save link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit link: %w", err)
	}
	return final, nil
}

// ListLinks returns every stored link ordered by name.
func (db *DB) ListLinks() ([]Link, error) {
	rows, err := db.Query("SELECT id, name, url, added_at FROM links ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		var added int64
		if err := rows.Scan(&l.ID, &l.Name, &l.URL, &added); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		l.AddedAt = time.Unix(added, 0)
		links = append(links, l)
	}

	return links, rows.Err()
}

// GetLink returns the link stored under name.
func (db *DB) GetLink(name string) (*Link, error) {
	var l Link
	var added int64
	err := db.QueryRow("SELECT id, name, url, added_at FROM links WHERE name = ?", name).
		Scan(&l.ID, &l.Name, &l.URL, &added)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	l.AddedAt = time.Unix(added, 0)
	return &l, nil
}

// RemoveLink deletes the link stored under name.
func (db *DB) RemoveLink(name string) error {
	result, err := db.Exec("DELETE FROM links WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to remove link: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLinkNotFound
	}
	return nil
}
