package models

import (
	"database/sql"
	"time"
)

// Book represents a row in the 'books' table. Catalog-sourced rows carry a
// google_id and are written once, on first sight; user-curated rows have no
// google_id and belong to whoever created them.
type Book struct {
	ID              int64          `db:"id"`
	GoogleID        sql.NullString `db:"google_id"`
	Title           string         `db:"title"`
	Authors         sql.NullString `db:"authors"`
	Publisher       sql.NullString `db:"publisher"`
	PublishedDate   sql.NullString `db:"published_date"`
	Thumbnail       sql.NullString `db:"thumbnail"`
	Categories      sql.NullString `db:"categories"`
	Description     sql.NullString `db:"description"`
	Language        sql.NullString `db:"language"`
	PageCount       sql.NullInt64  `db:"page_count"`
	ISBN            sql.NullString `db:"isbn"`
	AvailableCopies int            `db:"available_copies"`
	University      sql.NullString `db:"university"`
	CreatedBy       sql.NullInt64  `db:"created_by"`
	CreatedAt       time.Time      `db:"created_at"`
}

// Review represents a row in the 'reviews' table. Rating aggregates are
// never stored on the book row; they are computed from here on read.
type Review struct {
	ID        int64          `db:"id"`
	BookID    int64          `db:"book_id"`
	UserID    sql.NullInt64  `db:"user_id"`
	Rating    int            `db:"rating"`
	Comment   sql.NullString `db:"comment"`
	CreatedAt time.Time      `db:"created_at"`
}
