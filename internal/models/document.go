// Package models defines core data structures for documents, users, matches, and scans.
package models

import "time"

// Document is an uploaded document in the corpus. Content and ContentHash never change
// after ingestion.
type Document struct {
	ID          string    `json:"id" db:"id"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Title       string    `json:"title" db:"title"`
	Content     string    `json:"content" db:"content"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	FileType    string    `json:"file_type" db:"file_type"`
	FileSize    int64     `json:"file_size" db:"file_size"`
	WordCount   int       `json:"word_count" db:"word_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Upload is a raw file submitted for scanning, before text extraction.
type Upload struct {
	Filename string `json:"filename"`
	Content  []byte `json:"-"`
}

// User is an account that owns documents and spends credits on scans.
type User struct {
	ID                  string    `json:"id" db:"id"`
	Username            string    `json:"username" db:"username"`
	Credits             int       `json:"credits" db:"credits"`
	TotalCreditsGranted int       `json:"total_credits_granted" db:"total_credits_granted"`
	LastCreditReset     time.Time `json:"last_credit_reset" db:"last_credit_reset"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}
