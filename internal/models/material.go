package models

import "time"

// Material is an uploaded study file scoped to a class.
type Material struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	StoredFile string    `db:"stored_file" json:"stored_file"`
	ClassID    string    `db:"class_id" json:"class_id"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// MaterialDetail joins a material with its class name for admin listings.
type MaterialDetail struct {
	Material
	ClassName string `db:"class_name" json:"class_name"`
}
