package storage

import "time"

// FileMetadata is a lightweight representation returned by list operations.
type FileMetadata struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider abstracts the on-disk graph so the index and services can be
// tested against fakes.
type Provider interface {
	List(dir string) ([]FileMetadata, error)
	ListNames(dir string) ([]string, error)
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
	Delete(path string) error
	Move(oldPath, newPath string) error
}
