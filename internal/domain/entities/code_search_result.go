package entities

import "fmt"

// TypenameFileMatch is the GraphQL discriminator of file match results
const TypenameFileMatch = "FileMatch"

// SearchResultEntry is one entry of a search response. Only entries whose
// Typename is FileMatch carry a File.
type SearchResultEntry struct {
	Typename string
	File     *FileMatch
}

// IsFileMatch reports whether the entry identifies a matched file
func (e SearchResultEntry) IsFileMatch() bool {
	return e.Typename == TypenameFileMatch && e.File != nil
}

// FileMatch is a file that matched a search query
type FileMatch struct {
	Repository string
	Path       string
	Symbols    []Symbol
}

// DisplayPath renders the match as "repository/path"
func (f FileMatch) DisplayPath() string {
	return fmt.Sprintf("%s/%s", f.Repository, f.Path)
}

// Symbol is an indexed language symbol reported inside a file match
type Symbol struct {
	Name string
	Kind string

	// Line is the zero-based start line, nil when the backend omits the location
	Line *int
}
