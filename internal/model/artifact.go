package model

// Artifact describes a screenshot written during a run.
type Artifact struct {
	// Name identifies the artifact within the run ("results", "raw_results").
	Name string `json:"name"`

	// Path is where the file was written.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// Width and Height are the image dimensions in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Digest is the hex SHA3-256 of the file contents.
	Digest string `json:"digest"`
}

// SameContent reports whether two artifacts hold identical bytes.
func (a Artifact) SameContent(other Artifact) bool {
	return a.Digest != "" && a.Digest == other.Digest
}
