package mailstate

import "github.com/nhle/relaymail/internal/model"

// AttachmentSet is the ordered list of files picked for a draft. A new
// selection replaces the previous one; it never appends.
type AttachmentSet struct {
	files []model.File
}

// ReplaceAll stores files as the whole set. An empty slice empties the set.
func (a *AttachmentSet) ReplaceAll(files []model.File) {
	a.files = make([]model.File, len(files))
	copy(a.files, files)
}

// Clear empties the set.
func (a *AttachmentSet) Clear() {
	a.files = nil
}

// Files returns a copy of the set in selection order.
func (a *AttachmentSet) Files() []model.File {
	out := make([]model.File, len(a.files))
	copy(out, a.files)
	return out
}

// Len returns the number of files.
func (a *AttachmentSet) Len() int {
	return len(a.files)
}

// Names returns the display names in order.
func (a *AttachmentSet) Names() []string {
	names := make([]string, len(a.files))
	for i, f := range a.files {
		names[i] = f.Name
	}
	return names
}

// TotalSize returns the combined payload size in bytes.
func (a *AttachmentSet) TotalSize() int {
	total := 0
	for _, f := range a.files {
		total += f.Size()
	}
	return total
}
