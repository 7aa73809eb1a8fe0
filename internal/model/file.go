package model

// File is a user-selected file: a display name plus its contents.
type File struct {
	Name string
	Data []byte
}

// Size returns the payload length in bytes.
func (f File) Size() int {
	return len(f.Data)
}
