package model

// Report is either uploaded (Link set) or returned as Content to be sent directly.
type Report struct {
	FileName string
	Content  []byte
	Link     string
}
