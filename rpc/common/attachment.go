package common

import "os"

// Attachment is a kernel handle travelling alongside an Envelope. It never
// closes the handle: on the sending side the caller keeps ownership, on the
// receiving side the kernel created a new descriptor which the receiver owns.
type Attachment struct {
	handle int
}

// NewAttachment wraps a handle
func NewAttachment(handle int) Attachment {
	return Attachment{handle: handle}
}

// NewFileAttachment wraps the descriptor of an open file. The file must stay
// open until the envelope was sent.
func NewFileAttachment(f *os.File) Attachment {
	return Attachment{handle: int(f.Fd())}
}

// Handle returns the wrapped handle
func (a Attachment) Handle() int {
	return a.handle
}

// File turns a received attachment into an *os.File which then owns the handle
func (a Attachment) File(name string) *os.File {
	return os.NewFile(uintptr(a.handle), name)
}
