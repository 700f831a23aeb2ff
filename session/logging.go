package session

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// Structs

// wireLogger appends the raw protocol exchange of one session to a
// file, line-oriented and human-readable. Each line carries a
// short per-session identifier and a direction marker, so several
// concurrent sessions can share one file.
type wireLogger struct {
	file *os.File
	id   string
}

// Functions

// newWireLogger opens the log file for appending.
func newWireLogger(path string) (*wireLogger, error) {

	file, err := os.OpenFile(path, (os.O_CREATE | os.O_WRONLY | os.O_APPEND), 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open wire log file at '%s'", path)
	}

	return &wireLogger{
		file: file,
		id:   uuid.NewV4().String()[:8],
	}, nil
}

// dataSent records one outbound command line.
func (w *wireLogger) dataSent(data []byte) {
	fmt.Fprintf(w.file, "%s C: %s\n", w.id, data)
}

// dataReceived records one parsed inbound response.
func (w *wireLogger) dataReceived(data []byte) {
	fmt.Fprintf(w.file, "%s S: %s\n", w.id, data)
}

// disconnectionOccurred marks the end of the recorded exchange.
func (w *wireLogger) disconnectionOccurred() {
	fmt.Fprintf(w.file, "%s X: disconnected\n", w.id)
}

// close releases the file handle.
func (w *wireLogger) close() {
	w.file.Close()
}
