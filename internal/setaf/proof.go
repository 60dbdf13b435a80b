package setaf

import (
	"bufio"
	"os"
)

// ProofWriter appends clause records to a proof file. Records are only
// meaningful while no model has been produced; the driver deletes the file
// when at least one model was found.
type ProofWriter struct {
	path string
	file *os.File
	w    *bufio.Writer
}

// NewProofWriter creates the proof file. The file must not already exist.
func NewProofWriter(path string) (*ProofWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &ProofWriter{path: path, file: f, w: bufio.NewWriter(f)}, nil
}

// WriteClause records a learned clause, prefixed with "i" when it is an
// implicit clause generated for an argument without a stability witness.
func (p *ProofWriter) WriteClause(c *Clause, implicit bool) {
	if implicit {
		p.w.WriteString("i ")
	}
	p.writeMembers(c)
}

// WriteDeletion records a learned clause being forgotten.
func (p *ProofWriter) WriteDeletion(c *Clause) {
	p.w.WriteString("d ")
	p.writeMembers(c)
}

func (p *ProofWriter) writeMembers(c *Clause) {
	for _, m := range c.members {
		if m.sign == Out {
			p.w.WriteByte('-')
		}
		p.w.WriteString(m.arg.name)
		p.w.WriteByte(' ')
	}
	p.w.WriteString("0\n")
}

// WriteUnsat appends the terminating "0" emitted when the search finished
// without finding a model.
func (p *ProofWriter) WriteUnsat() {
	p.w.WriteString("0")
}

// Close flushes and closes the proof file.
func (p *ProofWriter) Close() error {
	if err := p.w.Flush(); err != nil {
		p.file.Close()
		return err
	}
	return p.file.Close()
}

// Remove deletes the proof file. Called once a model has been found, because
// the proof only certifies the absence of models.
func (p *ProofWriter) Remove() error {
	return os.Remove(p.path)
}
