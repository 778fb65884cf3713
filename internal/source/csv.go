package source

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Record is one raw input row: the originating folder tag and the raw
// RFC822 message blob.
type Record struct {
	Folder string
	Raw    string
}

// Reader streams records from a CSV export with (folder, message)
// columns. Message blobs routinely span many quoted lines and megabytes;
// the csv reader handles both without a field size limit.
type Reader struct {
	file      *os.File
	csv       *csv.Reader
	hasHeader bool
	skipped   bool
}

// Open opens the CSV export at path. Failure here is fatal to the run.
func Open(path string, hasHeader bool) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input source: %w", err)
	}

	r := csv.NewReader(bufio.NewReaderSize(file, 1<<20))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	return &Reader{
		file:      file,
		csv:       r,
		hasHeader: hasHeader,
	}, nil
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (r *Reader) Next() (Record, error) {
	for {
		row, err := r.csv.Read()
		if err == io.EOF {
			return Record{}, io.EOF
		}
		if err != nil {
			return Record{}, fmt.Errorf("failed to read record: %w", err)
		}

		if r.hasHeader && !r.skipped {
			r.skipped = true
			continue
		}

		switch len(row) {
		case 0:
			continue
		case 1:
			return Record{Raw: row[0]}, nil
		default:
			return Record{Folder: row[0], Raw: row[1]}, nil
		}
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
