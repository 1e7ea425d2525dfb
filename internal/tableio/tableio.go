// Package tableio reads and writes the pipeline's parquet tables.
package tableio

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// readBatch bounds the per-call allocation when reading a table whole.
const readBatch = 8192

// Read loads every row of a parquet table into memory. Silver inputs and
// Gold tables both fit; the largest observed table is a few million rows.
func Read[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[T](f)
	defer reader.Close()

	rows := make([]T, 0, reader.NumRows())
	buf := make([]T, readBatch)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return rows, nil
}

// Write writes a full table to path, configured for analytical queries and
// small files:
//
//	Zstd: noticeably smaller files than Snappy with acceptable write
//	overhead and good decode speed for query engines.
//
//	64MB row groups / 8KB pages: row-group min/max skip plus page-level
//	filtering for engines that read column indexes.
//
// Rows arrive already sorted by surrogate key, which maximizes row-group
// skip on key-range predicates.
func Write[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	writer := parquet.NewGenericWriter[T](f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.PageBufferSize(8*1024),
		parquet.WriteBufferSize(64*1024*1024),
		parquet.DataPageStatistics(true),
		parquet.CreatedBy("amrgold", "1.0", ""),
	)

	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := writer.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close %s: %w", path, err)
	}
	return f.Close()
}
