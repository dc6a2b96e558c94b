package eventlog

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
)

// ParquetContentType is the media type of a log snapshot.
const ParquetContentType = "application/vnd.apache.parquet"

var timestampType = &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}

// snapshotSchema returns the Arrow schema for a log snapshot.
func snapshotSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: ColumnCaseID, Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: ColumnActivity, Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: ColumnTimestamp, Type: timestampType, Nullable: false},
	}, nil)
}

// WriteParquet writes the log as a single-row-group Parquet file, one row per
// event in trace order.
func WriteParquet(w io.Writer, log *Log) error {
	allocator := memory.NewGoAllocator()
	schema := snapshotSchema()

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, w, writerProps, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	caseIDs := array.NewStringBuilder(allocator)
	defer caseIDs.Release()
	activities := array.NewStringBuilder(allocator)
	defer activities.Release()
	timestamps := array.NewTimestampBuilder(allocator, timestampType)
	defer timestamps.Release()

	caseIDs.Reserve(log.Len())
	activities.Reserve(log.Len())
	timestamps.Reserve(log.Len())

	for _, t := range log.Traces() {
		for _, e := range t.Events {
			caseIDs.Append(e.CaseID)
			activities.Append(e.Activity)
			timestamps.Append(arrow.Timestamp(e.Timestamp.UnixNano()))
		}
	}

	cols := []arrow.Array{caseIDs.NewArray(), activities.NewArray(), timestamps.NewArray()}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	record := array.NewRecord(schema, cols, int64(log.Len()))
	defer record.Release()

	if err := writer.Write(record); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
