package engine

import (
	"brainapi/internal/models"
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Field identifies one of the five retained columns.
type Field int

const (
	FieldCountry Field = iota
	FieldCategory
	FieldCurrency
	FieldName
	FieldType

	numFields
)

var fieldNames = [numFields]string{"country", "category", "currency", "name", "type"}

func (f Field) String() string { return fieldNames[f] }

// Schema is the column layout of every Dataset: five nullable UTF-8 columns.
var Schema = func() *arrow.Schema {
	fields := make([]arrow.Field, numFields)
	for i, name := range fieldNames {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}()

// Dataset holds ingested rows in columnar (Arrow) form.
// It is immutable once built and safe to share between goroutines.
//
// Datasets are never released explicitly: readers may still hold a replaced
// one, and the Go allocator leaves reclamation to the GC.
type Dataset struct {
	rec  arrow.Record
	cols [numFields]*array.String
}

// NewDataset materializes records column by column, preserving order.
func NewDataset(records []models.Record) *Dataset {
	b := array.NewRecordBuilder(memory.DefaultAllocator, Schema)
	defer b.Release()
	b.Reserve(len(records))

	builders := [numFields]*array.StringBuilder{}
	for i := range builders {
		builders[i] = b.Field(i).(*array.StringBuilder)
	}

	for _, r := range records {
		for i, v := range r.Values() {
			if v == nil {
				builders[i].AppendNull()
			} else {
				builders[i].Append(*v)
			}
		}
	}

	ds := &Dataset{rec: b.NewRecord()}
	for i := range ds.cols {
		ds.cols[i] = ds.rec.Column(i).(*array.String)
	}
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return int(d.rec.NumRows())
}

// Value returns the cell at (field, row), nil when null.
func (d *Dataset) Value(f Field, row int) *string {
	col := d.cols[f]
	if col.IsNull(row) {
		return nil
	}
	s := col.Value(row)
	return &s
}

// WriteIPC streams the dataset to w in the Arrow IPC stream format.
func (d *Dataset) WriteIPC(w io.Writer) error {
	wr := ipc.NewWriter(w, ipc.WithSchema(Schema))
	if err := wr.Write(d.rec); err != nil {
		wr.Close()
		return err
	}
	return wr.Close()
}

// DatasetStore is a single slot holding the current Dataset, or nothing.
// The lock covers only the pointer handoff.
type DatasetStore struct {
	mu sync.Mutex
	ds *Dataset
}

// Replace publishes ds. Snapshots taken afterwards see ds in full.
func (s *DatasetStore) Replace(ds *Dataset) {
	s.mu.Lock()
	s.ds = ds
	s.mu.Unlock()
}

// Snapshot returns the current Dataset or ErrNotLoaded.
func (s *DatasetStore) Snapshot() (*Dataset, error) {
	s.mu.Lock()
	ds := s.ds
	s.mu.Unlock()
	if ds == nil {
		return nil, ErrNotLoaded
	}
	return ds, nil
}

// Len reports the row count and whether any dataset is loaded.
func (s *DatasetStore) Len() (int, bool) {
	ds, err := s.Snapshot()
	if err != nil {
		return 0, false
	}
	return ds.Len(), true
}
