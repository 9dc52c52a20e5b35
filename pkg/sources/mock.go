package sources

import (
	"context"
	"fmt"
)

// MockTable is canned table data served by MockSource.
type MockTable struct {
	Columns     []SourceColumn
	Description string
	Rows        [][]any
	// StreamErr, when set, is returned by StreamRows after streaming
	// FailAfterRows rows. Used to exercise import abort paths.
	StreamErr     error
	FailAfterRows int
}

// MockSource is a configurable in-memory Source for tests.
type MockSource struct {
	Tables map[string]MockTable

	// ConnErr, when set, is returned by TestConnection and every call.
	ConnErr error

	Closed bool
}

// NewMockSource creates an empty mock source.
func NewMockSource() *MockSource {
	return &MockSource{Tables: map[string]MockTable{}}
}

// ListColumns implements Source.
func (m *MockSource) ListColumns(ctx context.Context, table string) ([]SourceColumn, error) {
	if m.ConnErr != nil {
		return nil, m.ConnErr
	}
	t, ok := m.Tables[table]
	if !ok {
		return nil, fmt.Errorf("table %s not found at source", table)
	}
	return t.Columns, nil
}

// DescribeTable implements Source.
func (m *MockSource) DescribeTable(ctx context.Context, table string) (string, error) {
	if m.ConnErr != nil {
		return "", m.ConnErr
	}
	return m.Tables[table].Description, nil
}

// StreamRows implements Source.
func (m *MockSource) StreamRows(ctx context.Context, table string, visit RowVisitor) error {
	if m.ConnErr != nil {
		return m.ConnErr
	}
	t, ok := m.Tables[table]
	if !ok {
		return fmt.Errorf("table %s not found at source", table)
	}
	for i, row := range t.Rows {
		if t.StreamErr != nil && i == t.FailAfterRows {
			return t.StreamErr
		}
		if err := visit(row); err != nil {
			return err
		}
	}
	if t.StreamErr != nil && t.FailAfterRows >= len(t.Rows) {
		return t.StreamErr
	}
	return nil
}

// TestConnection implements Source.
func (m *MockSource) TestConnection(ctx context.Context) error {
	return m.ConnErr
}

// Close implements Source.
func (m *MockSource) Close() error {
	m.Closed = true
	return nil
}

var _ Source = (*MockSource)(nil)

// MockSourceFactory returns a fixed source from Open.
type MockSourceFactory struct {
	Source  Source
	OpenErr error

	OpenCalls int
}

// Open implements SourceFactory.
func (f *MockSourceFactory) Open(ctx context.Context, cred *Credential, dataset string) (Source, error) {
	f.OpenCalls++
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	return f.Source, nil
}

var _ SourceFactory = (*MockSourceFactory)(nil)
