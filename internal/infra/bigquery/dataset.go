package bigquery

import "fmt"

const (
	categoriesTable   = "categories"
	transactionsTable = "transactions"
)

// Dataset identifies the project and dataset holding the statement tables.
type Dataset struct {
	ProjectID string
	DatasetID string
}

// Table returns the fully qualified, backtick-quoted table name for use in SQL.
func (d Dataset) Table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, name)
}
