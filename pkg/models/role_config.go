package models

import "time"

// RoleConfig is the durable per-role record created when an operator
// provisions a custom role. TotalRecords and SchemaDescriptions are
// overwritten after each successful import.
type RoleConfig struct {
	RoleName           string                      `json:"role_name"`
	SourceProject      string                      `json:"source_project"`
	SourceDataset      string                      `json:"source_dataset"`
	SourceTables       []string                    `json:"source_tables"`
	HasCredential      bool                        `json:"has_credential"`
	CreatedAt          time.Time                   `json:"created_at"`
	TotalRecords       int64                       `json:"total_records"`
	SchemaDescriptions map[string]TableDescription `json:"schema_descriptions"`
}

// RoleSummary is the listing shape served to the homepage.
type RoleSummary struct {
	Name    string    `json:"name"`
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
}
