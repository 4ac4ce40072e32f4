package store

// Build is one submitted build report. Rows are append-only: they are
// created once on a successful authenticated submission and never
// updated or deleted.
type Build struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Reponame        string `gorm:"not null;index;index:idx_builds_repo_version,priority:1" json:"reponame"`
	Datetime        string `gorm:"not null" json:"datetime"`
	Result          int    `gorm:"not null" json:"result"`
	Config          string `gorm:"type:text" json:"config"`
	BuilderVersion  string `json:"builder_version"`
	IsabelleVersion string `gorm:"index:idx_builds_repo_version,priority:2" json:"isabelle_version"`
}

// TableName returns the table name.
func (*Build) TableName() string {
	return "builds"
}

// Result codes as submitted by the CI pipeline. Any other value is
// displayed as unknown.
const (
	ResultSuccess = 0
	ResultFailure = 1
)
