package payments

import (
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/migrator"
	"gorm.io/gorm/schema"
)

// testDialector wraps the glebarez sqlite dialector so MySQL column tags
// like `type:datetime(3)` migrate as plain DATETIME: the pure-Go sqlite
// driver only converts TEXT back into time.Time when the declared column
// type is exactly DATE/DATETIME/TIMESTAMP, without a precision suffix.
type testDialector struct {
	gorm.Dialector
}

func openTestSQLite() gorm.Dialector {
	return testDialector{sqlite.Open(":memory:")}
}

func (d testDialector) DataTypeOf(f *schema.Field) string {
	if t := d.Dialector.DataTypeOf(f); !strings.HasPrefix(strings.ToLower(t), "datetime(") {
		return t
	}
	return "datetime"
}

func (d testDialector) Migrator(db *gorm.DB) gorm.Migrator {
	return sqlite.Migrator{Migrator: migrator.Migrator{Config: migrator.Config{
		DB:                          db,
		Dialector:                   d,
		CreateIndexAfterCreateTable: true,
	}}}
}

func (d testDialector) Translate(err error) error {
	if t, ok := d.Dialector.(gorm.ErrorTranslator); ok {
		return t.Translate(err)
	}
	return err
}
