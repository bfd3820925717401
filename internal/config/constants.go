package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/magiconair/properties"
)

// Constants holds the business vocabulary of the migration backend: user-facing
// messages, procedure and table names, script paths and SQL templates. They are read
// once at start-up from commercialconstants.properties; every key has a default so a
// deployment only overrides what differs.
type Constants struct {
	// Messages
	UploadSuccess         string `properties:"upload.success.message,default=Success!!! %d records were securely stored in the database."`
	UploadNoFiles         string `properties:"upload.no.files.message,default=Please select at least one CSV file to upload."`
	JarSuccess            string `properties:"success.message,default=Success! Your file for submission to the CICs has been generated."`
	JarRecordCount        string `properties:"success.record.count,default=The file contains %d records."`
	ErrLoadingConfig      string `properties:"error.loading.configuration,default=Error loading configuration: "`
	ErrLoadingHeadSeg     string `properties:"error.loading.headseg.properties,default=Error loading headSeg.properties: "`
	ErrRunningJar         string `properties:"error.running.jar,default=Error running the JAR file."`
	ErrExecutingJar       string `properties:"error.executing.jar,default=Error executing the JAR file: "`
	ErrConversionPrefix   string `properties:"error.conversion.prefix,default=Error: "`
	LineBreak             string `properties:"line.break,default=\n"`
	NoReportData          string `properties:"report.no.data,default=No data found for the query."`
	ReportQueryNotFound   string `properties:"report.query.not.found,default=Error: Query not found in properties file."`
	ReportQueryKey        string `properties:"report.query.key,default=query.select.status"`
	ReportFileName        string `properties:"report.file.name,default=status_table.csv"`
	QueriesPropertiesFile string `properties:"queries.properties.file,default=queries.properties"`
	LogFilePathKey        string `properties:"log.file.path,default=log.file.path"`

	// Jar invocation
	ApplicationProperties string `properties:"application.properties.filename,default=application.properties"`
	HeadSegProperties     string `properties:"headSeg.properties.filename,default=headSeg.properties"`
	JavaCommand           string `properties:"java.command,default=java"`
	JarOption             string `properties:"jar.option,default=-jar"`

	// Datasource property names in application.properties
	DatasourceURLProperty      string `properties:"spring.datasource.url.property,default=spring.datasource.url"`
	DatasourceUsernameProperty string `properties:"spring.datasource.username.property,default=spring.datasource.username"`
	DatasourcePasswordProperty string `properties:"spring.datasource.password.property,default=spring.datasource.password"`
	DDLAutoProperty            string `properties:"spring.jpa.hibernate.ddl-auto.property,default=spring.jpa.hibernate.ddl-auto"`

	// Datasource environment variable names for the jar
	DatasourceURLEnv      string `properties:"spring.datasource.env.url,default=SPRING_DATASOURCE_URL"`
	DatasourceUsernameEnv string `properties:"spring.datasource.env.username,default=SPRING_DATASOURCE_USERNAME"`
	DatasourcePasswordEnv string `properties:"spring.datasource.env.password,default=SPRING_DATASOURCE_PASSWORD"`
	DDLAutoEnv            string `properties:"spring.jpa.hibernate.ddl-auto.env,default=SPRING_JPA_HIBERNATE_DDL_AUTO"`

	// SQL templates
	DropQuery             string `properties:"drop.query,default=DROP PROCEDURE IF EXISTS "`
	DropProcedureTemplate string `properties:"drop.procedure.template,default=DROP PROCEDURE IF EXISTS %s"`
	DropFunctionTemplate  string `properties:"drop.function.template,default=DROP FUNCTION IF EXISTS %s"`
	CallProcedureTemplate string `properties:"call.procedure.template,default=CALL %s()"`
	CountRowsTemplate     string `properties:"call.procedure.procedure.template,default=SELECT %s($1)"`
	CountQuery            string `properties:"count.query,default=SELECT COUNT(*) FROM "`
	TruncateTableTemplate string `properties:"sql.truncate.table,default=TRUNCATE TABLE %s"`
	DuplicateTablesCall   string `properties:"duplicate.tables.procedure.call,default=CALL duplicate_tables($1)"`

	// Data conversion procedures
	TruncateAndDropProc string `properties:"truncate.and.drop.proc,default=truncate_and_drop_tables"`
	MoveDataProc        string `properties:"move.data.proc,default=move_data"`
	TruncateSQLPath     string `properties:"truncate.sql.path,default=truncate_and_drop_tables.sql"`
	MigrateSQLPath      string `properties:"migrate.sql.path,default=move_data.sql"`

	// Jar run procedures
	TruncateCreateTableProc string `properties:"app.truncate.create.table.procedure,default=truncate_create_table"`
	TruncateCreateTablePath string `properties:"app.truncate.create.table.path,default=truncate_create_table.sql"`
	CountRowsFunction       string `properties:"app.count-rows-table,default=count_rows_table"`
	CountRowsFunctionPath   string `properties:"app.count-rows-table-path,default=count_rows_table.sql"`
	StatusTable             string `properties:"app.status-table,default=status_table"`

	// Maintenance procedures
	DuplicateTablesProc string `properties:"app.duplicate-tables-procedure,default=duplicate_tables"`
	DuplicateTablesPath string `properties:"app.duplicate-table-path,default=duplicate_tables.sql"`
	DropBackupProc      string `properties:"app.drop-backup-procedure,default=drop_backup_tables"`
	DropBackupPath      string `properties:"app.drop-backup-path,default=drop_backup_tables.sql"`

	// Segment staging tables
	BorrowerTable       string `properties:"borrower.seg.table,default=borrower_seg"`
	AddressTable        string `properties:"address.seg.commercial.table,default=address_seg_commercial"`
	CreditFacilityTable string `properties:"credit.facility.seg.table,default=credit_facility_seg"`
	DishonourTable      string `properties:"dishonour.of.cheque.seg.table,default=dishonour_of_cheque_seg"`
	GuarantorTable      string `properties:"guarantor.seg.table,default=guarantor_seg"`
	RelationshipTable   string `properties:"relationship.seg.table,default=relationship_seg"`
	SecurityTable       string `properties:"security.seg.table,default=security_seg"`

	// Segment labels
	BorrowerLabel       string `properties:"segment.borrower,default=Borrower Segment: "`
	AddressLabel        string `properties:"segment.address,default=Address Segment: "`
	CreditFacilityLabel string `properties:"segment.creditfacility,default=Credit Facility Segment: "`
	DishonourLabel      string `properties:"segment.dishonour,default=Dishonour of Cheque Segment: "`
	GuarantorLabel      string `properties:"segment.guarantor,default=Guarantor Segment: "`
	RelationshipLabel   string `properties:"segment.relationship,default=Relationship Segment: "`
	SecurityLabel       string `properties:"segment.security,default=Security Segment: "`

	// Segment migrate scripts and procedures
	BorrowerMigrateSQL       string `properties:"migrate.sql.borrower,default=migrate_borrower.sql"`
	BorrowerProc             string `properties:"procedure.name.borrower,default=migrate_borrower"`
	AddressMigrateSQL        string `properties:"migrate.sql.address,default=migrate_address.sql"`
	AddressProc              string `properties:"procedure.name.address,default=migrate_address"`
	CreditFacilityMigrateSQL string `properties:"migrate.sql.creditfacility,default=migrate_credit_facility.sql"`
	CreditFacilityProc       string `properties:"procedure.name.creditfacility,default=migrate_credit_facility"`
	DishonourMigrateSQL      string `properties:"migrate.sql.dishonour,default=migrate_dishonour.sql"`
	DishonourProc            string `properties:"procedure.name.dishonour,default=migrate_dishonour"`
	GuarantorMigrateSQL      string `properties:"migrate.sql.guarantor,default=migrate_guarantor.sql"`
	GuarantorProc            string `properties:"procedure.name.guarantor,default=migrate_guarantor"`
	RelationshipMigrateSQL   string `properties:"migrate.sql.relationship,default=migrate_relationship.sql"`
	RelationshipProc         string `properties:"procedure.name.relationship,default=migrate_relationship"`
	SecurityMigrateSQL       string `properties:"migrate.sql.security,default=migrate_security.sql"`
	SecurityProc             string `properties:"procedure.name.security,default=migrate_security"`
}

// DefaultConstants returns every constant at its default value.
func DefaultConstants() *Constants {
	c, err := decodeConstants(properties.NewProperties())
	if err != nil {
		// Defaults are compiled in; a failure here is a programming error.
		panic(fmt.Sprintf("default constants: %v", err))
	}
	return c
}

// LoadConstants reads the constants file at path. A missing file yields the
// defaults; an unreadable or malformed file is an error.
func LoadConstants(path string) (*Constants, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return DefaultConstants(), nil
	}

	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("load constants %s: %w", path, err)
	}
	return decodeConstants(p)
}

func decodeConstants(p *properties.Properties) (*Constants, error) {
	c := &Constants{}
	if err := p.Decode(c); err != nil {
		return nil, fmt.Errorf("decode constants: %w", err)
	}
	// Struct tag defaults are not unescaped the way file values are.
	c.LineBreak = escapes.Replace(c.LineBreak)
	return c, nil
}

var escapes = strings.NewReplacer(`\r`, "\r", `\n`, "\n", `\t`, "\t")
