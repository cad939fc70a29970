package rdb

// DomainRow is the persistence model for a zone.
// Table name: domains
type DomainRow struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;type:varchar(255);not null;uniqueIndex"`
	Type string `gorm:"column:type;type:varchar(8);not null;default:NATIVE"`
}

func (DomainRow) TableName() string { return "domains" }

// RecordRow is the persistence model for a resource record.
// Only the columns the reconcilers manage are mapped so inserts leave
// PowerDNS-specific columns (auth, disabled, ordername) at their defaults.
// Table name: records
type RecordRow struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	DomainID int64  `gorm:"column:domain_id;index"`
	Name     string `gorm:"column:name;type:varchar(255);index:nametype_index"`
	Type     string `gorm:"column:type;type:varchar(10);index:nametype_index"`
	Content  string `gorm:"column:content;type:text"`
	TTL      int    `gorm:"column:ttl"`
	Prio     int    `gorm:"column:prio"`
}

func (RecordRow) TableName() string { return "records" }
