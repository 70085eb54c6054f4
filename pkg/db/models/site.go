package models

import "time"

// Site is a storefront tenant registered in the directory database.
type Site struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	DomainName string    `gorm:"column:domain_name;not null;uniqueIndex"`
	DBName     string    `gorm:"column:db_name;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Site) TableName() string { return "sites" }
