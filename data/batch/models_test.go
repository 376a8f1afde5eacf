package batch

import (
	"time"

	"github.com/google/uuid"
)

type country struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Code string `db:"code"`
}

type author struct {
	ID      int64    `gorm:"column:id;primaryKey;autoIncrement"`
	Name    string   `db:"name"`
	Country *country `batch:"belongsTo"`
	Books   []*book  `batch:"hasMany;cascade"`
}

type book struct {
	ID     int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Title  string  `db:"title"`
	Author *author `batch:"belongsTo"`
}

type event struct {
	ID       uuid.UUID `gorm:"primaryKey"`
	Name     string
	Labels   map[string]string
	Happened time.Time
	Active   bool
}

// testEntity 轻量写入路径的导出记录
type testEntity struct {
	ID     int
	Name   *string
	Active bool
}

func (e *testEntity) BatchInsertData() Payload {
	var name any
	if e.Name != nil {
		name = *e.Name
	}
	return Payload{{Name: "id", Value: e.ID}, {Name: "name", Value: name}, {Name: "active", Value: e.Active}}
}

func strPtr(s string) *string { return &s }
