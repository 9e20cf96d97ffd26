package company

import (
	"context"

	"github.com/ammar0144/orgmap/pkg/db"
	"github.com/ammar0144/orgmap/pkg/repository"
)

// Department is an organisational unit. ID is 0 until the department is saved.
type Department struct {
	ID       int64  `gorm:"column:id;primaryKey" msgpack:"id"`
	Name     string `gorm:"column:name" msgpack:"name"`
	Location string `gorm:"column:location" msgpack:"location"`
}

// DepartmentSchema maps Department to the departments table
var DepartmentSchema = repository.Schema{
	Table:      repository.TableNameFor("Department"),
	PrimaryKey: "id",
	Columns: []db.ColumnDef{
		{Name: "name", Type: db.ColumnText},
		{Name: "location", Type: db.ColumnText},
	},
}

func (Department) TableName() string { return DepartmentSchema.Table }

func (d *Department) GetPrimaryKeyValue() int64 { return d.ID }

func (d *Department) SetPrimaryKeyValue(id int64) { d.ID = id }

func (d *Department) Fields() []interface{} {
	return []interface{}{&d.Name, &d.Location}
}

// Departments is the repository for Department
type Departments struct {
	*repository.GenericRepository[Department, *Department]
}

var _ repository.Repository[*Department] = (*Departments)(nil)

// NewDepartments creates the Department repository inside session
func NewDepartments(session *repository.Session) *Departments {
	return &Departments{
		GenericRepository: repository.NewGenericRepository[Department](session, DepartmentSchema),
	}
}

// Create builds a department and saves it
func (r *Departments) Create(ctx context.Context, name, location string) (*Department, error) {
	d := &Department{Name: name, Location: location}
	if err := r.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}
