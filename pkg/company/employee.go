package company

import (
	"context"
	"fmt"

	"github.com/ammar0144/orgmap/pkg/db"
	"github.com/ammar0144/orgmap/pkg/repository"
)

// Employee works in at most one department. DepartmentID 0 means none and is stored as NULL.
type Employee struct {
	ID           int64                 `gorm:"column:id;primaryKey" msgpack:"id"`
	Name         string                `gorm:"column:name" msgpack:"name"`
	JobTitle     string                `gorm:"column:job_title" msgpack:"job_title"`
	DepartmentID repository.ForeignKey `gorm:"column:department_id" msgpack:"department_id"`
}

// EmployeeSchema maps Employee to the employees table.
// department_id references departments(id), so departments must exist first.
var EmployeeSchema = repository.Schema{
	Table:      repository.TableNameFor("Employee"),
	PrimaryKey: "id",
	Columns: []db.ColumnDef{
		{Name: "name", Type: db.ColumnText},
		{Name: "job_title", Type: db.ColumnText},
		{Name: "department_id", Type: db.ColumnInteger},
	},
	ForeignKeys: []db.ForeignKeyDef{
		{Column: "department_id", RefTable: DepartmentSchema.Table, RefColumn: "id"},
	},
}

func (Employee) TableName() string { return EmployeeSchema.Table }

func (e *Employee) GetPrimaryKeyValue() int64 { return e.ID }

func (e *Employee) SetPrimaryKeyValue(id int64) { e.ID = id }

func (e *Employee) Fields() []interface{} {
	return []interface{}{&e.Name, &e.JobTitle, &e.DepartmentID}
}

// Employees is the repository for Employee
type Employees struct {
	*repository.GenericRepository[Employee, *Employee]
	departments *Departments
}

var _ repository.Repository[*Employee] = (*Employees)(nil)

// NewEmployees creates the Employee repository inside session.
// departments resolves the Department accessor and must share the session.
func NewEmployees(session *repository.Session, departments *Departments) *Employees {
	return &Employees{
		GenericRepository: repository.NewGenericRepository[Employee](session, EmployeeSchema),
		departments:       departments,
	}
}

// Create builds an employee and saves it. A departmentID of 0 leaves the
// employee without a department. The database rejects a departmentID that
// names no department; check with db.IsForeignKeyViolation.
func (r *Employees) Create(ctx context.Context, name, jobTitle string, departmentID int64) (*Employee, error) {
	e := &Employee{Name: name, JobTitle: jobTitle, DepartmentID: repository.ForeignKey(departmentID)}
	if err := r.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Department loads the employee's department, or nil when it has none
func (r *Employees) Department(ctx context.Context, e *Employee) (*Department, error) {
	if e == nil || !e.DepartmentID.IsSet() {
		return nil, nil
	}
	if r.departments == nil {
		return nil, fmt.Errorf("employees repository has no departments repository")
	}
	return r.departments.FindByID(ctx, int64(e.DepartmentID))
}

// ByDepartment returns the employees of one department ordered by id.
// departmentID 0 selects employees without a department.
func (r *Employees) ByDepartment(ctx context.Context, departmentID int64) ([]*Employee, error) {
	if departmentID == 0 {
		return r.FindWhere(ctx, "department_id", db.IsNull, nil)
	}
	return r.FindWhere(ctx, "department_id", db.Equal, departmentID)
}
