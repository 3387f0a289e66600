package employee

// Employee is the field staff profile that authors daily progress records.
type Employee struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}
