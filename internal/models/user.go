package models

// Role - роль пользователя из токена.
type Role string

const (
	AdminRole       Role = "admin" // Имеет доступ ко всем маршрутам
	ProcurementRole Role = "procurement"
	VendorRole      Role = "vendor"
	DispatcherRole  Role = "dispatcher"
	StaffRole       Role = "staff"
	PatientRole     Role = "patient"
)

// User - аутентифицированный пользователь запроса.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// HasRole проверяет роль пользователя, администратор проходит всегда.
func (u User) HasRole(roles ...Role) bool {
	if u.Role == AdminRole {
		return true
	}
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// DisplayName возвращает имя для журнала действий.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
