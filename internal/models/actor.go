package models

// Role - роль участника площадки.
type Role string

const (
	HomeownerRole  Role = "homeowner"
	ContractorRole Role = "contractor"
	SystemRole     Role = "system" // Внутренние действия: просмотр при чтении, истечение срока
)

// Valid проверяет роль, полученную из токена. Системная роль токеном не выдается.
func (r Role) Valid() bool {
	return r == HomeownerRole || r == ContractorRole
}

// Actor - аутентифицированный участник, от имени которого выполняется операция.
type Actor struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// SystemActor выполняет переходы, не инициированные пользователем.
var SystemActor = Actor{UserID: "system", Role: SystemRole}
