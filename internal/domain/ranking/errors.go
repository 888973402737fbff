package ranking

import "errors"

// Ошибки домена рейтинга. Проверяются через errors.Is.
var (
	// ErrUpstreamUnavailable — провайдер статистики не вернул пригодных данных.
	ErrUpstreamUnavailable = errors.New("guild stats unavailable")

	// ErrPersistenceCorrupt — сохранённые данные повреждены.
	// Отсутствие данных ошибкой не считается: хранилище возвращает пустое состояние.
	ErrPersistenceCorrupt = errors.New("persisted snapshot is corrupt")

	// ErrUnknownCategory — категория вне перечисления.
	ErrUnknownCategory = errors.New("unknown ranking category")

	ErrUnknownStyle = errors.New("unknown ranking style")
	ErrInvalidDay   = errors.New("invalid calendar date")
)
