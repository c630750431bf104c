package swap

import "errors"

// Ошибки доменной логики обменов. Сервисы преобразуют их в HTTP-статусы,
// websocket-слой — в кадры ошибок для клиента.
var (
	// ErrNotFound — предложение обмена не существует
	ErrNotFound = errors.New("предложение обмена не найдено")

	// ErrForbidden — участник не имеет права на этот переход статуса
	ErrForbidden = errors.New("недостаточно прав для изменения статуса предложения")

	// ErrInvalidTransition — переход невозможен из текущего статуса
	ErrInvalidTransition = errors.New("недопустимый переход статуса предложения")

	// ErrConflict — проигран конкурентный переход на том же предложении
	ErrConflict = errors.New("предложение обмена было изменено параллельным запросом")

	// ErrSelfSwap — попытка предложить обмен самому себе
	ErrSelfSwap = errors.New("нельзя предложить обмен самому себе")

	// ErrSkillNotFound — один из навыков не существует
	ErrSkillNotFound = errors.New("навык не найден")

	// ErrSkillOwnership — навык не принадлежит нужной стороне обмена
	ErrSkillOwnership = errors.New("навык не принадлежит участнику обмена")

	// ErrDuplicate — такое предложение уже находится в ожидании
	ErrDuplicate = errors.New("такое предложение обмена уже существует")
)
