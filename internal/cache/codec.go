package cache

import (
	"encoding/json"
	"fmt"
)

// encode переводит значение в текстовое представление хранилища:
// строки сохраняются как есть, всё остальное - как JSON.
func encode(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache value: %w", err)
	}
	return string(data), nil
}

// decode разбирает текстовое представление в dest.
// Для *string и *any нераспознанное содержимое возвращается как сырая строка.
// Для остальных типов ошибка разбора возвращается вызывающему, запись считается отсутствующей.
func decode(raw string, dest any) error {
	switch d := dest.(type) {
	case nil:
		return nil
	case *string:
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			*d = raw
			return nil
		}
		*d = s
		return nil
	case *any:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			*d = raw
			return nil
		}
		*d = v
		return nil
	default:
		if err := json.Unmarshal([]byte(raw), dest); err != nil {
			return fmt.Errorf("failed to decode cache value: %w", err)
		}
		return nil
	}
}
