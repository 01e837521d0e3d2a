package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "insights"
)

const (
	// RedisKeySnapshot — последний удачный снапшот аналитики (JSON).
	// Переживает рестарт консоли: новый процесс сразу отдает прошлые данные.
	RedisKeySnapshot = RedisNamespace + ":last_snapshot"
)
