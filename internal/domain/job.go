package domain

// ExpectedAnswers — эталонные ответы проб для сверки вердикта на стороне бэкенда.
// Runner не интерпретирует содержимое, пересылает как есть.
type ExpectedAnswers struct {
	VATPercent float64  `json:"vat_percent" mapstructure:"vat_percent"`
	Plug       []string `json:"plug" mapstructure:"plug"`
	Emergency  []string `json:"emergency" mapstructure:"emergency"`
}

// TestJob — полные параметры одного тестового задания.
// Имена JSON-полей — проводной контракт бэкенда, менять нельзя.
type TestJob struct {
	Provider string          `json:"provider"`
	Model    string          `json:"model"`
	Grounded bool            `json:"grounded"`
	Country  string          `json:"country"`
	ALSBlock string          `json:"als_block"`
	Expected ExpectedAnswers `json:"expected"`
}

// Key возвращает ключ дедупликации задания.
func (j TestJob) Key() TestKey {
	return TestKey{Country: j.Country, Model: j.Model, Grounded: j.Grounded}
}

// CountrySpec — запись каталога стран: локальный контекст (ALS)
// и эталонные значения проб. Загружается из конфигурации.
type CountrySpec struct {
	Code     string          `json:"code" mapstructure:"code"`
	ALSBlock string          `json:"als_block" mapstructure:"als_block"`
	Expected ExpectedAnswers `json:"expected" mapstructure:"expected"`
}
