package topic

// Role and grade identifiers used by the built-in catalog.
const (
	RoleSupportSpecialist = "support-specialist"
	RoleSeniorSpecialist  = "senior-specialist"

	GradeJunior = "junior"
	GradeMiddle = "middle"
	GradeSenior = "senior"
)

func score(v float64) *float64 { return &v }

// Default returns the built-in banking support catalog.
func Default() *Catalog {
	c, err := New(defaultTopics())
	if err != nil {
		panic(err)
	}
	return c
}

func defaultTopics() []Topic {
	return []Topic{
		{
			ID: "fund-return", Name: "Возврат средств",
			ShortDescription: "Оформление и сроки возврата средств по операциям.",
			Relevance:        &Relevance{},
		},
		{
			ID: "card-block", Name: "Блокировка карты",
			ShortDescription: "Временная и постоянная блокировка карты по запросу клиента.",
			Progress:         Progress{SessionsPercent: 30, AttemptsCount: 3, AverageScore: score(7.9)},
			Relevance:        &Relevance{RoleIDs: []string{RoleSupportSpecialist}},
			Opener:           "Добрый день! Подскажите, пожалуйста, как заблокировать карту — потеряла её вчера.",
		},
		{
			ID: "credit-limit", Name: "Кредитный лимит",
			ShortDescription: "Изменение лимита, условия и документы.",
		},
		{
			ID: "pin-change", Name: "Смена ПИН-кода",
			ShortDescription: "Способы смены ПИН-кода в приложении и банкомате.",
			Relevance:        &Relevance{GradeIDs: []string{GradeJunior}},
		},
		{
			ID: "transfers", Name: "Переводы",
			ShortDescription: "Переводы между счетами, другим клиентам, в другие банки.",
			Relevance: &Relevance{
				RoleIDs:  []string{RoleSupportSpecialist},
				GradeIDs: []string{GradeJunior, GradeMiddle},
			},
		},
		{
			ID: "debit-cards", Name: "Дебетовые карты",
			ShortDescription: "Выпуск, доставка и обслуживание дебетовых карт.",
		},
		{
			ID: "loans", Name: "Кредиты",
			ShortDescription: "Оформление кредита, погашение, досрочное погашение.",
			Relevance:        &Relevance{GradeIDs: []string{GradeMiddle, GradeSenior}},
		},
		{
			ID: "investments", Name: "Инвестиции",
			ShortDescription: "Инвестиционные продукты и открытие счёта.",
			Relevance:        &Relevance{RoleIDs: []string{RoleSeniorSpecialist}},
		},
		{
			ID: "insurance", Name: "Страхование",
			ShortDescription: "Подключение и условия страховых программ.",
		},
		{
			ID: "mobile-banking", Name: "Мобильный банк",
			ShortDescription: "Вход, восстановление доступа, настройки приложения.",
			Relevance:        &Relevance{},
		},
		{
			ID: "disputed-transactions", Name: "Оспаривание операций",
			ShortDescription: "Порядок оспаривания и расследования операций.",
			Relevance:        &Relevance{RoleIDs: []string{RoleSeniorSpecialist}, GradeIDs: []string{GradeSenior}},
		},
		{
			ID: "limits", Name: "Лимиты",
			ShortDescription: "Лимиты на операции и их изменение.",
			Relevance:        &Relevance{GradeIDs: []string{GradeJunior}},
		},
		{
			ID: "operation-confirmation", Name: "Подтверждение операции",
			ShortDescription: "Способы подтверждения платежей и переводов.",
		},
		{
			ID: "bonuses", Name: "Бонусы",
			ShortDescription: "Накопление и списание бонусов, программа лояльности.",
		},
		{
			ID: "account-closure", Name: "Закрытие счёта",
			ShortDescription: "Условия и порядок закрытия счёта и карты.",
		},
	}
}
