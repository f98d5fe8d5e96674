package pipeline

import (
	"fmt"
	"strings"
)

// System prompts for the three model calls.
const (
	planSystemPrompt     = "Ты помощник по структурированию технических заданий для поиска одного поставщика."
	filterSystemPrompt   = "Ты эксперт по закупкам и умеешь отбирать релевантных поставщиков по результатам поиска."
	validateSystemPrompt = "Ты эксперт по закупкам и оцениваешь релевантность поставщиков по содержимому их сайта."
)

const planInstructions = `Твоя задача — преобразовать техническое задание с длинным перечнем однотипных товаров
в компактное, но информативное ТЗ для поиска ОДНОГО поставщика, который сможет поставить весь перечень.

Важно:
- Не нужно перечислять все позиции поштучно.
- Нужно сохранить информацию о специфике ассортимента и требований, но более агрегированно.

СХЕМА ОТВЕТА (JSON):

{
  "item": "обобщённое наименование закупки в 1–2 строках",
  "product_groups": [
    {
      "group_name": "краткое название группы",
      "short_description": "краткое описание специфики и диапазонов характеристик (2–3 предложения)"
    }
  ],
  "search_queries": [
    "список реалистичных поисковых запросов для Яндекс-поиска поставщиков/дистрибьюторов/производителей, 2-3 запроса на РУССКОМ, с ключевыми словами вида: 'поставщик', 'опт', 'официальный дилер', 'производитель', 'каталог', 'дистрибьютор', 'купить'"
  ]
}

Правила:
- Не выдумывай технических характеристик, используй только то, что логично следует из исходного ТЗ.
- Пиши коротко, но сохрани разнообразие ассортимента: выдели отдельные группы если они есть, иначе сделай одну группу.
- Все формулировки — на русском языке.
- Верни ТОЛЬКО JSON по указанной схеме, без пояснений и комментариев.
- Отсортируй "search_queries" от самого релевантного.`

const filterInstructions = `Вы — помощник по поиску прямых поставщиков (производителей или официальных дистрибьюторов)
для следующей закупки.

ТЕХНИЧЕСКОЕ ЗАДАНИЕ (сводка):
%s

ВАША ЗАДАЧА:
Оценить, является ли данный поисковый результат потенциально релевантным поставщиком
для ЭТОЙ закупки.

ПОИСКОВЫЙ РЕЗУЛЬТАТ:
%s
**%s**
%s

КРИТЕРИИ РЕЛЕВАНТНОСТИ:
- "Релевантно", если по тексту видно, что сайт относится к:
  - производителю, заводу, фабрике;
  - официальному дилеру / дистрибьютору;
  - оптовому поставщику/дистрибьютору нужного ассортимента.
- "НЕ релевантно", если:
  - это маркетплейсы и агрегаторы (Ozon, Wildberries, Яндекс.Маркет, Aliexpress, Alibaba, Amazon и т.п.);
  - доски объявлений, каталоги-агрегаторы, сервисы объявлений;
  - блоги, статьи, справочники, энциклопедии;
  - сайт явно про другую сферу.

ФОРМАТ ОТВЕТА — ТОЛЬКО JSON:
{
  "is_relevant": true/false,
  "reason": "краткое объяснение на русском"
}`

const validateInstructions = `Ты — эксперт по закупкам.
Согласно техническому заданию тебе нужно закупить:
%s

Тебе нужно определить, работает ли компания в нужной сфере/отрасли.
ДОСТУПНЫЕ ДАННЫЕ САЙТА (текст, полученный с разных страниц):

%s

ТВОЯ ЗАДАЧА:
На основе ТЗ и текстов сайта решить, подходит ли компания как поставщик для этой закупки.

КРИТЕРИИ (НЕ БУДЬ ПРИДИРЧИВ):
- "Да" (релевантна), если:
  * компания производит или поставляет товары, сходные с перечнем из ТЗ;
  * или явно указаны оптовые поставки/дистрибьюция нужной номенклатуры;
- "Нет", если:
  * другая отрасль/сфера;
  * или из текста видно, что это не производитель/поставщик нужного типа товара.

Требуется также по возможности вытащить название компании с сайта.

ФОРМАТ ОТВЕТА — СТРОГО JSON (без комментариев, без пояснений вокруг):
{
  "is_relevant": true/false,
  "reason": "краткое объяснение на русском, почему да/нет",
  "name": "название компании, если удалось определить, иначе null"
}`

func planPrompt(termsText string) string {
	return planInstructions + "\n\nИсходное техническое задание:\n" + termsText
}

func filterPrompt(validationSpec, link, title, text string) string {
	return fmt.Sprintf(filterInstructions, validationSpec, link, title, text)
}

func validatePrompt(validationSpec, siteTextBlock string) string {
	return fmt.Sprintf(validateInstructions, validationSpec, siteTextBlock)
}

// buildSiteTextBlock assembles the per-section site texts into the prompt
// body, labeling each section and dropping empty ones.
func buildSiteTextBlock(mainText, aboutText, catalogText string) string {
	var blocks []string
	if t := strings.TrimSpace(mainText); t != "" {
		blocks = append(blocks, "=== ГЛАВНАЯ СТРАНИЦА ===\n"+t+"\n")
	}
	if t := strings.TrimSpace(aboutText); t != "" {
		blocks = append(blocks, "=== РАЗДЕЛ 'О КОМПАНИИ' ===\n"+t+"\n")
	}
	if t := strings.TrimSpace(catalogText); t != "" {
		blocks = append(blocks, "=== РАЗДЕЛ 'КАТАЛОГ / ПРОДУКЦИЯ' ===\n"+t)
	}
	if len(blocks) == 0 {
		return "Текстовое содержимое сайта практически отсутствует."
	}
	return strings.Join(blocks, "\n\n")
}
