// Package models - closed choice types
package models

// Enum is implemented by every closed choice type so that request
// validation can reject unknown values generically.
type Enum interface {
	Valid() bool
}

// Language is a supported content/interface language
type Language string

const (
	LanguageEnglish   Language = "en"
	LanguageMalayalam Language = "ml"
)

func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageMalayalam
}

// SoilType is the primary soil type of a farm
type SoilType string

const (
	SoilClay   SoilType = "clay"
	SoilSandy  SoilType = "sandy"
	SoilLoamy  SoilType = "loamy"
	SoilSilt   SoilType = "silt"
	SoilPeaty  SoilType = "peaty"
	SoilChalky SoilType = "chalky"
)

func (s SoilType) Valid() bool {
	switch s {
	case SoilClay, SoilSandy, SoilLoamy, SoilSilt, SoilPeaty, SoilChalky:
		return true
	}
	return false
}

// ActivityType is the kind of work recorded in a diary entry
type ActivityType string

const (
	ActivitySowing      ActivityType = "sowing"
	ActivityFertilizing ActivityType = "fertilizing"
	ActivityWatering    ActivityType = "watering"
	ActivityHarvesting  ActivityType = "harvesting"
	ActivityPestControl ActivityType = "pest_control"
	ActivityWeeding     ActivityType = "weeding"
	ActivityPruning     ActivityType = "pruning"
	ActivityIrrigation  ActivityType = "irrigation"
	ActivityOther       ActivityType = "other"
)

func (a ActivityType) Valid() bool {
	switch a {
	case ActivitySowing, ActivityFertilizing, ActivityWatering, ActivityHarvesting,
		ActivityPestControl, ActivityWeeding, ActivityPruning, ActivityIrrigation, ActivityOther:
		return true
	}
	return false
}

// EntryType is the direction of a ledger entry
type EntryType string

const (
	EntryIncome  EntryType = "income"
	EntryExpense EntryType = "expense"
)

func (e EntryType) Valid() bool {
	return e == EntryIncome || e == EntryExpense
}

// IncomeCategories are the categories accepted for income entries
var IncomeCategories = map[string]string{
	"crop_sale":          "Crop Sale",
	"livestock_sale":     "Livestock Sale",
	"dairy_products":     "Dairy Products",
	"government_subsidy": "Government Subsidy",
	"loan":               "Loan",
	"other_income":       "Other Income",
}

// ExpenseCategories are the categories accepted for expense entries
var ExpenseCategories = map[string]string{
	"seeds":          "Seeds",
	"fertilizer":     "Fertilizer",
	"pesticides":     "Pesticides",
	"fuel":           "Fuel",
	"labor":          "Labor",
	"machinery":      "Machinery",
	"irrigation":     "Irrigation",
	"transportation": "Transportation",
	"loan_repayment": "Loan Repayment",
	"insurance":      "Insurance",
	"other_expense":  "Other Expense",
}

// AllowsCategory reports whether category belongs to the entry type's set
func (e EntryType) AllowsCategory(category string) bool {
	switch e {
	case EntryIncome:
		_, ok := IncomeCategories[category]
		return ok
	case EntryExpense:
		_, ok := ExpenseCategories[category]
		return ok
	}
	return false
}

// PaymentMethod is how a ledger entry was settled
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCheque       PaymentMethod = "cheque"
	PaymentUPI          PaymentMethod = "upi"
	PaymentOther        PaymentMethod = "other"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentBankTransfer, PaymentCheque, PaymentUPI, PaymentOther:
		return true
	}
	return false
}

// AlertType is the weather hazard an alert warns about
type AlertType string

const (
	AlertHeavyRain      AlertType = "heavy_rain"
	AlertDroughtWarning AlertType = "drought_warning"
	AlertFrostWarning   AlertType = "frost_warning"
	AlertHighWind       AlertType = "high_wind"
	AlertHeatwave       AlertType = "heatwave"
	AlertCyclone        AlertType = "cyclone"
	AlertHail           AlertType = "hail"
	AlertFlood          AlertType = "flood"
)

func (a AlertType) Valid() bool {
	switch a {
	case AlertHeavyRain, AlertDroughtWarning, AlertFrostWarning, AlertHighWind,
		AlertHeatwave, AlertCyclone, AlertHail, AlertFlood:
		return true
	}
	return false
}

// Severity is ordered low < medium < high < critical
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the position of the severity in its ordering, or -1
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// AtLeast returns the severities ranked at or above s
func (s Severity) AtLeast() []Severity {
	all := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	if !s.Valid() {
		return all
	}
	return all[s.Rank():]
}

// APIType identifies an external provider in the usage log
type APIType string

const (
	APIGemini      APIType = "gemini"
	APIOpenAI      APIType = "openai"
	APIOpenWeather APIType = "openweather"
	APITwilio      APIType = "twilio"
	APISMTP        APIType = "smtp"
)

func (a APIType) Valid() bool {
	switch a {
	case APIGemini, APIOpenAI, APIOpenWeather, APITwilio, APISMTP:
		return true
	}
	return false
}

// ArticleCategory is the topic of a knowledge article
type ArticleCategory string

const (
	CategoryCropCultivation   ArticleCategory = "crop_cultivation"
	CategoryPestManagement    ArticleCategory = "pest_management"
	CategorySoilHealth        ArticleCategory = "soil_health"
	CategoryIrrigation        ArticleCategory = "irrigation"
	CategoryFertilizers       ArticleCategory = "fertilizers"
	CategoryWeatherManagement ArticleCategory = "weather_management"
	CategoryPostHarvest       ArticleCategory = "post_harvest"
	CategoryMarketing         ArticleCategory = "marketing"
	CategoryGovernmentSchemes ArticleCategory = "government_schemes"
	CategoryOrganicFarming    ArticleCategory = "organic_farming"
	CategoryLivestock         ArticleCategory = "livestock"
	CategoryGeneral           ArticleCategory = "general"
)

func (c ArticleCategory) Valid() bool {
	switch c {
	case CategoryCropCultivation, CategoryPestManagement, CategorySoilHealth, CategoryIrrigation,
		CategoryFertilizers, CategoryWeatherManagement, CategoryPostHarvest, CategoryMarketing,
		CategoryGovernmentSchemes, CategoryOrganicFarming, CategoryLivestock, CategoryGeneral:
		return true
	}
	return false
}

// MessageType is the author of a chat message
type MessageType string

const (
	MessageUser   MessageType = "user"
	MessageBot    MessageType = "bot"
	MessageSystem MessageType = "system"
)

func (m MessageType) Valid() bool {
	return m == MessageUser || m == MessageBot || m == MessageSystem
}
