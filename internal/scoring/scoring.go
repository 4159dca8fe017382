// Package scoring вычисляет оценку доверия к инциденту.
// Функция чистая: без ввода-вывода, текущее время передаётся явно.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/shopspring/decimal"
)

const (
	pointsPerConfirmation = 15
	maxConfirmationPoints = 50
	maxRecencyPoints      = 40
	recencyDecayPerMinute = 0.5
	reputationBonus       = 10
	maxScore              = 100

	highThreshold   = 70
	mediumThreshold = 40
)

// Result - оценка и уровень доверия
type Result struct {
	Score      float64           `json:"score"`
	Confidence models.Confidence `json:"confidence"`
}

// Calculate считает оценку по числу подтверждений, времени последнего сообщения
// и наличию авторизованного подтверждения. Отрицательное число подтверждений - ошибка программиста.
func Calculate(confirmations int, mostRecentReportAt time.Time, hasAuthenticatedConfirmation bool, now time.Time) Result {
	if confirmations < 0 {
		panic(fmt.Sprintf("scoring: negative confirmations %d", confirmations))
	}

	confirmationPoints := math.Min(float64(confirmations*pointsPerConfirmation), maxConfirmationPoints)

	ageMinutes := math.Max(0, now.Sub(mostRecentReportAt).Minutes())
	recencyPoints := math.Max(0, maxRecencyPoints-ageMinutes*recencyDecayPerMinute)

	var reputationPoints float64
	if hasAuthenticatedConfirmation {
		reputationPoints = reputationBonus
	}

	total := math.Min(maxScore, confirmationPoints+recencyPoints+reputationPoints)

	return Result{
		Score:      decimal.NewFromFloat(total).Round(2).InexactFloat64(),
		Confidence: ConfidenceFor(total),
	}
}

// ConfidenceFor переводит оценку в уровень доверия
func ConfidenceFor(score float64) models.Confidence {
	switch {
	case score >= highThreshold:
		return models.ConfidenceHigh
	case score >= mediumThreshold:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}
