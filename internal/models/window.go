package models

import "time"

const (
	DefaultAggregationWindow  = 30 * time.Minute
	CrowdingAggregationWindow = 15 * time.Minute
	// DefaultReportTTL - сколько сырое сообщение учитывается в агрегации
	DefaultReportTTL = 2 * time.Hour
)

// AggregationWindows - окно ретроспективы по типу сообщения
type AggregationWindows struct {
	Default time.Duration                `yaml:"default"`
	Types   map[ReportType]time.Duration `yaml:"types"`
}

// DefaultAggregationWindows: 15 минут для загруженности, 30 для остальных
func DefaultAggregationWindows() AggregationWindows {
	w := AggregationWindows{
		Default: DefaultAggregationWindow,
		Types:   make(map[ReportType]time.Duration),
	}
	for _, t := range AllReportTypes {
		if t.IsCrowding() {
			w.Types[t] = CrowdingAggregationWindow
		}
	}
	return w
}

// For возвращает окно для типа сообщения
func (w AggregationWindows) For(t ReportType) time.Duration {
	if d, ok := w.Types[t]; ok && d > 0 {
		return d
	}
	if w.Default > 0 {
		return w.Default
	}
	return DefaultAggregationWindow
}
