package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReportType - тип сообщения пассажира о проблеме
type ReportType string

const (
	ReportTypeDelay          ReportType = "DELAY"
	ReportTypeCrowdingLow    ReportType = "CROWDING_LOW"
	ReportTypeCrowdingMed    ReportType = "CROWDING_MED"
	ReportTypeCrowdingHigh   ReportType = "CROWDING_HIGH"
	ReportTypeElevatorOut    ReportType = "ELEVATOR_OUT"
	ReportTypePoliceActivity ReportType = "POLICE_ACTIVITY"
	ReportTypePlatformChange ReportType = "PLATFORM_CHANGE"
	ReportTypeVehicleIssue   ReportType = "VEHICLE_ISSUE"
	ReportTypeSuspension     ReportType = "SUSPENSION"
)

// AllReportTypes перечисляет все поддерживаемые типы сообщений
var AllReportTypes = []ReportType{
	ReportTypeDelay,
	ReportTypeCrowdingLow,
	ReportTypeCrowdingMed,
	ReportTypeCrowdingHigh,
	ReportTypeElevatorOut,
	ReportTypePoliceActivity,
	ReportTypePlatformChange,
	ReportTypeVehicleIssue,
	ReportTypeSuspension,
}

// Valid сообщает, известен ли тип
func (t ReportType) Valid() bool {
	for _, known := range AllReportTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsCrowding - подтипы загруженности агрегируются в более коротком окне
func (t ReportType) IsCrowding() bool {
	switch t {
	case ReportTypeCrowdingLow, ReportTypeCrowdingMed, ReportTypeCrowdingHigh:
		return true
	}
	return false
}

// DedupKey определяет, какие сообщения могут сливаться в один инцидент
type DedupKey struct {
	AgencyID    string     `json:"agency_id"`
	RouteID     string     `json:"route_id"`
	DirectionID int        `json:"direction_id"`
	StopID      string     `json:"stop_id"`
	Type        ReportType `json:"type"`
}

// String возвращает каноническое строковое представление ключа (используется для блокировок)
func (k DedupKey) String() string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", k.AgencyID, k.RouteID, k.DirectionID, k.StopID, k.Type)
}

// Validate проверяет, что ключ полностью адресует остановку и тип
func (k DedupKey) Validate() error {
	if strings.TrimSpace(k.AgencyID) == "" || strings.TrimSpace(k.RouteID) == "" || strings.TrimSpace(k.StopID) == "" {
		return errors.New("agency_id, route_id and stop_id are required")
	}
	if k.DirectionID < 0 {
		return fmt.Errorf("invalid direction_id %d", k.DirectionID)
	}
	if !k.Type.Valid() {
		return fmt.Errorf("unknown report type %q", k.Type)
	}
	return nil
}

type reporterKind uint8

const (
	reporterUser reporterKind = iota + 1
	reporterAnon
)

// ReporterIdentity - автор сообщения: либо авторизованный пользователь, либо анонимный идентификатор.
// Нулевое значение невалидно, создавать только через AuthenticatedReporter / AnonymousReporter.
type ReporterIdentity struct {
	kind reporterKind
	id   string
}

func AuthenticatedReporter(userID string) ReporterIdentity {
	return ReporterIdentity{kind: reporterUser, id: userID}
}

func AnonymousReporter(anonID string) ReporterIdentity {
	return ReporterIdentity{kind: reporterAnon, id: anonID}
}

// IsZero сообщает, что идентичность не задана
func (r ReporterIdentity) IsZero() bool {
	return r.kind == 0 || r.id == ""
}

func (r ReporterIdentity) IsAuthenticated() bool {
	return r.kind == reporterUser
}

// UserID возвращает id пользователя, если автор авторизован
func (r ReporterIdentity) UserID() (string, bool) {
	if r.kind != reporterUser {
		return "", false
	}
	return r.id, true
}

// AnonID возвращает анонимный id, если автор анонимен
func (r ReporterIdentity) AnonID() (string, bool) {
	if r.kind != reporterAnon {
		return "", false
	}
	return r.id, true
}

// String - "user:<id>" или "anon:<id>", элемент множества уникальных авторов
func (r ReporterIdentity) String() string {
	switch r.kind {
	case reporterUser:
		return "user:" + r.id
	case reporterAnon:
		return "anon:" + r.id
	}
	return ""
}

// Report - неизменяемое сообщение пассажира
type Report struct {
	ID        uuid.UUID        `json:"id"`
	Key       DedupKey         `json:"key"`
	Severity  int              `json:"severity"`
	Reporter  ReporterIdentity `json:"-"`
	Source    string           `json:"source"`
	Details   string           `json:"details,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Validate проверяет сообщение перед передачей в движок агрегации
func (r *Report) Validate() error {
	if err := r.Key.Validate(); err != nil {
		return err
	}
	if r.Reporter.IsZero() {
		return errors.New("reporter identity is required")
	}
	if r.CreatedAt.IsZero() {
		return errors.New("created_at is required")
	}
	return nil
}

// ExpiredAt сообщает, что сообщение больше не учитывается в агрегации
func (r *Report) ExpiredAt(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// ReporterSet - множество уникальных авторов по ключу в пределах окна
type ReporterSet struct {
	members       map[string]struct{}
	authenticated bool
}

func NewReporterSet() *ReporterSet {
	return &ReporterSet{members: make(map[string]struct{})}
}

func (s *ReporterSet) Add(r ReporterIdentity) {
	if r.IsZero() {
		return
	}
	s.members[r.String()] = struct{}{}
	if r.IsAuthenticated() {
		s.authenticated = true
	}
}

// Len - количество подтверждений
func (s *ReporterSet) Len() int {
	return len(s.members)
}

// HasAuthenticated сообщает, есть ли среди авторов авторизованный пользователь
func (s *ReporterSet) HasAuthenticated() bool {
	return s.authenticated
}
