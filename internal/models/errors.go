package models

import "errors"

var (
	// ErrNotFound - запись не найдена в хранилище
	ErrNotFound = errors.New("not found")
	// ErrOpenIncidentExists - по ключу уже есть открытый инцидент (нарушен уникальный индекс)
	ErrOpenIncidentExists = errors.New("open incident already exists for key")
	// ErrIncidentClosed - условное обновление не применилось: инцидент закрыт
	ErrIncidentClosed = errors.New("incident is closed")
	// ErrStatusChanged - статус изменился между чтением и записью
	ErrStatusChanged = errors.New("incident status changed concurrently")
)
