package game

import "errors"

var (
	ErrUnknownPlayer       = errors.New("player not found")
	ErrUnknownUnit         = errors.New("unit not found")
	ErrNotYourUnit         = errors.New("unit belongs to another player")
	ErrInvalidMove         = errors.New("invalid move")
	ErrNoAvailablePosition = errors.New("no available land positions")
	ErrUnitNamesExhausted  = errors.New("all 26 unit names are in use")
)
