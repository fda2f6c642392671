package types

const NO_PAGINATION = 0

const (
	StatusEnabled  = 1
	StatusDisabled = 0
)
